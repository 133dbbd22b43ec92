package media

import "testing"

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestClassifyBySignature(t *testing.T) {
	if kind := Classify(pngHeader, "whatever.bin"); kind != KindImage {
		t.Fatalf("png signature classified as %q", kind)
	}
	if kind := Classify([]byte("GIF89a......"), "noext"); kind != KindImage {
		t.Fatalf("gif signature classified as %q", kind)
	}
	// EBML header, as found in webm containers.
	if kind := Classify([]byte{0x1a, 0x45, 0xdf, 0xa3, 0x00, 0x00}, "clip"); kind != KindVideo {
		t.Fatalf("webm signature classified as %q", kind)
	}
}

func TestClassifyExtensionFallback(t *testing.T) {
	// Bytes with no recognizable signature fall through to the
	// extension sets.
	junk := []byte("no signature here, just text")
	cases := map[string]Kind{
		"holiday.MOV":  KindVideo,
		"clip.mp4":     KindVideo,
		"drawing.svg":  KindImage,
		"photo.JPEG":   KindImage,
		"archive.zip":  KindUnknown,
		"notes.txt":    KindUnknown,
		"no_extension": KindUnknown,
	}
	for name, want := range cases {
		if got := Classify(junk, name); got != want {
			t.Fatalf("%s classified as %q, expected %q", name, got, want)
		}
	}
}

func TestClassifyEmptyContent(t *testing.T) {
	if kind := Classify(nil, "empty.xyz"); kind != KindUnknown {
		t.Fatalf("empty unclassifiable content classified as %q", kind)
	}
}
