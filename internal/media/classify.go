package media

import (
	"net/http"
	"path/filepath"
	"strings"
)

// Kind is the coarse media type stored in the catalog.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindUnknown Kind = ""
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".svg": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".mkv": true, ".m4v": true,
	".3gp": true, ".ogv": true,
}

// Classify determines whether content is an image or a video. It sniffs
// the leading bytes for a known signature first and falls back to the
// filename extension when sniffing is inconclusive. KindUnknown means
// the content is neither and must be rejected by the caller.
func Classify(head []byte, filename string) Kind {
	mimeType := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	}
	return classifyByExtension(filename)
}

func classifyByExtension(filename string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	}
	return KindUnknown
}
