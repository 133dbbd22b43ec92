package store

import "testing"

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"  Foo  ":      "foo",
		"Foo   Bar":    "foo bar",
		"":             "",
		"  ":           "",
		"Mixed	Case":   "mixed case",
		"Two  Words  ": "two words",
		"sunset":       "sunset",
	}
	for in, expect := range cases {
		if got := NormalizeTag(in); got != expect {
			t.Fatalf("normalize %q => %q, expected %q", in, got, expect)
		}
	}
}
