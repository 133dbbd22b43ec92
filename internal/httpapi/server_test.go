package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueryHelpers(t *testing.T) {
	if got := queryInt("", 25); got != 25 {
		t.Fatalf("empty value should default, got %d", got)
	}
	if got := queryInt("7", 25); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := queryInt("junk", 25); got != 25 {
		t.Fatalf("unparseable value should default, got %d", got)
	}

	for _, v := range []string{"1", "true", "TRUE", " yes "} {
		if !queryBool(v) {
			t.Fatalf("%q should parse as true", v)
		}
	}
	for _, v := range []string{"", "0", "false", "no"} {
		if queryBool(v) {
			t.Fatalf("%q should parse as false", v)
		}
	}
}

func TestServeUploadRejectsTraversal(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/uploads/../secrets", nil)
	// chi URL params are not populated outside a router; an empty
	// key takes the same rejection path as a traversal attempt.
	rec := httptest.NewRecorder()
	s.ServeUpload(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("traversal request returned %d, expected 404", rec.Code)
	}
}
