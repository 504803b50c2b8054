package model

import (
	"errors"
	"testing"
)

func TestDedupKey_PrefersExternalID(t *testing.T) {
	a := Job{ExternalID: "abc", Title: "Dev", Company: "A"}
	b := Job{ExternalID: "abc", Title: "Other", Company: "B"}
	if a.DedupKey() != b.DedupKey() {
		t.Errorf("same external id should share a key: %q vs %q", a.DedupKey(), b.DedupKey())
	}
}

func TestDedupKey_FallsBackToTuple(t *testing.T) {
	a := Job{Title: "Dev", Company: "A", Location: "Pune", URL: "https://x/1"}
	b := Job{Title: "Dev", Company: "A", Location: "Pune", URL: "https://x/1"}
	c := Job{Title: "Dev", Company: "A", Location: "Pune", URL: "https://x/2"}
	if a.DedupKey() != b.DedupKey() {
		t.Error("identical tuples should share a key")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Error("different urls should not share a key")
	}
}

func TestDedupKey_ExternalIDDoesNotCollideWithTuple(t *testing.T) {
	a := Job{ExternalID: "Dev"}
	b := Job{Title: "Dev"}
	if a.DedupKey() == b.DedupKey() {
		t.Error("id key and tuple key must live in separate namespaces")
	}
}

func TestHTTPError(t *testing.T) {
	inner := errors.New("boom")
	err := &HTTPError{StatusCode: 503, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("HTTPError should unwrap to inner error")
	}
	if !err.Retryable() {
		t.Error("503 should be retryable")
	}
	if (&HTTPError{StatusCode: 404}).Retryable() {
		t.Error("404 should not be retryable")
	}
	if got := (&HTTPError{StatusCode: 429}).Error(); got != "HTTP 429" {
		t.Errorf("Error() = %q", got)
	}
}
