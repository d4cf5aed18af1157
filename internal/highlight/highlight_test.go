package highlight

import (
	"strings"
	"testing"
)

func TestFastExcerptSingleMarkSpan(t *testing.T) {
	content := "Goroutines make concurrent Go programs easy to write. " +
		"Channels let Goroutines communicate safely. Another sentence entirely."
	snippet := FastExcerpt(content, "goroutines")

	if n := strings.Count(snippet, "<mark>"); n != 1 {
		t.Fatalf("expected exactly one <mark> open tag, got %d in %q", n, snippet)
	}
	if n := strings.Count(snippet, "</mark>"); n != 1 {
		t.Fatalf("expected exactly one </mark> close tag, got %d in %q", n, snippet)
	}
}

func TestFastExcerptPreservesOriginalCase(t *testing.T) {
	content := "Goroutines make concurrent Go programs easy to write."
	snippet := FastExcerpt(content, "goroutines")

	if !strings.Contains(snippet, "<mark>Goroutines</mark>") {
		t.Fatalf("expected the marked token to preserve its original case, got %q", snippet)
	}
}

func TestFastExcerptNoMatchFallsBackToPrefix(t *testing.T) {
	content := "This sentence shares no terms with the query at all."
	snippet := FastExcerpt(content, "zzzznotfound")

	if strings.Contains(snippet, "<mark>") {
		t.Fatalf("expected no mark when the query has no hits, got %q", snippet)
	}
}
