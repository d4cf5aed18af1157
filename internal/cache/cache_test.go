package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestHTMLRoundTrip(t *testing.T) {
	c := New(time.Minute, 0)

	if _, ok := c.HTML("a1", "zh"); ok {
		t.Fatal("expected a miss before anything is stored")
	}

	c.SetHTML("a1", "zh", "<p>hi</p>")
	got, ok := c.HTML("a1", "zh")
	if !ok || got != "<p>hi</p>" {
		t.Fatalf("expected a hit with the stored HTML, got %q (hit=%v)", got, ok)
	}

	if _, ok := c.HTML("a1", "en"); ok {
		t.Fatal("the en rendering must not hit the zh entry")
	}
}

func TestSnippetKeyedByArticleAndQuery(t *testing.T) {
	c := New(time.Minute, 0)

	c.SetSnippet("a1", "async programming", "snippet-1")
	if _, ok := c.Snippet("a1", "concurrency"); ok {
		t.Fatal("a different query must not hit the cached snippet")
	}
	if got, ok := c.Snippet("a1", "async programming"); !ok || got != "snippet-1" {
		t.Fatalf("expected the stored snippet, got %q (hit=%v)", got, ok)
	}
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	c := New(0, 0)

	c.SetHTML("a1", "zh", "<p>hi</p>")
	if _, ok := c.HTML("a1", "zh"); ok {
		t.Fatal("a zero-TTL cache must never hit")
	}
}

func TestExpiredEntriesMiss(t *testing.T) {
	c := New(time.Millisecond, 0)

	c.SetHTML("a1", "zh", "<p>hi</p>")
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.HTML("a1", "zh"); ok {
		t.Fatal("expected an expired entry to miss")
	}
}

func TestCapacityBoundsEntries(t *testing.T) {
	c := New(time.Minute, 4)

	for i := 0; i < 20; i++ {
		c.SetHTML(fmt.Sprintf("a%d", i), "zh", "<p>x</p>")
	}

	c.mu.Lock()
	n := len(c.html)
	c.mu.Unlock()
	if n > 4 {
		t.Fatalf("expected at most 4 live entries, got %d", n)
	}
}
