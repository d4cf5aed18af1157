// Package storetest provides a shared in-memory store fixture for tests
// across internal/write, internal/analytics, internal/query,
// internal/runtime, and internal/api, so each package doesn't reimplement
// DuckDB setup. A generous timeout on opening the store guards against the
// embedded driver hanging under CI resource pressure, and a semaphore held
// from the open until the test's cleanup serializes DuckDB CGO connection
// creation within one test binary.
package storetest

import (
	"testing"
	"time"

	"github.com/tmoreau/marginalia/internal/config"
	"github.com/tmoreau/marginalia/internal/store"
)

var creationSemaphore = make(chan struct{}, 1)

// New opens a fresh in-memory store for the duration of one test.
func New(t *testing.T) *store.Store {
	t.Helper()

	creationSemaphore <- struct{}{}
	t.Cleanup(func() { <-creationSemaphore })

	cfg := &config.StoreConfig{
		Path:                   ":memory:",
		MaxMemory:              "512MB",
		Threads:                2,
		PreserveInsertionOrder: true,
	}

	type result struct {
		st  *store.Store
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		st, err := store.Open(cfg)
		resultCh <- result{st, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			t.Fatalf("open test store: %v", r.err)
		}
		t.Cleanup(func() {
			if err := r.st.Close(); err != nil {
				t.Logf("close test store: %v", err)
			}
		})
		return r.st
	case <-time.After(60 * time.Second):
		t.Fatal("timed out opening test store")
		return nil
	}
}
