package documents

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchBatchKeepsInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/bad") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write(bytes.Repeat([]byte{'x'}, 1024))
	}))
	defer srv.Close()

	f := newTestFetcher(t, &stubLedger{}, nil, "")

	requests := []FetchRequest{
		{URL: srv.URL + "/a", DocumentID: "doc-a", Identity: "tenant-1", EstimatedPages: 1},
		{URL: srv.URL + "/bad", DocumentID: "doc-b", Identity: "tenant-1", EstimatedPages: 1},
		{URL: srv.URL + "/c", DocumentID: "doc-c", Identity: "tenant-1", EstimatedPages: 1},
	}

	items := f.FetchBatch(context.Background(), "tok", requests, BatchConfig{MaxConcurrent: 2})

	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.Request.DocumentID != requests[i].DocumentID {
			t.Errorf("item %d out of order: %s", i, item.Request.DocumentID)
		}
	}

	if items[0].Err != nil || items[2].Err != nil {
		t.Errorf("good items should succeed: %v, %v", items[0].Err, items[2].Err)
	}
	if items[1].Err == nil {
		t.Error("failing item must carry its error instead of aborting the batch")
	}
	if items[0].Result.Document.PageCount != 1 {
		t.Errorf("pages = %d, want 1", items[0].Result.Document.PageCount)
	}
}

func TestFetchBatchZeroConcurrencyStillRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{'x'}, 512))
	}))
	defer srv.Close()

	f := newTestFetcher(t, &stubLedger{}, nil, "")

	items := f.FetchBatch(context.Background(), "tok",
		[]FetchRequest{{URL: srv.URL, DocumentID: "doc-a", Identity: "tenant-1", EstimatedPages: 1}},
		BatchConfig{})

	if len(items) != 1 || items[0].Err != nil {
		t.Fatalf("items = %+v", items)
	}
}

func TestFetchBatchEmptyInput(t *testing.T) {
	f := newTestFetcher(t, &stubLedger{}, nil, "")

	items := f.FetchBatch(context.Background(), "tok", nil, DefaultBatchConfig())
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}
