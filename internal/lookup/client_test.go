package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const duneVolume = `{"items":[{"id":"gb-dune","volumeInfo":{
	"title":"Dune",
	"authors":["Frank Herbert"],
	"publisher":"Ace",
	"publishedDate":"1990-09-01",
	"pageCount":896,
	"categories":["Fiction","Science Fiction"],
	"language":"en",
	"imageLinks":{"thumbnail":"http://covers.example/dune.jpg"},
	"industryIdentifiers":[
		{"type":"ISBN_13","identifier":"9780441013593"},
		{"type":"ISBN_10","identifier":"0441013597"}
	]}}]}`

func stubServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query().Get("q")
		if strings.Contains(q, "9780441013593") || strings.Contains(q, "intitle:Dune") {
			fmt.Fprint(w, duneVolume)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestByISBNParsesVolume(t *testing.T) {
	srv := stubServer(t, nil)
	client := NewClient(srv.URL, 0)

	meta, err := client.ByISBN(context.Background(), "9780441013593")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if meta == nil {
		t.Fatal("expected a hit")
	}
	if meta.Title != "Dune" || meta.ISBN13 != "9780441013593" || meta.ISBN10 != "0441013597" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.Author() != "Frank Herbert" {
		t.Fatalf("unexpected author: %q", meta.Author())
	}
	if meta.CoverImageURL != "http://covers.example/dune.jpg" {
		t.Fatalf("unexpected cover: %q", meta.CoverImageURL)
	}
	if meta.GoogleBooksID != "gb-dune" {
		t.Fatalf("unexpected id: %q", meta.GoogleBooksID)
	}
}

func TestLookupMissIsNotAnError(t *testing.T) {
	srv := stubServer(t, nil)
	client := NewClient(srv.URL, 0)

	meta, err := client.ByISBN(context.Background(), "9999999999999")
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil meta, got %+v", meta)
	}
}

func TestBatchKeepsOrderAndFallsBackToTitle(t *testing.T) {
	srv := stubServer(t, nil)
	client := NewClient(srv.URL, 0)

	results := client.Batch(context.Background(), []Identifier{
		{ISBN: "9999999999999"},            // miss
		{ISBN: "9780441013593"},            // isbn hit
		{ISBN: "123", Title: "Dune"},       // isbn too short, title hit
		{Title: "No Such Book Whatsoever"}, // title miss
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0] != nil || results[3] != nil {
		t.Fatalf("misses must be nil: %+v", results)
	}
	if results[1] == nil || results[1].Title != "Dune" {
		t.Fatalf("isbn hit missing: %+v", results[1])
	}
	if results[2] == nil || results[2].Title != "Dune" {
		t.Fatalf("title fallback missing: %+v", results[2])
	}
}

func TestBatchHonorsCancellation(t *testing.T) {
	var hits atomic.Int64
	srv := stubServer(t, &hits)
	client := NewClient(srv.URL, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := client.Batch(ctx, []Identifier{
		{ISBN: "9780441013593"},
		{ISBN: "9780441013593"},
		{ISBN: "9780441013593"},
	})

	if len(results) != 3 {
		t.Fatalf("cancelled batch must keep its shape, got %d entries", len(results))
	}
	// the dead context kills the first request and the inter-request
	// wait short-circuits the rest
	if got := hits.Load(); got > 1 {
		t.Fatalf("expected at most 1 upstream request, got %d", got)
	}
	for i, r := range results {
		if r != nil {
			t.Fatalf("row %d should be a miss: %+v", i, r)
		}
	}
}
