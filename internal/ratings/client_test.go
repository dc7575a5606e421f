package ratings

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avelinabooks/bookshop-backend/pkg/config"
)

func newTestClient(baseURL string, retries int) *Client {
	client := NewClient(config.RatingsConfig{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	})
	client.sleep = func(time.Duration) {}
	return client
}

func TestExtractRatingCurrentLayout(t *testing.T) {
	body := []byte(`<div class="RatingStatistics__rating" aria-hidden="true">4.27</div>`)
	rating, err := extractRating(body)
	if err != nil {
		t.Fatalf("extractRating: %v", err)
	}
	if rating.String() != "4.27" {
		t.Fatalf("expected 4.27, got %s", rating)
	}
}

func TestExtractRatingLegacyLayout(t *testing.T) {
	body := []byte(`<span itemprop="ratingValue">
		3.92
	</span>`)
	rating, err := extractRating(body)
	if err != nil {
		t.Fatalf("extractRating: %v", err)
	}
	if rating.String() != "3.92" {
		t.Fatalf("expected 3.92, got %s", rating)
	}
}

func TestExtractRatingRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		[]byte(`<html><body>no rating here</body></html>`),
		[]byte(`<div class="RatingStatistics__rating">9.99</div>`),
	}
	for _, body := range cases {
		if _, err := extractRating(body); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound for %q, got %v", body, err)
		}
	}
}

func TestLookupRatingFollowsSearchResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "9780143111580" {
			t.Errorf("expected isbn query, got %q", got)
		}
		fmt.Fprint(w, `<a href="/book/show/18135">The Master and Margarita</a>`)
	})
	mux.HandleFunc("/book/show/18135", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="RatingStatistics__rating">4.29</div>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	isbn := "9780143111580"
	client := newTestClient(server.URL, 1)
	rating, err := client.LookupRating(context.Background(), "The Master and Margarita", &isbn)
	if err != nil {
		t.Fatalf("LookupRating: %v", err)
	}
	if rating.String() != "4.29" {
		t.Fatalf("expected 4.29, got %s", rating)
	}
}

func TestLookupRatingNoSearchResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>nothing matched</body></html>`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	if _, err := client.LookupRating(context.Background(), "Unknown Title", nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupRatingRetriesOnThrottle(t *testing.T) {
	var searchHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if searchHits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `<a href="/book/show/7">x</a>`)
	})
	mux.HandleFunc("/book/show/7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="RatingStatistics__rating">3.50</div>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL, 3)
	rating, err := client.LookupRating(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("LookupRating: %v", err)
	}
	if rating.String() != "3.5" {
		t.Fatalf("expected 3.5, got %s", rating)
	}
	if searchHits.Load() != 2 {
		t.Fatalf("expected one retry, got %d search hits", searchHits.Load())
	}
}

func TestLookupRatingGivesUpOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	if _, err := client.LookupRating(context.Background(), "x", nil); err == nil {
		t.Fatalf("expected error on server failure")
	}
}
