package ratings

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/pkg/config"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var (
	bookIDPattern = regexp.MustCompile(`/book/show/(\d+)`)
	ratingPattern = regexp.MustCompile(`(?s)class="RatingStatistics__rating"[^>]*>\s*([0-9]+(?:\.[0-9]+)?)`)
	// Older page layout.
	legacyRatingPattern = regexp.MustCompile(`(?s)itemprop="ratingValue"[^>]*>\s*([0-9]+(?:\.[0-9]+)?)`)
)

// ErrNotFound signals the site returned no usable result for the book.
var ErrNotFound = fmt.Errorf("rating not found")

// Client fetches public ratings from a book-rating site. Requests are
// retried with exponential backoff when the site throttles.
type Client struct {
	http    *http.Client
	baseURL string
	retries int
	sleep   func(time.Duration)
}

// NewClient builds a rating client from the configured base URL and timeouts.
func NewClient(cfg config.RatingsConfig) *Client {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		retries: retries,
		sleep:   time.Sleep,
	}
}

// LookupRating searches for the book by title (plus ISBN when known) and
// returns the first result's average rating.
func (c *Client) LookupRating(ctx context.Context, title string, isbn *string) (decimal.Decimal, error) {
	query := title
	if isbn != nil && *isbn != "" {
		query = *isbn
	}

	searchBody, err := c.get(ctx, fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(query)))
	if err != nil {
		return decimal.Zero, err
	}

	match := bookIDPattern.FindSubmatch(searchBody)
	if match == nil {
		return decimal.Zero, ErrNotFound
	}
	bookID := string(match[1])

	pageBody, err := c.get(ctx, fmt.Sprintf("%s/book/show/%s", c.baseURL, bookID))
	if err != nil {
		return decimal.Zero, err
	}
	return extractRating(pageBody)
}

func extractRating(body []byte) (decimal.Decimal, error) {
	match := ratingPattern.FindSubmatch(body)
	if match == nil {
		match = legacyRatingPattern.FindSubmatch(body)
	}
	if match == nil {
		return decimal.Zero, ErrNotFound
	}
	value, err := strconv.ParseFloat(string(match[1]), 64)
	if err != nil || value < 0 || value > 5 {
		return decimal.Zero, ErrNotFound
	}
	return decimal.NewFromFloat(value).Round(2), nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.sleep(time.Second)
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return body, nil
		case http.StatusForbidden, http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("throttled with status %d", resp.StatusCode)
			c.sleep(time.Duration(1<<attempt) * time.Second)
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", c.retries, lastErr)
}
