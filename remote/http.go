package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/remotegate/result"
)

// DefaultMaxBodyBytes bounds how much of a response body GetJSON decodes.
const DefaultMaxBodyBytes int64 = 10 << 20

// HTTPGetter performs GET requests for GetJSON. The client's own timeout
// and transport settings apply; HTTPGetter adds none.
type HTTPGetter struct {
	// Client sends the requests.
	// Default: http.DefaultClient
	Client *http.Client

	// Header is added to every request.
	Header http.Header

	// MaxBodyBytes bounds the decoded body.
	// Default: DefaultMaxBodyBytes
	MaxBodyBytes int64

	// Now is used to resolve Retry-After dates.
	// Default: time.Now
	Now func() time.Time
}

// NewHTTPGetter creates an HTTPGetter using client.
func NewHTTPGetter(client *http.Client) *HTTPGetter {
	return &HTTPGetter{Client: client}
}

func (g *HTTPGetter) client() *http.Client {
	if g == nil || g.Client == nil {
		return http.DefaultClient
	}
	return g.Client
}

func (g *HTTPGetter) maxBody() int64 {
	if g == nil || g.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return g.MaxBodyBytes
}

func (g *HTTPGetter) now() time.Time {
	if g == nil || g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// GetJSON fetches url and decodes a JSON body into T.
//
// Responses map onto the failure taxonomy:
//   - 429, and 503 carrying Retry-After: rate limit, with the hint
//   - any other non-2xx status: http with the status code
//   - undecodable body: parse
//   - transport failures: classified (network, timeout or unknown)
func GetJSON[T any](ctx context.Context, g *HTTPGetter, url string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, result.Unknown(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if g != nil {
		for k, vs := range g.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := g.client().Do(req)
	if err != nil {
		return zero, result.Classify(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
	}()

	if err := g.statusError(resp); err != nil {
		return zero, err
	}

	var out T
	dec := json.NewDecoder(io.LimitReader(resp.Body, g.maxBody()))
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, result.Parse("empty response body", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, result.Classify(ctxErr)
		}
		return zero, result.Parse("decode "+url, err)
	}
	return out, nil
}

// JSONFetcher returns a Fetcher that performs GetJSON against url.
func JSONFetcher[T any](g *HTTPGetter, url string) Fetcher[T] {
	return func(ctx context.Context) (T, error) {
		return GetJSON[T](ctx, g, url)
	}
}

func (g *HTTPGetter) statusError(resp *http.Response) *result.Error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	retryAfter, hinted := ParseRetryAfter(resp.Header.Get("Retry-After"), g.now())
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return result.RateLimited("upstream returned 429", retryAfter)
	case resp.StatusCode == http.StatusServiceUnavailable && hinted:
		return result.RateLimited("upstream returned 503", retryAfter)
	}

	return result.HTTP(resp.StatusCode, errorSnippet(resp))
}

// errorSnippet returns a short, single-line prefix of an error body, or
// the status text when the body is empty.
func errorSnippet(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := strings.Join(strings.Fields(string(b)), " ")
	if msg == "" {
		return http.StatusText(resp.StatusCode)
	}
	return msg
}

// maxRetryAfterSecs is the largest delta-seconds value a time.Duration holds.
const maxRetryAfterSecs = math.MaxInt64 / int64(time.Second)

// ParseRetryAfter parses a Retry-After header value given as delta seconds
// or an HTTP date. Dates in the past yield zero. ok is false when the
// header is absent or malformed.
func ParseRetryAfter(v string, now time.Time) (d time.Duration, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.ParseInt(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(min(secs, maxRetryAfterSecs)) * time.Second, true
	}

	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := t.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
