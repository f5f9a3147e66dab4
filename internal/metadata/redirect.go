package metadata

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const redirectUserAgent = "Mozilla/5.0 (compatible; dupscan/1.0)"

// RedirectResolver follows HTTP redirects to find where a URL actually
// points, so that shortened or moved links still match their targets.
type RedirectResolver struct {
	client *http.Client
}

// NewRedirectResolver builds a resolver with the given total timeout.
func NewRedirectResolver(timeout time.Duration) *RedirectResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RedirectResolver{
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve issues a HEAD request following redirects and returns the final
// URL together with whether it is a real redirect, i.e. the destination
// differs from the input even after normalization. Non-HTTP URLs and
// network failures resolve to ("", false); redirect resolution is an
// optimization and must never fail a detection run.
func (r *RedirectResolver) Resolve(ctx context.Context, rawURL string) (string, bool) {
	trimmed := strings.TrimSpace(rawURL)
	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "http://") && !strings.HasPrefix(lowered, "https://") {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, trimmed, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", redirectUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final == trimmed {
		return "", false
	}
	if NormalizeURL(final) == NormalizeURL(trimmed) {
		return "", false
	}
	return final, true
}
