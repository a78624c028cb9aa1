// Package provider talks to the scraper service that fronts the vendor's
// firmware and open-source portals. The service resolves CAPTCHAs and
// sessions; this client only speaks its JSON API:
//
//	GET /firmware/{model}/{region}                      -> FirmwareRecord | 404
//	GET /kernel/{model}                                 -> KernelRecord | 404
//	GET /kernel/{model}/download?upload_id=&version=    -> package bytes
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fwbot-go/internal/fwbot"
)

// FirmwareDownloadBase is used for download links the service leaves empty.
const FirmwareDownloadBase = "https://samfw.com/firmware"

const defaultUserAgent = "fwbot"

// RateLimitError indicates the service refused the request for exceeding
// its rate limit.
type RateLimitError struct {
	Status     string
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("provider rate limit exceeded (%s, retry after %s)", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("provider rate limit exceeded (%s)", e.Status)
}

// IsRateLimitError reports whether err represents a rate-limit response.
func IsRateLimitError(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Client implements the firmware, kernel and download capabilities.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL. Per-request
// deadlines come from the caller's context.
func NewClient(baseURL, userAgent string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid provider base_url %q", baseURL)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Transport: http.DefaultTransport},
	}, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get issues a GET and returns the response when the status is 200.
// A 404 yields a nil response and nil error.
func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", u, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, nil
	case http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, &RateLimitError{Status: resp.Status, RetryAfter: resp.Header.Get("Retry-After")}
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("requesting %s: unexpected status %s", u, resp.Status)
	}
}

func (c *Client) getJSON(ctx context.Context, u string, v any) (bool, error) {
	resp, err := c.get(ctx, u)
	if err != nil || resp == nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", u, err)
	}
	return true, nil
}

func (c *Client) LatestFirmware(ctx context.Context, model, region string) (*fwbot.FirmwareRecord, error) {
	var rec fwbot.FirmwareRecord
	found, err := c.getJSON(ctx, c.endpoint(nil, "firmware", model, region), &rec)
	if err != nil || !found {
		return nil, err
	}
	if rec.BuildVersion == "" {
		return nil, fmt.Errorf("firmware record for %s/%s has no build version", model, region)
	}
	if rec.Model == "" {
		rec.Model = model
	}
	if rec.Region == "" {
		rec.Region = region
	}
	if rec.DownloadURL == "" {
		rec.DownloadURL = FirmwareDownloadURL(rec.Model, rec.Region, rec.BuildVersion)
	}
	return &rec, nil
}

// FirmwareDownloadURL is the public download page of a firmware build.
func FirmwareDownloadURL(model, region, version string) string {
	return strings.Join([]string{FirmwareDownloadBase, url.PathEscape(model), url.PathEscape(region), url.PathEscape(version)}, "/")
}

func (c *Client) LatestKernel(ctx context.Context, model string) (*fwbot.KernelRecord, error) {
	var rec fwbot.KernelRecord
	found, err := c.getJSON(ctx, c.endpoint(nil, "kernel", model), &rec)
	if err != nil || !found {
		return nil, err
	}
	if rec.BuildVersion == "" || rec.UploadID == "" {
		return nil, fmt.Errorf("kernel record for %s is incomplete", model)
	}
	if rec.Model == "" {
		rec.Model = model
	}
	return &rec, nil
}

// Download streams the kernel package to "<destDir>/<model>-<version>.zip".
// A partially written file is removed on error.
func (c *Client) Download(ctx context.Context, rec fwbot.KernelRecord, destDir string) (string, error) {
	if rec.Model == "" || rec.BuildVersion == "" {
		return "", fmt.Errorf("kernel record is missing model or version")
	}
	q := url.Values{"upload_id": {rec.UploadID}, "version": {rec.BuildVersion}}
	resp, err := c.get(ctx, c.endpoint(q, "kernel", rec.Model, "download"))
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%w: %s %s", fwbot.ErrNoArtifact, rec.Model, rec.BuildVersion)
	}
	defer resp.Body.Close()

	dest := filepath.Join(destDir, fmt.Sprintf("%s-%s.zip", rec.Model, rec.BuildVersion))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("downloading %s: %w", rec.BuildVersion, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		os.Remove(dest)
		return "", fmt.Errorf("downloading %s: got %d of %d bytes", rec.BuildVersion, n, resp.ContentLength)
	}
	if n == 0 {
		os.Remove(dest)
		return "", fmt.Errorf("%w: empty package for %s", fwbot.ErrNoArtifact, rec.BuildVersion)
	}
	return dest, nil
}

var (
	_ fwbot.FirmwareProvider = (*Client)(nil)
	_ fwbot.KernelProvider   = (*Client)(nil)
	_ fwbot.Fetcher          = (*Client)(nil)
)
