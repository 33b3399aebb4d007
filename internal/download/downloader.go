// Package download fetches datasheet PDFs with retry, backoff and content
// validation.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
	"github.com/br00k-3/Datasheet-Grabber/internal/retry"
)

// Typed failure reasons surfaced to the download workers.
var (
	// ErrBlocked means the host kept rejecting us (403/429) through all
	// retry attempts.
	ErrBlocked = errors.New("download blocked by host")

	// ErrInvalidContent means the response failed PDF validation.
	ErrInvalidContent = errors.New("invalid PDF content")

	// ErrExtractFailed means an HTML viewer page contained no usable
	// document link.
	ErrExtractFailed = errors.New("could not extract document link from HTML")
)

const (
	// pdfMagic is the canonical PDF signature.
	pdfMagic = "%PDF"
	// minPDFSize rejects error pages and truncated bodies.
	minPDFSize = 1000
	// maxBodySize bounds how much of a response is buffered.
	maxBodySize = 100 << 20 // 100MB
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.6422.112 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Options configures a Downloader.
type Options struct {
	// MaxAttempts bounds retries per URL.
	MaxAttempts int
	// BaseBackoff is the first retry delay; each attempt waits strictly
	// longer (1s, 2s, 4s, ...).
	BaseBackoff time.Duration
	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
}

// Downloader fetches a document by URL to a local path, validating that
// the result is a real PDF. Safe for concurrent use.
type Downloader struct {
	httpClient *http.Client
	opts       Options
	logger     observability.Logger
	metrics    observability.Metrics

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Downloader. The http client's timeout is the per-attempt
// timeout.
func New(httpClient *http.Client, opts Options, logger observability.Logger, metrics observability.Metrics) *Downloader {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	return &Downloader{
		httpClient: httpClient,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch downloads rawURL to targetPath. Returns skipped=true when the
// target already holds a valid PDF (resume). On failure no partial file
// is left behind and the error wraps one of the typed reasons above.
func (d *Downloader) Fetch(ctx context.Context, rawURL, targetPath string) (skipped bool, err error) {
	d.metrics.StartOperation("download")
	defer d.metrics.EndOperation("download")
	start := time.Now()
	defer func() {
		d.metrics.RecordDuration("download", time.Since(start).Seconds())
	}()

	if ValidPDFOnDisk(targetPath) {
		d.metrics.RecordSuccess("download_resume")
		return true, nil
	}

	normalized := NormalizeURL(rawURL)

	if err := d.fetchValidated(ctx, normalized, targetPath, true); err != nil {
		d.metrics.RecordError("download", categorize(err))
		return false, err
	}

	d.metrics.RecordSuccess("download")
	return false, nil
}

// ValidPDFOnDisk implements the resume cache check used by both worker
// pools: the target must exist, be non-empty, and carry the PDF
// signature. A corrupt partial from an interrupted run is re-downloaded
// rather than trusted.
func ValidPDFOnDisk(targetPath string) bool {
	info, err := os.Stat(targetPath)
	if err != nil || info.Size() == 0 {
		return false
	}

	f, err := os.Open(targetPath)
	if err != nil {
		return false
	}
	defer f.Close()

	sig := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, sig); err != nil {
		return false
	}
	return string(sig) == pdfMagic
}

// fetchValidated downloads, validates and writes one URL. When the
// response is an HTML viewer page and allowExtract is set, it follows the
// embedded document link exactly once.
func (d *Downloader) fetchValidated(ctx context.Context, rawURL, targetPath string, allowExtract bool) error {
	body, contentType, err := d.fetchBody(ctx, rawURL)
	if err != nil {
		return err
	}

	if isPDF(body) {
		return d.writeFile(targetPath, body)
	}

	if isHTML(contentType, body) {
		if !allowExtract {
			return fmt.Errorf("%w: viewer page led to another HTML page", ErrExtractFailed)
		}
		base, _ := url.Parse(rawURL)
		embedded := extractDocumentURL(body, base)
		if embedded == "" {
			return fmt.Errorf("%w: %s", ErrExtractFailed, rawURL)
		}
		d.logger.Debug(ctx, "Following embedded document link", observability.Fields{
			"viewer": rawURL,
			"target": embedded,
		})
		return d.fetchValidated(ctx, NormalizeURL(embedded), targetPath, false)
	}

	return fmt.Errorf("%w: %d bytes, content-type %q", ErrInvalidContent, len(body), contentType)
}

// fetchBody issues the GET with retry on blocking statuses and transport
// errors. Each retry waits strictly longer than the last.
func (d *Downloader) fetchBody(ctx context.Context, rawURL string) ([]byte, string, error) {
	var body []byte
	var contentType string

	policy := retry.Policy{
		MaxAttempts:    d.opts.MaxAttempts,
		InitialBackoff: d.opts.BaseBackoff,
		MaxBackoff:     d.opts.MaxBackoff,
		Multiplier:     2,
		Retryable: func(err error) bool {
			return errors.Is(err, ErrBlocked) || isTransient(err)
		},
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		d.setHeaders(req, rawURL)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			body = data
			contentType = resp.Header.Get("Content-Type")
			return nil

		case http.StatusForbidden, http.StatusTooManyRequests:
			return fmt.Errorf("%w: HTTP %d", ErrBlocked, resp.StatusCode)

		default:
			return fmt.Errorf("unexpected status HTTP %d", resp.StatusCode)
		}
	})

	return body, contentType, err
}

// setHeaders applies a rotating browser user-agent and a same-origin
// referer, which several datasheet hosts require.
func (d *Downloader) setHeaders(req *http.Request, rawURL string) {
	d.mu.Lock()
	ua := userAgents[d.rng.Intn(len(userAgents))]
	d.mu.Unlock()

	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/pdf,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	}
}

// writeFile persists a validated body, removing the partial file if the
// write fails.
func (d *Downloader) writeFile(targetPath string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(targetPath, body, 0644); err != nil {
		os.Remove(targetPath)
		return fmt.Errorf("write %s: %w", targetPath, err)
	}
	d.metrics.RecordFileSize("pdf", int64(len(body)))
	return nil
}

func isPDF(body []byte) bool {
	return len(body) > minPDFSize && bytes.HasPrefix(body, []byte(pdfMagic))
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 256)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// isTransient treats transport-level failures, including per-attempt
// timeouts, as retryable. Parent-context cancellation is handled by the
// retry loop itself.
func isTransient(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func categorize(err error) string {
	switch {
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrInvalidContent):
		return "invalid_content"
	case errors.Is(err, ErrExtractFailed):
		return "extract_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}
