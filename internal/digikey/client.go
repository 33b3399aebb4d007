package digikey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/br00k-3/Datasheet-Grabber/internal/manufacturer"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
	"github.com/br00k-3/Datasheet-Grabber/internal/ratelimit"
)

// recordCount is how many candidates a keyword search asks for.
const recordCount = 10

// Client searches the parts API for a manufacturer part number and picks
// the best matching product. One Client is shared per search worker; the
// rate limiter is shared across all of them.
type Client struct {
	httpClient *http.Client
	searchURL  string
	auth       *Authenticator
	resolver   *manufacturer.Resolver
	limiter    *ratelimit.Limiter
	logger     observability.Logger
	metrics    observability.Metrics

	// throttleCooldown pauses the issuing worker after an upstream 429
	// before surfacing ErrThrottled.
	throttleCooldown time.Duration
}

// NewClient creates a search client.
func NewClient(
	httpClient *http.Client,
	searchURL string,
	auth *Authenticator,
	resolver *manufacturer.Resolver,
	limiter *ratelimit.Limiter,
	throttleCooldown time.Duration,
	logger observability.Logger,
	metrics observability.Metrics,
) *Client {
	return &Client{
		httpClient:       httpClient,
		searchURL:        searchURL,
		auth:             auth,
		resolver:         resolver,
		limiter:          limiter,
		logger:           logger,
		metrics:          metrics,
		throttleCooldown: throttleCooldown,
	}
}

// Search resolves partNumber to a single ProductMatch.
//
// When the first search is ambiguous (several products carry the exact
// part number under different manufacturers) and a manufacturer hint is
// available, the search is retried once per resolved manufacturer id in
// priority order until one filter yields an unambiguous match. The
// resolver returns at most five candidates, bounding the retry fan-out.
//
// Errors: ErrNotFound, ErrAmbiguous, ErrThrottled (after a cool-down
// pause), ErrAuthFailed, or a wrapped transport error.
func (c *Client) Search(ctx context.Context, partNumber, manufacturerHint string) (*ProductMatch, error) {
	c.metrics.StartOperation("search")
	defer c.metrics.EndOperation("search")
	start := time.Now()
	defer func() {
		c.metrics.RecordDuration("search", time.Since(start).Seconds())
	}()

	products, err := c.searchOnce(ctx, partNumber, nil)
	if err != nil {
		return nil, err
	}

	if isAmbiguous(partNumber, products) {
		if manufacturerHint == "" {
			c.metrics.RecordError("search", "ambiguous")
			return nil, fmt.Errorf("%w: %q matches multiple manufacturers and no hint given", ErrAmbiguous, partNumber)
		}

		candidates := c.resolver.Resolve(manufacturerHint)
		if len(candidates) == 0 {
			c.metrics.RecordError("search", "ambiguous")
			return nil, fmt.Errorf("%w: hint %q resolved to no manufacturers", ErrAmbiguous, manufacturerHint)
		}

		resolved := false
		for _, id := range candidates {
			filtered, err := c.searchOnce(ctx, partNumber, []int{id})
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				c.logger.Warn(ctx, "Filtered search failed, trying next candidate", observability.Fields{
					"part":            partNumber,
					"manufacturer_id": id,
					"reason":          err.Error(),
				})
				continue
			}
			if len(filtered) > 0 && !isAmbiguous(partNumber, filtered) {
				products = filtered
				resolved = true
				break
			}
		}
		if !resolved {
			c.metrics.RecordError("search", "ambiguous")
			return nil, fmt.Errorf("%w: exhausted %d manufacturer candidates for %q", ErrAmbiguous, len(candidates), partNumber)
		}
	}

	match := bestMatch(partNumber, products)
	if match == nil {
		c.metrics.RecordError("search", "not_found")
		return nil, fmt.Errorf("%w: %q", ErrNotFound, partNumber)
	}

	c.metrics.RecordSuccess("search")
	return match, nil
}

// searchOnce performs one keyword search, optionally filtered to specific
// manufacturer ids. Authentication is ensured before every request.
func (c *Client) searchOnce(ctx context.Context, partNumber string, manufacturerIDs []int) ([]product, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := searchRequest{
		Keywords:    partNumber,
		RecordCount: recordCount,
		Filters:     searchFilters{ManufacturerIDs: manufacturerIDs},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-DIGIKEY-Client-Id", c.auth.ClientID())
	req.Header.Set("X-DIGIKEY-Locale-Site", "US")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var parsed searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		return parsed.Products, nil

	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, partNumber)

	case http.StatusTooManyRequests:
		c.metrics.RecordError("search", "throttled")
		c.logger.Warn(ctx, "Search throttled, cooling down", observability.Fields{
			"part":     partNumber,
			"cooldown": c.throttleCooldown.String(),
		})
		// Pause only this worker, then surface as retryable.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.throttleCooldown):
		}
		return nil, ErrThrottled

	default:
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}
}

// isAmbiguous reports whether the result set contains the exact part
// number under more than one manufacturer.
func isAmbiguous(partNumber string, products []product) bool {
	seen := make(map[int]bool)
	for _, p := range products {
		if strings.EqualFold(p.ManufacturerPartNumber, partNumber) {
			seen[p.Manufacturer.ID] = true
		}
	}
	return len(seen) > 1
}

// bestMatch picks the authoritative product: exact part-number match
// first, then prefix/contains in either direction, then the first Active
// product with a datasheet, then the first result.
func bestMatch(partNumber string, products []product) *ProductMatch {
	if len(products) == 0 {
		return nil
	}

	upper := strings.ToUpper(partNumber)

	for i := range products {
		if strings.ToUpper(products[i].ManufacturerPartNumber) == upper {
			return toMatch(&products[i])
		}
	}

	for i := range products {
		mpn := strings.ToUpper(products[i].ManufacturerPartNumber)
		if mpn != "" && (strings.Contains(mpn, upper) || strings.Contains(upper, mpn)) {
			return toMatch(&products[i])
		}
	}

	for i := range products {
		if products[i].ProductStatus == "Active" && products[i].DatasheetURL != "" {
			return toMatch(&products[i])
		}
	}

	return toMatch(&products[0])
}

func toMatch(p *product) *ProductMatch {
	return &ProductMatch{
		ManufacturerPartNumber: p.ManufacturerPartNumber,
		DigiKeyPartNumber:      p.DigiKeyPartNumber,
		ManufacturerName:       p.Manufacturer.Name,
		DatasheetURL:           p.DatasheetURL,
		Active:                 p.ProductStatus == "Active",
	}
}
