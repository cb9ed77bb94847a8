package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maximepiton/raspit/pkg/logger"
	"golang.org/x/time/rate"
)

// maxDocumentBytes bounds the size of an upstream document
const maxDocumentBytes = 32 << 20

// Source yields a freshly fetched dataset
type Source interface {
	Fetch(ctx context.Context) (*Dataset, error)
}

// HistorySource also yields previous days. Datasets come newest first.
type HistorySource interface {
	Source
	FetchHistory(ctx context.Context, days int) ([]*Dataset, error)
}

// DayParam is the query parameter selecting a previous day upstream
const DayParam = "last_x_day"

// Client fetches forecast documents over HTTP
type Client struct {
	config      SourceConfig
	schema      Schema
	httpClient  *http.Client
	limiter     *rate.Limiter
	backoffBase time.Duration
	logger      *logger.Logger
}

// NewClient creates a new forecast client
func NewClient(config SourceConfig, logger *logger.Logger) (*Client, error) {
	schema, err := SchemaByName(config.Schema)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.RequestsPerMinute > 0 {
		limit = rate.Limit(config.RequestsPerMinute / 60)
	}
	// One refresh asks for every day at once
	burst := config.HistoryDays
	if burst < 1 {
		burst = 1
	}

	return &Client{
		config: config,
		schema: schema,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		limiter:     rate.NewLimiter(limit, burst),
		backoffBase: 500 * time.Millisecond,
		logger:      logger.Named("forecast-client"),
	}, nil
}

// Fetch downloads and decodes the latest forecast document
func (c *Client) Fetch(ctx context.Context) (*Dataset, error) {
	return c.fetchDay(ctx, 0)
}

// FetchHistory downloads today's document and up to days-1 previous ones.
// A failing previous day ends the history without failing the refresh.
func (c *Client) FetchHistory(ctx context.Context, days int) ([]*Dataset, error) {
	latest, err := c.fetchDay(ctx, 0)
	if err != nil {
		return nil, err
	}

	history := []*Dataset{latest}
	for day := 1; day < days; day++ {
		ds, err := c.fetchDay(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Previous forecast unavailable, history truncated",
				logger.Int("last_x_day", day),
				logger.Error(err))
			break
		}
		history = append(history, ds)
	}
	return history, nil
}

func (c *Client) fetchDay(ctx context.Context, day int) (*Dataset, error) {
	requestURL, err := DayURL(c.config.SourceURL, day)
	if err != nil {
		return nil, err
	}

	body, err := c.fetchWithRetry(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	ds, err := Decode(body, c.schema)
	if err != nil {
		c.logger.Error("Upstream forecast rejected",
			logger.String("url", requestURL),
			logger.String("schema", c.schema.Name),
			logger.Error(err))
		return nil, err
	}

	c.logger.Debug("Forecast decoded",
		logger.Int("last_x_day", day),
		logger.Int("hours", len(ds.Hours)),
		logger.Int("bytes", len(body)))
	return ds, nil
}

// DayURL returns the source URL asking for the forecast of day days ago.
// Day 0 is the source URL itself.
func DayURL(sourceURL string, day int) (string, error) {
	if day <= 0 {
		return sourceURL, nil
	}
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("invalid source url: %w", err)
	}
	q := u.Query()
	q.Set(DayParam, strconv.Itoa(day))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchWithRetry performs the HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := c.backoffBase * time.Duration(1<<uint(attempt-1))
			c.logger.Info("Retrying forecast fetch",
				logger.String("url", url),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoffDuration.String()))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait canceled: %w", err)
		}

		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched forecast after retries",
					logger.String("url", url),
					logger.Int("attempts_needed", attempt+1))
			}
			return body, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("Forecast request failed, may retry",
			logger.String("url", url),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	c.logger.Error("All attempts to fetch forecast failed",
		logger.String("url", url),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building forecast request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request to forecast source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading forecast body: %w", err)
	}
	return body, nil
}
