package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/portfolio-ledger/internal/apperrors"
	"github.com/quantfolio/portfolio-ledger/internal/model"
)

// Client is an HTTP Provider implementation against a chart-style finance
// API. Requests are retried with fibonacci backoff at this infrastructure
// boundary; once the retry budget is exhausted the error surfaces as fatal
// for the affected portfolio/date only.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   uint64
}

// NewClient creates a provider client. timeout bounds each individual HTTP
// call; attempts is the total retry budget per request.
func NewClient(baseURL string, timeout time.Duration, attempts uint64) *Client {
	if attempts == 0 {
		attempts = 1
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   attempts,
	}
}

// chartResponse maps the chart API response format.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency         string `json:"currency"`
				Symbol           string `json:"symbol"`
				ExchangeName     string `json:"exchangeName"`
				FullExchangeName string `json:"fullExchangeName"`
				LongName         string `json:"longName"`
				Sector           string `json:"sector"`
				Industry         string `json:"industry"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *string `json:"error"`
	} `json:"chart"`
}

// fundamentalsResponse maps the fundamentals endpoint response format.
type fundamentalsResponse struct {
	Symbol    string  `json:"symbol"`
	EPS       *string `json:"eps"`
	PERatio   *string `json:"peRatio"`
	MarketCap *string `json:"marketCap"`
	AsOf      string  `json:"asOf"`
}

// GetDailyClose implements Provider.
func (c *Client) GetDailyClose(ctx context.Context, symbol string, date time.Time) (model.Price, error) {
	// Query a few days either side so holidays around the target do not
	// produce an empty result set.
	start := date.AddDate(0, 0, -7)
	end := date.AddDate(0, 0, 1)
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		c.baseURL, symbol, start.Unix(), end.Unix())

	chart, err := c.queryChart(ctx, url)
	if err != nil {
		return model.Price{}, err
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return model.Price{}, fmt.Errorf("%w: %s", apperrors.ErrPriceNotFound, symbol)
	}
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return model.Price{}, fmt.Errorf("mismatched data lengths for %s", symbol)
	}

	target := date.UTC().Truncate(24 * time.Hour)
	for i, ts := range result.Timestamp {
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		if day.Equal(target) {
			return model.Price{
				Symbol: symbol,
				Date:   day,
				Close:  decimal.NewFromFloat(closes[i]),
			}, nil
		}
	}

	return model.Price{}, fmt.Errorf("%w: %s on %s",
		apperrors.ErrPriceNotFound, symbol, target.Format("2006-01-02"))
}

// GetCompanyProfile implements Provider.
func (c *Client) GetCompanyProfile(ctx context.Context, symbol string) (model.Company, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", c.baseURL, symbol)

	chart, err := c.queryChart(ctx, url)
	if err != nil {
		return model.Company{}, err
	}

	meta := chart.Chart.Result[0].Meta
	if meta.Symbol == "" {
		return model.Company{}, fmt.Errorf("%w: %s", apperrors.ErrCompanyNotFound, symbol)
	}

	return model.Company{
		Symbol:   symbol,
		Name:     meta.LongName,
		Sector:   meta.Sector,
		Industry: meta.Industry,
		Exchange: meta.FullExchangeName,
		Currency: meta.Currency,
	}, nil
}

// GetFundamentals implements Provider.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	url := fmt.Sprintf("%s/v11/finance/fundamentals/%s", c.baseURL, symbol)

	body, err := c.get(ctx, url)
	if err != nil {
		return model.Fundamentals{}, err
	}

	var resp fundamentalsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.Fundamentals{}, fmt.Errorf("failed to parse fundamentals response: %w", err)
	}

	if resp.EPS == nil || resp.AsOf == "" {
		return model.Fundamentals{}, fmt.Errorf("%w: %s", apperrors.ErrFundamentalsNotReady, symbol)
	}

	f := model.Fundamentals{Symbol: symbol}
	if f.EPS, err = decimal.NewFromString(*resp.EPS); err != nil {
		return model.Fundamentals{}, fmt.Errorf("invalid eps for %s: %w", symbol, err)
	}
	if resp.PERatio != nil {
		if f.PERatio, err = decimal.NewFromString(*resp.PERatio); err != nil {
			return model.Fundamentals{}, fmt.Errorf("invalid pe ratio for %s: %w", symbol, err)
		}
	}
	if resp.MarketCap != nil {
		if f.MarketCap, err = decimal.NewFromString(*resp.MarketCap); err != nil {
			return model.Fundamentals{}, fmt.Errorf("invalid market cap for %s: %w", symbol, err)
		}
	}
	if f.AsOf, err = time.Parse("2006-01-02", resp.AsOf); err != nil {
		return model.Fundamentals{}, fmt.Errorf("invalid as-of date for %s: %w", symbol, err)
	}

	return f, nil
}

// queryChart fetches and validates a chart endpoint response.
func (c *Client) queryChart(ctx context.Context, url string) (chartResponse, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return chartResponse{}, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return chartResponse{}, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if resp.Chart.Error != nil {
		return chartResponse{}, fmt.Errorf("provider error: %s", *resp.Chart.Error)
	}
	if len(resp.Chart.Result) == 0 {
		return chartResponse{}, fmt.Errorf("no results returned")
	}

	return resp, nil
}

// get executes one HTTP GET with the configured retry budget. Server errors
// and transport failures are retryable; client errors are not.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("provider returned status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("provider returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProviderUnavailable, err)
	}

	return body, nil
}
