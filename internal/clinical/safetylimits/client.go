package safetylimits

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/carelog/go-dpe/pkg/circuitbreaker"
)

// Client resolves dose ceilings from a remote formulary service, falling
// back to the static table when the service is unavailable or the circuit
// is open. A nil Client (no formulary configured) is valid and always
// serves static ceilings.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a formulary client.
func NewClient(baseURL string, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

type limitResponse struct {
	Class      string  `json:"class"`
	MaxPerDose float64 `json:"max_per_dose"`
}

// CeilingFor returns the per-dose ceiling for class. The remote lookup runs
// through the circuit breaker; any failure degrades to the static table so
// validation never blocks on the formulary service.
func (c *Client) CeilingFor(ctx context.Context, class string) float64 {
	if c == nil || c.baseURL == "" {
		return CeilingFor(class)
	}

	result, err := c.breaker.ExecuteWithFallback(ctx,
		func() (interface{}, error) { return c.fetch(ctx, class) },
		func(err error) (interface{}, error) {
			c.logger.Warn("formulary circuit open, using static ceiling",
				zap.String("class", class), zap.Error(err))
			return CeilingFor(class), nil
		})
	if err != nil {
		c.logger.Warn("formulary lookup failed, using static ceiling",
			zap.String("class", class), zap.Error(err))
		return CeilingFor(class)
	}

	ceiling, ok := result.(float64)
	if !ok || ceiling <= 0 {
		return CeilingFor(class)
	}
	return ceiling
}

func (c *Client) fetch(ctx context.Context, class string) (float64, error) {
	url := fmt.Sprintf("%s/limits/%s", c.baseURL, normalize(class))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("formulary returned status %d", resp.StatusCode)
	}

	var body limitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode formulary response: %w", err)
	}
	return body.MaxPerDose, nil
}
