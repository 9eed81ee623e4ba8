package registry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/TermDeck/backend/internal/infrastructure/resilience"
)

// HTTPClient talks to a remote session registry over JSON/HTTP with
// retries, rate limiting, and a circuit breaker.
type HTTPClient struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	baseURL string
}

// HTTPConfig configures the HTTP client. RateLimitRPS caps outgoing
// registry calls; zero or negative means unlimited.
type HTTPConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RateLimitRPS float64
}

type errorEnvelope struct {
	Error string `json:"error"`
}

type listResponse struct {
	Sessions []Session `json:"sessions"`
}

// NewHTTPClient creates a registry client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "TermDeck/1.0").
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	breaker := resilience.New("session-registry", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.RateLimitRPS)+1)
	}

	return &HTTPClient{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		baseURL: cfg.BaseURL,
	}
}

// BreakerState returns the circuit breaker state for diagnostics.
func (c *HTTPClient) BreakerState() resilience.State {
	return c.breaker.State()
}

// ListSessions returns every session alive on the backend.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]Session, error) {
	var out listResponse
	resp, err := c.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&out).Get("/sessions")
	})
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// CreateSession starts a new plain terminal.
func (c *HTTPClient) CreateSession(ctx context.Context, reqBody CreateRequest) (*Session, error) {
	var out Session
	resp, err := c.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(reqBody).SetResult(&out).Post("/sessions")
	})
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAgentSession starts a terminal pre-wired to run an agent command.
func (c *HTTPClient) CreateAgentSession(ctx context.Context, reqBody CreateAgentRequest) (*Session, error) {
	if reqBody.WorkDir == "" {
		return nil, fmt.Errorf("%w: agent session requires work_dir", ErrConfigUnavailable)
	}

	var out Session
	resp, err := c.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetBody(reqBody).SetResult(&out).Post("/sessions/agent")
	})
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseSession requests termination. A 404 from the backend is swallowed:
// the session already being gone is the outcome the caller asked for.
func (c *HTTPClient) CloseSession(ctx context.Context, sessionID string) error {
	resp, err := c.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", sessionID).Delete("/sessions/{id}")
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return c.checkStatus(resp)
}

// SwitchProvider reconfigures a live session's upstream routing.
func (c *HTTPClient) SwitchProvider(ctx context.Context, sessionID, configID string) error {
	body := map[string]string{"config_id": configID}
	resp, err := c.execute(ctx, func(req *resty.Request) (*resty.Response, error) {
		return req.SetPathParam("id", sessionID).SetBody(body).Post("/sessions/{id}/provider")
	})
	if err != nil {
		return err
	}
	return c.checkStatus(resp)
}

// execute runs one request through the limiter and circuit breaker.
func (c *HTTPClient) execute(ctx context.Context, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := fn(c.resty.R().SetContext(ctx).SetError(&errorEnvelope{}))
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker; 4xx is a caller problem.
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("registry returned %s", resp.Status())
		}
		return resp, nil
	})
	if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrTransport)
	}
	if err != nil {
		if result != nil {
			// Breaker-failed 5xx still carries a response worth decoding.
			return result.(*resty.Response), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return result.(*resty.Response), nil
}

// checkStatus maps HTTP status codes onto the error taxonomy.
func (c *HTTPClient) checkStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	message := resp.Status()
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error != "" {
		message = env.Error
	}

	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, message)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrConfigUnavailable, message)
	default:
		return fmt.Errorf("%w: %s", ErrTransport, message)
	}
}
