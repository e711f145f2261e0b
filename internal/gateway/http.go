package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Varun2365/funnelseye/internal/config"
	"github.com/Varun2365/funnelseye/internal/constants"
	"github.com/Varun2365/funnelseye/pkg/circuitbreaker"
	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
	"github.com/Varun2365/funnelseye/pkg/metrics"
	"github.com/Varun2365/funnelseye/pkg/retry"
)

// HTTPGateway POSTs JSON payloads to one configured provider endpoint,
// throttled by a token bucket and guarded by a circuit breaker. Responses
// classify as: 2xx success, 4xx fatal (redelivery cannot fix the payload),
// everything else retryable.
type HTTPGateway struct {
	name     string
	endpoint string
	headers  map[string]string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Wrapper
}

func NewHTTPGateway(name string, cfg config.GatewayConfig, breakerCfg config.CircuitBreakerConfig) *HTTPGateway {
	timeout := constants.DefaultHTTPTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps)
	}

	var breaker *circuitbreaker.Wrapper
	if breakerCfg.Enabled {
		bc := circuitbreaker.DefaultConfig(name)
		if breakerCfg.MaxRequests > 0 {
			bc.MaxRequests = breakerCfg.MaxRequests
		}
		if breakerCfg.Interval > 0 {
			bc.Interval = breakerCfg.Interval
		}
		if breakerCfg.Timeout > 0 {
			bc.Timeout = breakerCfg.Timeout
		}
		if breakerCfg.FailureRatio > 0 && breakerCfg.MinRequests > 0 {
			minRequests := breakerCfg.MinRequests
			failureRatio := breakerCfg.FailureRatio
			bc.ReadyToTrip = func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= minRequests && ratio >= failureRatio
			}
		}
		breaker = circuitbreaker.NewWrapper(bc)
	}

	return &HTTPGateway{
		name:     name,
		endpoint: cfg.Endpoint,
		headers:  cfg.Headers,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		breaker:  breaker,
	}
}

func (g *HTTPGateway) post(ctx context.Context, payload interface{}) error {
	if g.endpoint == "" {
		return apperrors.ErrValidation.WithMessage(fmt.Sprintf("gateway %s has no endpoint configured", g.name))
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return retry.NewRetryableError(err)
	}

	start := time.Now()
	var err error
	if g.breaker != nil {
		_, err = g.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
			return nil, g.doPost(ctx, payload)
		})
		g.breaker.RecordRequest(err == nil)
		if err != nil && !apperrors.IsFatal(err) {
			// Breaker-open errors arrive untyped from gobreaker.
			err = retry.NewRetryableError(err)
		}
	} else {
		err = g.doPost(ctx, payload)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveGatewayRequest(g.name, status, time.Since(start))

	return err
}

func (g *HTTPGateway) doPost(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal).AsFatal()
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return retry.NewRetryableError(fmt.Errorf("%s request failed: %w", g.name, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("%s rejected request with status %d", g.name, resp.StatusCode)).
			AsFatal()
	default:
		return retry.NewRetryableError(fmt.Errorf("%s returned status %d", g.name, resp.StatusCode))
	}
}

type HTTPWhatsAppSender struct{ *HTTPGateway }

func NewWhatsAppSender(cfg config.GatewayConfig, breakerCfg config.CircuitBreakerConfig) *HTTPWhatsAppSender {
	return &HTTPWhatsAppSender{NewHTTPGateway("whatsapp", cfg, breakerCfg)}
}

func (s *HTTPWhatsAppSender) SendWhatsApp(ctx context.Context, msg WhatsAppMessage) error {
	return s.post(ctx, msg)
}

type HTTPEmailSender struct{ *HTTPGateway }

func NewEmailSender(cfg config.GatewayConfig, breakerCfg config.CircuitBreakerConfig) *HTTPEmailSender {
	return &HTTPEmailSender{NewHTTPGateway("email", cfg, breakerCfg)}
}

func (s *HTTPEmailSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	return s.post(ctx, msg)
}

type HTTPSMSSender struct{ *HTTPGateway }

func NewSMSSender(cfg config.GatewayConfig, breakerCfg config.CircuitBreakerConfig) *HTTPSMSSender {
	return &HTTPSMSSender{NewHTTPGateway("sms", cfg, breakerCfg)}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, msg SMSMessage) error {
	return s.post(ctx, msg)
}

type HTTPCalendarClient struct{ *HTTPGateway }

func NewCalendarClient(cfg config.GatewayConfig, breakerCfg config.CircuitBreakerConfig) *HTTPCalendarClient {
	return &HTTPCalendarClient{NewHTTPGateway("calendar", cfg, breakerCfg)}
}

func (c *HTTPCalendarClient) CreateEvent(ctx context.Context, event CalendarEvent) error {
	return c.post(ctx, event)
}

type HTTPInternalNotifier struct{ *HTTPGateway }

func NewInternalNotifier(cfg config.GatewayConfig, breakerCfg config.CircuitBreakerConfig) *HTTPInternalNotifier {
	return &HTTPInternalNotifier{NewHTTPGateway("internal", cfg, breakerCfg)}
}

func (n *HTTPInternalNotifier) Notify(ctx context.Context, notification Notification) error {
	return n.post(ctx, notification)
}
