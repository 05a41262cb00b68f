package settlement

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"golang.org/x/time/rate"
)

type contextKey int

const (
	// Marks read-only requests that may be retried upon server errors
	contextIdempotent contextKey = iota
)

func idempotent(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextIdempotent, true)
}

type clientConfig struct {
	Url                 string
	RequestTimeout      time.Duration
	DialerTimeout       time.Duration
	DialerKeepAlive     time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration
	LimiterInterval     time.Duration
	LimiterBurstSize    int
	ReadRetryCount      int
}

type baseClient struct {
	client  *resty.Client
	config  clientConfig
	log     *logrus.Entry
	limiter *rate.Limiter
}

func newBaseClient(name string, config clientConfig) (self *baseClient) {
	self = new(baseClient)
	self.config = config
	self.log = logger.NewSublogger(name)

	if config.LimiterInterval > 0 {
		burst := config.LimiterBurstSize
		if burst < 1 {
			burst = 1
		}
		self.limiter = rate.NewLimiter(rate.Every(config.LimiterInterval), burst)
	}

	self.client =
		resty.New().
			SetBaseURL(config.Url).
			SetTimeout(config.RequestTimeout).
			SetHeader("User-Agent", "shadowlink").
			SetHeader("Content-Type", "application/json").
			SetRetryCount(config.ReadRetryCount).
			SetRetryWaitTime(100 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			SetLogger(newRestyLogger(name + "-resty")).
			SetTransport(self.createTransport()).
			AddRetryCondition(self.onRetryCondition).
			OnBeforeRequest(self.onRateLimit).
			OnAfterResponse(self.onStatusToError)

	return
}

func (self *baseClient) createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   self.config.DialerTimeout,
		KeepAlive: self.config.DialerKeepAlive,
	}

	return &http.Transport{
		// Some config options disable http2, try it anyway
		ForceAttemptHTTP2: true,

		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   self.config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       self.config.IdleConnTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       10,
	}
}

func (self *baseClient) onStatusToError(c *resty.Client, resp *resty.Response) error {
	// Non-success status code turns into an error
	if resp.IsSuccess() {
		return nil
	}
	if resp.StatusCode() > 399 && resp.StatusCode() < 500 {
		self.log.WithField("status", resp.StatusCode()).
			WithField("resp", string(resp.Body())).
			WithField("url", resp.Request.URL).
			Debug("Bad request")
	}
	return fmt.Errorf("%w: unexpected status: %s", ErrBadResponse, resp.Status())
}

// Returns true if request should be retried. Only read-only requests are retried, never submissions.
func (self *baseClient) onRetryCondition(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}

	isIdempotent, ok := resp.Request.Context().Value(contextIdempotent).(bool)
	if !ok || !isIdempotent {
		return false
	}

	// Server side errors may be retried
	return resp.StatusCode() >= 500
}

func (self *baseClient) onRateLimit(c *resty.Client, req *resty.Request) (err error) {
	if self.limiter == nil {
		return nil
	}

	// Blocks till the request is possible
	// Or ctx gets canceled
	err = self.limiter.Wait(req.Context())
	if err != nil {
		self.log.WithError(err).Error("Rate limiting failed")
	}
	return
}
