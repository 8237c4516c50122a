package dispatch

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"github.com/valyala/fasthttp"
)

type Config struct {
	CommandEndpoint string
	CardEndpoint    string
	IntentEndpoint  string
	Timeout         time.Duration
	Rate            float64
	Burst           int
}

func ReadConfig() Config {
	return Config{
		CommandEndpoint: viper.GetString("commands.endpoint"),
		CardEndpoint:    viper.GetString("commands.card_endpoint"),
		IntentEndpoint:  viper.GetString("commands.intent_endpoint"),
		Timeout:         viper.GetDuration("commands.timeout"),
		Rate:            viper.GetFloat64("commands.rate"),
		Burst:           viper.GetInt("commands.burst"),
	}
}

// Dispatcher talks to the external command, card and intent services.
type Dispatcher struct {
	cfg      Config
	client   *fasthttp.Client
	limiters *limiterPool
}

func New(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg: cfg,
		client: &fasthttp.Client{
			Name:                     "chatcore",
			ReadTimeout:              cfg.Timeout,
			WriteTimeout:             cfg.Timeout,
			NoDefaultUserAgentHeader: true,
		},
		limiters: newLimiterPool(cfg.Rate, cfg.Burst),
	}
}

// D is the dispatcher configured at startup.
var D *Dispatcher

// call posts body as JSON with the bearer credential and decodes the answer.
func (v *Dispatcher) call(ctx context.Context, endpoint, credential string, body any, out any) error {
	if len(endpoint) == 0 {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	raw, err := jsoniter.Marshal(body)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if len(credential) > 0 {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+credential)
	}
	req.SetBodyRaw(raw)

	deadline := time.Now().Add(v.cfg.Timeout)
	if val, ok := ctx.Deadline(); ok && val.Before(deadline) {
		deadline = val
	}
	if err := v.client.DoDeadline(req, resp, deadline); err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	var failure struct {
		Error string `json:"error"`
	}
	_ = jsoniter.Unmarshal(resp.Body(), &failure)

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		if len(failure.Error) == 0 {
			failure.Error = fasthttp.StatusMessage(status)
		}
		return &ServiceError{Status: status, Message: failure.Error}
	} else if len(failure.Error) > 0 {
		return &ServiceError{Status: status, Message: failure.Error}
	}

	if out != nil {
		if err := jsoniter.Unmarshal(resp.Body(), out); err != nil {
			return &ServiceError{Status: status, Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}
