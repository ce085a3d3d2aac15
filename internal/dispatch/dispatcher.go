// Package dispatch executes one request per run and classifies the outcome.
//
// A run is: validate, optionally fetch the image bytes, build, send, then
// classify. Only a 200/201 response with a JSON body yields a record; every
// other outcome is one of the error types in the model package. There are no
// retries.
package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
)

// Dispatcher turns a RequestConfig into a ResponseRecord
type Dispatcher struct {
	client *httpclient.Client
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the diagnostic logger
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the clock used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a Dispatcher sending through client
func New(client *httpclient.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: client,
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch performs exactly one API call for cfg
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *model.RequestConfig) (*model.ResponseRecord, error) {
	if err := httpclient.Validate(cfg); err != nil {
		return nil, err
	}

	var img *httpclient.Image
	if httpclient.NeedsImageBytes(cfg) {
		d.logger.Printf("fetching image %s", cfg.ImageURL)
		fetched, err := d.client.FetchImage(ctx, cfg.ImageURL)
		if err != nil {
			return nil, &model.TransportError{Stage: "image", Err: err}
		}
		d.logger.Printf("fetched %d bytes (%s)", len(fetched.Data), fetched.ContentType)
		img = fetched
	}

	req, err := httpclient.Build(cfg, img)
	if err != nil {
		return nil, err
	}

	d.logger.Printf("%s %s", req.Method, req.URL)
	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, &model.TransportError{Stage: "api", Err: err}
	}
	d.logger.Printf("%s in %dms", resp.Status, resp.DurationMs)

	body, err := Classify(resp)
	if err != nil {
		return nil, err
	}

	return &model.ResponseRecord{
		Timestamp:  d.now().Truncate(time.Second),
		Endpoint:   cfg.Endpoint,
		ImageURL:   cfg.ImageURL,
		Method:     echoedMethod(cfg),
		ProjectID:  cfg.ProjectID,
		Params:     copyParams(cfg.Params),
		StatusCode: resp.StatusCode,
		Response:   body,
		DurationMs: resp.DurationMs,
	}, nil
}

// IsSuccessStatus reports whether code counts as a successful dispatch
func IsSuccessStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated
}

// Classify maps a raw response to its JSON body or to a NonJSONResponseError/APIError
func Classify(resp *model.Response) (json.RawMessage, error) {
	body := []byte(resp.Body)

	if !IsSuccessStatus(resp.StatusCode) {
		apiErr := &model.APIError{StatusCode: resp.StatusCode, Body: resp.Body}
		var decoded any
		if json.Unmarshal(body, &decoded) == nil {
			apiErr.JSON = decoded
		}
		return nil, apiErr
	}

	if !json.Valid(body) {
		return nil, &model.NonJSONResponseError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	return json.RawMessage(body), nil
}

func echoedMethod(cfg *model.RequestConfig) string {
	if cfg.Variant == model.VariantFixed {
		return http.MethodPost
	}
	return strings.ToUpper(cfg.Method)
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
