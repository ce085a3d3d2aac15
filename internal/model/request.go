package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TimestampLayout is the second-precision layout used for record timestamps
const TimestampLayout = "2006-01-02 15:04:05"

// Parameter is one user-defined key/value pair
type Parameter struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Variant selects the request shape
type Variant string

const (
	// VariantGeneric is the configurable API shape (GET query or POST form/json)
	VariantGeneric Variant = "generic"
	// VariantFixed is the fixed image-analysis shape (POST json with project_id)
	VariantFixed Variant = "fixed"
)

// Encoding selects the POST payload encoding for the generic variant
type Encoding string

const (
	EncodingForm Encoding = "form"
	EncodingJSON Encoding = "json"
)

// AuthType names the authentication scheme used by the fixed variant
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "apikey"
	AuthBasic  AuthType = "basic"
)

// ParseAuthType accepts the short names as well as the labels shown in forms
func ParseAuthType(s string) (AuthType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AuthNone, true
	case "bearer", "bearer token":
		return AuthBearer, true
	case "apikey", "api key", "api-key":
		return AuthAPIKey, true
	case "basic", "basic auth":
		return AuthBasic, true
	}
	return "", false
}

// Auth describes optional authentication for a dispatch
type Auth struct {
	Type   AuthType `json:"type"`
	Secret string   `json:"-"`
}

// RequestConfig is the immutable snapshot used for one dispatch
type RequestConfig struct {
	Endpoint  string            `json:"endpoint"`
	Method    string            `json:"method"`
	Variant   Variant           `json:"variant"`
	Encoding  Encoding          `json:"encoding,omitempty"`
	ImageURL  string            `json:"image_url"`
	ProjectID string            `json:"project_id,omitempty"`
	Auth      Auth              `json:"auth"`
	Params    map[string]string `json:"params"`
}

// ResponseRecord is the result of one successful dispatch
type ResponseRecord struct {
	Key        string            `json:"key"`
	Timestamp  time.Time         `json:"timestamp"`
	Endpoint   string            `json:"api_url"`
	ImageURL   string            `json:"image_url"`
	Method     string            `json:"method"`
	ProjectID  string            `json:"project_id,omitempty"`
	Params     map[string]string `json:"params"`
	StatusCode int               `json:"status_code"`
	Response   json.RawMessage   `json:"response"`
	DurationMs int64             `json:"duration_ms"`
}

// FormattedTime returns the record timestamp at second precision
func (r *ResponseRecord) FormattedTime() string {
	return r.Timestamp.Format(TimestampLayout)
}

// HistoryItem is one entry of the recent-runs listing
type HistoryItem struct {
	Key   string
	Label string
}

// Response is the raw outcome of an HTTP call
type Response struct {
	StatusCode int               `json:"status_code"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	DurationMs int64             `json:"duration_ms"`
}
