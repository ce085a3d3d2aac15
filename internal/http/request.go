package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"sort"
	"strings"

	"imgapi/internal/model"
)

// Field names fixed by the request shapes
const (
	FieldImageFile = "image_file"
	FieldImage     = "image"
	FieldImageURL  = "image_url"
	FieldProjectID = "project_id"

	defaultImageType = "image/jpeg"
)

// Request is a fully built outbound request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Image holds fetched image bytes
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
}

// BuildParams converts the parameter list into a mapping. Entries with an empty
// key are dropped; duplicate keys keep the last value.
func BuildParams(params []model.Parameter) map[string]string {
	result := make(map[string]string, len(params))
	for _, p := range params {
		if p.Key == "" {
			continue
		}
		result[p.Key] = p.Value
	}
	return result
}

// Validate checks the preconditions for building cfg
func Validate(cfg *model.RequestConfig) error {
	if cfg.Endpoint == "" || cfg.ImageURL == "" {
		return &model.ValidationError{Message: "please enter both API URL and Image URL"}
	}
	if err := ValidateURL(cfg.Endpoint); err != nil {
		return &model.ValidationError{Field: "endpoint", Message: err.Error()}
	}
	if err := ValidateURL(cfg.ImageURL); err != nil {
		return &model.ValidationError{Field: "image", Message: err.Error()}
	}

	switch cfg.Variant {
	case model.VariantFixed:
		if cfg.ProjectID == "" {
			return &model.ValidationError{Field: "project", Message: "a project id is required"}
		}
		switch cfg.Auth.Type {
		case model.AuthNone, "":
		case model.AuthBearer, model.AuthAPIKey, model.AuthBasic:
			if cfg.Auth.Secret == "" {
				return &model.ValidationError{Field: "secret", Message: "the selected auth type needs a secret"}
			}
		default:
			return &model.ValidationError{Field: "auth", Message: "unknown auth type " + string(cfg.Auth.Type)}
		}
	case model.VariantGeneric, "":
		switch strings.ToUpper(cfg.Method) {
		case http.MethodGet:
		case http.MethodPost:
			if cfg.Encoding != model.EncodingForm && cfg.Encoding != model.EncodingJSON {
				return &model.ValidationError{Field: "encoding", Message: "must be form or json"}
			}
		default:
			return &model.ValidationError{Field: "method", Message: "must be GET or POST"}
		}
	default:
		return &model.ValidationError{Field: "variant", Message: "must be generic or fixed"}
	}
	return nil
}

// NeedsImageBytes reports whether cfg requires the image to be fetched before dispatch
func NeedsImageBytes(cfg *model.RequestConfig) bool {
	return cfg.Variant != model.VariantFixed && strings.ToUpper(cfg.Method) == http.MethodPost
}

// Build converts cfg into a Request. img must be set when NeedsImageBytes(cfg).
func Build(cfg *model.RequestConfig, img *Image) (*Request, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.Variant == model.VariantFixed {
		return buildFixed(cfg)
	}

	if strings.ToUpper(cfg.Method) == http.MethodGet {
		return buildQuery(cfg)
	}

	if img == nil {
		return nil, &model.ValidationError{Field: "image", Message: "image bytes were not fetched"}
	}
	if cfg.Encoding == model.EncodingJSON {
		return buildJSONUpload(cfg, img)
	}
	return buildMultipart(cfg, img)
}

func buildQuery(cfg *model.RequestConfig) (*Request, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, &model.ValidationError{Field: "endpoint", Message: err.Error()}
	}

	q := u.Query()
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	q.Set(FieldImageURL, cfg.ImageURL)
	u.RawQuery = q.Encode()

	return &Request{
		Method:  http.MethodGet,
		URL:     u.String(),
		Headers: map[string]string{},
	}, nil
}

func buildJSONUpload(cfg *model.RequestConfig, img *Image) (*Request, error) {
	payload := make(map[string]any, len(cfg.Params)+1)
	for k, v := range cfg.Params {
		payload[k] = v
	}
	payload[FieldImage] = base64.StdEncoding.EncodeToString(img.Data)

	return jsonRequest(cfg.Endpoint, payload, nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// fileContentDisposition is the form-data header of a file part
func fileContentDisposition(field, filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename))
}

func buildMultipart(cfg *model.RequestConfig, img *Image) (*Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	contentType := img.ContentType
	if contentType == "" {
		contentType = defaultImageType
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fileContentDisposition(FieldImageFile, img.Filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, err
	}

	// Sorted for a stable body; the server sees a form, not an ordered list.
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writer.WriteField(k, cfg.Params[k]); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return &Request{
		Method: http.MethodPost,
		URL:    cfg.Endpoint,
		Headers: map[string]string{
			"Content-Type": writer.FormDataContentType(),
		},
		Body: body.Bytes(),
	}, nil
}

func buildFixed(cfg *model.RequestConfig) (*Request, error) {
	payload := make(map[string]any, len(cfg.Params)+2)
	for k, v := range cfg.Params {
		payload[k] = v
	}
	payload[FieldProjectID] = cfg.ProjectID
	payload[FieldImageURL] = cfg.ImageURL

	return jsonRequest(cfg.Endpoint, payload, AuthHeaders(cfg.Auth))
}

func jsonRequest(endpoint string, payload map[string]any, extra map[string]string) (*Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range extra {
		headers[k] = v
	}

	return &Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: headers,
		Body:    body,
	}, nil
}

// AuthHeaders returns the headers for auth. At most one header is produced.
// Basic encodes the raw secret as-is, it is not split into user and password.
func AuthHeaders(auth model.Auth) map[string]string {
	switch auth.Type {
	case model.AuthBearer:
		return map[string]string{"Authorization": "Bearer " + auth.Secret}
	case model.AuthAPIKey:
		return map[string]string{"X-API-Key": auth.Secret}
	case model.AuthBasic:
		return map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(auth.Secret))}
	}
	return map[string]string{}
}

func imageFilename(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	parts := strings.Split(imageURL, "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return "image"
}

func imageContentType(header string, data []byte) string {
	if strings.HasPrefix(header, "image/") {
		return header
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return defaultImageType
}
