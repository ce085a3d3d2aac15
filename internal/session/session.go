// Package session holds the state of one interactive session: the request
// form, the parameter list, the run history, the current response and its
// edit buffer. Every exported method is a state transition; callers render
// the view from the accessors afterwards.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"imgapi/internal/config"
	"imgapi/internal/dispatch"
	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
	"imgapi/internal/storage"
)

// Form is the editable request configuration
type Form struct {
	Endpoint  string
	ImageURL  string
	Method    string
	Variant   model.Variant
	Encoding  model.Encoding
	ProjectID string
	Auth      model.Auth
}

// Session is the Request/Response Session Manager
type Session struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	history    *storage.HistoryStore
	logger     *log.Logger
	now        func() time.Time

	form    Form
	params  *ParameterSet
	current *model.ResponseRecord
	editor  *EditBuffer
	busy    atomic.Bool
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the diagnostic logger
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for export names
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New starts a session with an empty history and the form seeded from cfg
func New(cfg *config.Config, d *dispatch.Dispatcher, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	history, err := storage.NewHistoryStore()
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		dispatcher: d,
		history:    history,
		logger:     log.New(io.Discard, "", 0),
		now:        time.Now,
		form: Form{
			Endpoint:  cfg.Endpoint,
			Method:    strings.ToUpper(cfg.Method),
			Variant:   model.Variant(cfg.Variant),
			Encoding:  model.Encoding(cfg.Encoding),
			ProjectID: cfg.DefaultProject,
			Auth:      model.Auth{Type: model.AuthNone},
		},
		params: NewParameterSet(cfg.Params),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close discards the session history
func (s *Session) Close() error {
	return s.history.Close()
}

// Form returns a copy of the request form
func (s *Session) Form() Form {
	return s.form
}

// Params returns the parameter editor
func (s *Session) Params() *ParameterSet {
	return s.params
}

// Config returns the configuration the session was started with
func (s *Session) Config() *config.Config {
	return s.cfg
}

// SetField updates one form field by name
func (s *Session) SetField(name, value string) error {
	value = strings.TrimSpace(value)

	switch strings.ToLower(name) {
	case "endpoint", "api", "url":
		s.form.Endpoint = value
	case "image", "image_url":
		s.form.ImageURL = value
	case "method":
		m := strings.ToUpper(value)
		if m != "GET" && m != "POST" {
			return &model.ValidationError{Field: "method", Message: "must be GET or POST"}
		}
		s.form.Method = m
	case "encoding":
		e := model.Encoding(strings.ToLower(value))
		if e != model.EncodingForm && e != model.EncodingJSON {
			return &model.ValidationError{Field: "encoding", Message: "must be form or json"}
		}
		s.form.Encoding = e
	case "variant":
		v := model.Variant(strings.ToLower(value))
		if v != model.VariantGeneric && v != model.VariantFixed {
			return &model.ValidationError{Field: "variant", Message: "must be generic or fixed"}
		}
		s.form.Variant = v
	case "project", "project_id":
		if value != "" && !s.cfg.HasProject(value) {
			return &model.ValidationError{Field: "project", Message: fmt.Sprintf("must be one of %s", strings.Join(s.cfg.Projects, ", "))}
		}
		s.form.ProjectID = value
	case "auth":
		t, ok := model.ParseAuthType(value)
		if !ok {
			return &model.ValidationError{Field: "auth", Message: "must be none, bearer, apikey or basic"}
		}
		s.form.Auth.Type = t
	case "secret":
		s.form.Auth.Secret = value
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

// Snapshot freezes the form into the RequestConfig for one dispatch
func (s *Session) Snapshot() (*model.RequestConfig, error) {
	f := s.form
	cfg := &model.RequestConfig{
		Endpoint:  s.cfg.ResolveAlias(f.Endpoint),
		ImageURL:  f.ImageURL,
		Method:    f.Method,
		Variant:   f.Variant,
		Encoding:  f.Encoding,
		ProjectID: f.ProjectID,
		Auth:      f.Auth,
		Params:    s.params.Map(),
	}
	if cfg.Variant == "" {
		cfg.Variant = model.VariantGeneric
	}
	if cfg.Variant == model.VariantFixed {
		cfg.Method = "POST"
		if cfg.ProjectID != "" && !s.cfg.HasProject(cfg.ProjectID) {
			return nil, &model.ValidationError{Field: "project", Message: "project " + cfg.ProjectID + " is not configured"}
		}
	} else {
		cfg.Auth = model.Auth{Type: model.AuthNone}
	}

	if err := httpclient.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Busy reports whether a dispatch is outstanding
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Run dispatches the current form once. On success the record is added to
// history and becomes current; on any error history and current are untouched.
func (s *Session) Run(ctx context.Context) (*model.ResponseRecord, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, model.ErrBusy
	}
	defer s.busy.Store(false)

	cfg, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	rec, err := s.dispatcher.Dispatch(ctx, cfg)
	if err != nil {
		s.logger.Printf("run failed: %v", err)
		return nil, err
	}

	editor, err := NewEditBuffer(rec)
	if err != nil {
		return nil, err
	}

	if _, err := s.history.RecordSuccess(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Printf("recorded %s", rec.Key)

	s.current = rec
	s.editor = editor
	return rec, nil
}

// Current returns the current response, or nil
func (s *Session) Current() *model.ResponseRecord {
	return s.current
}

// Editor returns the edit buffer of the current response, or nil
func (s *Session) Editor() *EditBuffer {
	return s.editor
}

// Clear drops the current response. History is untouched.
func (s *Session) Clear() {
	s.current = nil
	s.editor = nil
}

// Recent lists history newest first
func (s *Session) Recent(ctx context.Context) ([]model.HistoryItem, error) {
	return s.history.ListRecent(ctx)
}

// Lookup returns the history record stored under key without changing state
func (s *Session) Lookup(ctx context.Context, key string) (*model.ResponseRecord, error) {
	return s.history.Get(ctx, key)
}

// ResolveRef maps a 1-based index into Recent() or a literal key to a history key
func (s *Session) ResolveRef(ctx context.Context, ref string) (string, error) {
	items, err := s.history.ListRecent(ctx)
	if err != nil {
		return "", err
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index > 0 && index <= len(items) {
			return items[index-1].Key, nil
		}
		return "", model.ErrNotFound
	}

	for _, item := range items {
		if item.Key == ref {
			return item.Key, nil
		}
	}
	return "", model.ErrNotFound
}

// Load makes the history record under key current and reseeds the edit buffer
func (s *Session) Load(ctx context.Context, key string) (*model.ResponseRecord, error) {
	rec, err := s.history.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	editor, err := NewEditBuffer(rec)
	if err != nil {
		return nil, err
	}
	s.current = rec
	s.editor = editor
	return rec, nil
}

// Delete removes a history entry. The current response is left as is even
// when it was loaded from that entry.
func (s *Session) Delete(ctx context.Context, key string) error {
	return s.history.Delete(ctx, key)
}

// ClearHistory removes every history entry
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.history.Clear(ctx)
}

// Edit replaces the edit buffer text. The returned error is an
// *model.EditValidationError when the text is not valid JSON.
func (s *Session) Edit(text string) error {
	if s.editor == nil {
		return model.ErrNoCurrent
	}
	return s.editor.Set(text)
}

// ResetEdit restores the edit buffer to the pretty-printed response
func (s *Session) ResetEdit() error {
	if s.editor == nil {
		return model.ErrNoCurrent
	}
	s.editor.Reset()
	return nil
}

// Export writes the edit buffer to dir (the configured export directory when
// empty) under a name derived from the export time
func (s *Session) Export(dir string) (string, error) {
	if s.editor == nil {
		return "", model.ErrNoCurrent
	}
	if !s.editor.CanExport() {
		return "", s.editor.Err()
	}
	if dir == "" {
		dir = s.cfg.ExportDir
	}
	return storage.WriteExport(dir, s.now(), []byte(s.editor.Text()))
}
