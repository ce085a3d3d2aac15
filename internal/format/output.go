package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
	"imgapi/internal/session"
)

// sanitizeOutput removes or escapes potentially dangerous control characters
// that could manipulate terminal display or execute commands
func sanitizeOutput(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(r)
		case r == '\x1b':
			result.WriteString("\\x1b")
		case unicode.IsControl(r) && r < 0x20:
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		case r == 0x7F:
			result.WriteString("\\x7f")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

var (
	successColor   = color.New(color.FgGreen, color.Bold)
	warnColor      = color.New(color.FgYellow, color.Bold)
	clientErrColor = color.New(color.FgRed, color.Bold)
	serverErrColor = color.New(color.FgRed, color.Bold, color.BgWhite)
	headerKeyColor = color.New(color.FgCyan)
	methodColor    = color.New(color.FgMagenta, color.Bold)
	urlColor       = color.New(color.FgBlue)
	dimColor       = color.New(color.Faint)
	titleColor     = color.New(color.Bold, color.Underline)
)

// SetNoColor disables colored output globally
func SetNoColor(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

func getStatusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return warnColor
	case code >= 400 && code < 500:
		return clientErrColor
	default:
		return serverErrColor
	}
}

// Presenter renders session state to a writer
type Presenter struct {
	w io.Writer
}

// NewPresenter creates a Presenter writing to w
func NewPresenter(w io.Writer) *Presenter {
	return &Presenter{w: w}
}

func (p *Presenter) title(s string) {
	fmt.Fprintln(p.w)
	titleColor.Fprintln(p.w, s)
}

// Form prints the request form and parameter table
func (p *Presenter) Form(f session.Form, params []model.Parameter) {
	p.title("API Configuration")

	variant := f.Variant
	if variant == "" {
		variant = model.VariantGeneric
	}
	headerKeyColor.Fprint(p.w, "  Endpoint: ")
	urlColor.Fprintln(p.w, orPlaceholder(f.Endpoint))
	headerKeyColor.Fprint(p.w, "  Image:    ")
	urlColor.Fprintln(p.w, orPlaceholder(f.ImageURL))
	headerKeyColor.Fprint(p.w, "  Variant:  ")
	fmt.Fprintln(p.w, variant)

	if variant == model.VariantFixed {
		headerKeyColor.Fprint(p.w, "  Project:  ")
		fmt.Fprintln(p.w, orPlaceholder(f.ProjectID))
		headerKeyColor.Fprint(p.w, "  Auth:     ")
		fmt.Fprintln(p.w, authSummary(f.Auth))
	} else {
		headerKeyColor.Fprint(p.w, "  Method:   ")
		methodColor.Fprint(p.w, f.Method)
		if f.Method == "POST" {
			dimColor.Fprintf(p.w, " (%s)", f.Encoding)
		}
		fmt.Fprintln(p.w)
	}

	p.Params(params)
}

// Params prints the parameter table with 1-based indices
func (p *Presenter) Params(params []model.Parameter) {
	headerKeyColor.Fprintln(p.w, "  Parameters:")
	if len(params) == 0 {
		dimColor.Fprintln(p.w, "    (none)")
		return
	}
	for i, param := range params {
		dimColor.Fprintf(p.w, "    [%d] ", i+1)
		key := param.Key
		if key == "" {
			key = dimColor.Sprint("(empty key, not sent)")
		}
		fmt.Fprintf(p.w, "%s = %s\n", sanitizeOutput(key), sanitizeOutput(param.Value))
	}
}

func authSummary(a model.Auth) string {
	if a.Type == model.AuthNone || a.Type == "" {
		return "none"
	}
	if a.Secret == "" {
		return string(a.Type) + " (no secret)"
	}
	return string(a.Type) + " [REDACTED]"
}

func orPlaceholder(s string) string {
	if s == "" {
		return dimColor.Sprint("(not set)")
	}
	return sanitizeOutput(s)
}

// Record prints the three panes of a response: request information, the
// image probe and the JSON body. imgErr renders as a broken image.
func (p *Presenter) Record(rec *model.ResponseRecord, img *httpclient.ImageInfo, imgErr error) {
	p.title("Request Information")
	dimColor.Fprintf(p.w, "  Timestamp:   %s\n", rec.FormattedTime())
	fmt.Fprint(p.w, "  API URL:     ")
	urlColor.Fprintln(p.w, sanitizeOutput(rec.Endpoint))
	if rec.ProjectID != "" {
		fmt.Fprintf(p.w, "  Project:     %s\n", sanitizeOutput(rec.ProjectID))
	}
	fmt.Fprint(p.w, "  Method:      ")
	methodColor.Fprintln(p.w, rec.Method)
	fmt.Fprint(p.w, "  Status Code: ")
	getStatusColor(rec.StatusCode).Fprintln(p.w, rec.StatusCode)
	dimColor.Fprintf(p.w, "  Time:        %dms\n", rec.DurationMs)
	fmt.Fprintln(p.w, "  Parameters:")
	for _, k := range sortedKeys(rec.Params) {
		fmt.Fprintf(p.w, "    - %s: %s\n", sanitizeOutput(k), sanitizeOutput(rec.Params[k]))
	}

	p.title("Processed Image")
	p.Image(rec.ImageURL, img, imgErr)

	p.title("API JSON Response")
	if keys := TopLevelKeys(rec.Response); len(keys) > 0 {
		dimColor.Fprintf(p.w, "  keys: %s\n", sanitizeOutput(strings.Join(keys, ", ")))
	}
	p.Body(rec.Response)
}

// Image prints the result of following an image URL
func (p *Presenter) Image(imageURL string, img *httpclient.ImageInfo, imgErr error) {
	fmt.Fprint(p.w, "  ")
	urlColor.Fprintln(p.w, sanitizeOutput(imageURL))

	if imgErr != nil || img == nil {
		reason := "not loaded"
		if imgErr != nil {
			reason = imgErr.Error()
		}
		clientErrColor.Fprintf(p.w, "  [broken image] %s\n", sanitizeOutput(reason))
		return
	}

	if img.Format == "" {
		warnColor.Fprintf(p.w, "  %s, %d bytes (dimensions unknown)\n", sanitizeOutput(img.ContentType), img.Size)
		return
	}
	successColor.Fprintf(p.w, "  %s %dx%d", img.Format, img.Width, img.Height)
	dimColor.Fprintf(p.w, " (%s, %d bytes)\n", sanitizeOutput(img.ContentType), img.Size)
}

// Body pretty-prints a JSON body, falling back to the raw text
func (p *Presenter) Body(raw []byte) {
	pretty, err := session.PrettyJSON(raw)
	if err != nil {
		pretty = string(raw)
	}
	fmt.Fprintln(p.w, sanitizeOutput(pretty))
}

// Editor prints the edit buffer with its validation state
func (p *Presenter) Editor(b *session.EditBuffer) {
	if b == nil {
		return
	}
	p.title("Edit JSON Response")

	state := "unchanged"
	if b.Modified() {
		state = "edited"
	}
	dimColor.Fprintf(p.w, "  buffer %s, %d lines\n", state, len(b.Lines()))
	p.EditorText(b)

	if err := b.Err(); err != nil {
		PrintErrorTo(p.w, err.Error())
		dimColor.Fprintln(p.w, "  export disabled")
		return
	}
	successColor.Fprintln(p.w, "  valid JSON, export enabled")
}

// EditorText prints the buffer contents with line numbers
func (p *Presenter) EditorText(b *session.EditBuffer) {
	for i, line := range b.Lines() {
		dimColor.Fprintf(p.w, "%4d ", i+1)
		fmt.Fprintln(p.w, sanitizeOutput(line))
	}
}

// History prints the recent runs newest first, with 1-based indices
func (p *Presenter) History(items []model.HistoryItem, current *model.ResponseRecord) {
	p.title("Previous Runs")
	if len(items) == 0 {
		dimColor.Fprintln(p.w, "  No previous runs yet. Run the API to see history here.")
		return
	}
	for i, item := range items {
		dimColor.Fprintf(p.w, "  [%d] ", i+1)
		fmt.Fprint(p.w, sanitizeOutput(item.Label))
		if current != nil && current.Key == item.Key {
			successColor.Fprint(p.w, "  (current)")
		}
		fmt.Fprintln(p.w)
	}
}

// HistoryPreview prints the short form of a history entry shown before loading it
func (p *Presenter) HistoryPreview(rec *model.ResponseRecord) {
	headerKeyColor.Fprintf(p.w, "  %s\n", rec.FormattedTime())
	fmt.Fprint(p.w, "  Image:  ")
	urlColor.Fprintln(p.w, sanitizeOutput(rec.ImageURL))
	fmt.Fprint(p.w, "  API:    ")
	urlColor.Fprintln(p.w, sanitizeOutput(rec.Endpoint))
	fmt.Fprint(p.w, "  Method: ")
	methodColor.Fprintln(p.w, rec.Method)
	dimColor.Fprintf(p.w, "  Key:    %s\n", sanitizeOutput(rec.Key))
}

// Field prints the value at a gjson path of the response body
func (p *Presenter) Field(rec *model.ResponseRecord, path string) bool {
	result := gjson.GetBytes(rec.Response, path)
	if !result.Exists() {
		PrintErrorTo(p.w, fmt.Sprintf("path %q not found in response", path))
		return false
	}
	headerKeyColor.Fprintf(p.w, "%s: ", sanitizeOutput(path))
	if result.IsObject() || result.IsArray() {
		fmt.Fprintln(p.w)
		p.Body([]byte(result.Raw))
		return true
	}
	fmt.Fprintln(p.w, sanitizeOutput(result.String()))
	return true
}

// Error prints err according to its place in the error taxonomy
func (p *Presenter) Error(err error) {
	var (
		verr    *model.ValidationError
		terr    *model.TransportError
		nonJSON *model.NonJSONResponseError
		apiErr  *model.APIError
		editErr *model.EditValidationError
	)

	switch {
	case errors.As(err, &verr):
		PrintWarningTo(p.w, verr.Error())
	case errors.As(err, &terr):
		PrintErrorTo(p.w, fmt.Sprintf("Error: %v", terr))
	case errors.As(err, &nonJSON):
		PrintErrorTo(p.w, nonJSON.Error())
		p.title("Response Text")
		fmt.Fprintln(p.w, sanitizeOutput(nonJSON.Body))
	case errors.As(err, &apiErr):
		PrintErrorTo(p.w, apiErr.Error())
		p.title("Response Text")
		if apiErr.JSON != nil {
			p.Body([]byte(apiErr.Body))
		} else {
			fmt.Fprintln(p.w, sanitizeOutput(apiErr.Body))
		}
	case errors.As(err, &editErr):
		PrintErrorTo(p.w, editErr.Error())
	default:
		PrintErrorTo(p.w, err.Error())
	}
}

// TopLevelKeys lists the keys of a JSON object body in document order
func TopLevelKeys(raw json.RawMessage) []string {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil
	}
	var keys []string
	parsed.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PrintError prints an error message
func PrintError(msg string) {
	PrintErrorTo(color.Error, msg)
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	PrintWarningTo(color.Error, msg)
}

// PrintSuccessTo prints a success message to w
func PrintSuccessTo(w io.Writer, msg string) {
	successColor.Fprintf(w, "✓ %s\n", sanitizeOutput(msg))
}

// PrintErrorTo prints an error message to w
func PrintErrorTo(w io.Writer, msg string) {
	clientErrColor.Fprintf(w, "✗ %s\n", sanitizeOutput(msg))
}

// PrintWarningTo prints a warning message to w
func PrintWarningTo(w io.Writer, msg string) {
	warnColor.Fprintf(w, "! %s\n", sanitizeOutput(msg))
}

// PrintPrompt prints the shell prompt without a newline
func PrintPrompt(w io.Writer, prompt string) {
	headerKeyColor.Fprint(w, prompt)
}

// PrintAliasList prints aliases sorted by name
func PrintAliasList(w io.Writer, aliases map[string]string) {
	if len(aliases) == 0 {
		dimColor.Fprintln(w, "No aliases configured")
		return
	}
	for _, name := range sortedKeys(aliases) {
		PrintAlias(w, name, aliases[name])
	}
}

// PrintAlias prints one alias
func PrintAlias(w io.Writer, name, url string) {
	headerKeyColor.Fprintf(w, "%s", sanitizeOutput(name))
	fmt.Fprint(w, " → ")
	urlColor.Fprintln(w, sanitizeOutput(url))
}

// Diff prints a unified diff with added and removed lines colored
func (p *Presenter) Diff(diff string) {
	if diff == "" {
		dimColor.Fprintln(p.w, "  no differences")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		line = sanitizeOutput(line)
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			titleColor.Fprintln(p.w, line)
		case strings.HasPrefix(line, "@@"):
			headerKeyColor.Fprintln(p.w, line)
		case strings.HasPrefix(line, "+"):
			successColor.Fprintln(p.w, line)
		case strings.HasPrefix(line, "-"):
			clientErrColor.Fprintln(p.w, line)
		default:
			fmt.Fprintln(p.w, line)
		}
	}
}
