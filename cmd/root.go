package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imgapi/internal/config"
	"imgapi/internal/dispatch"
	"imgapi/internal/format"
	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
	"imgapi/internal/session"
)

// secretEnv supplies the auth secret when --secret is empty
const secretEnv = "IMGAPI_SECRET"

var rootCmd = &cobra.Command{
	Use:   "imgapi",
	Short: "Send an image to an analysis API and inspect the JSON it returns",
	Long: `imgapi sends an image URL to an image-analysis HTTP API, shows the
JSON response next to the image, keeps a per-session history of runs and
exports an edited copy of the response.

Examples:
  imgapi run --endpoint https://api.example.com/analyze --image https://example.com/cat.jpg
  imgapi run --endpoint vision/analyze --image https://example.com/cat.jpg --method GET -p correct=true
  imgapi shell --endpoint https://api.example.com/analyze
  imgapi aliases`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log diagnostics to stderr")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./imgapi.yaml or ~/.imgapi.yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

// loadConfig reads the config file and applies --no-color. It exits on a bad file.
func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to load config: %v", err))
		os.Exit(ExitConfigError)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	format.SetNoColor(noColor || cfg.GetNoColor())
	return cfg
}

func newLogger(cmd *cobra.Command) *log.Logger {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return log.New(os.Stderr, "imgapi: ", 0)
	}
	return log.New(io.Discard, "", 0)
}

func newClient(cfg *config.Config) *httpclient.Client {
	return httpclient.NewClient(
		httpclient.WithTimeout(cfg.APITimeout()),
		httpclient.WithImageTimeout(cfg.ImageFetchTimeout()),
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithWarningHandler(format.PrintWarning),
	)
}

func newSession(cfg *config.Config, client *httpclient.Client, logger *log.Logger) (*session.Session, error) {
	d := dispatch.New(client, dispatch.WithLogger(logger))
	return session.New(cfg, d, session.WithLogger(logger))
}

// formFlags holds the flags that seed the request form
type formFlags struct {
	endpoint string
	image    string
	method   string
	encoding string
	variant  string
	project  string
	auth     string
	secret   string
	params   []string
}

func addFormFlags(cmd *cobra.Command, f *formFlags) {
	cmd.Flags().StringVarP(&f.endpoint, "endpoint", "e", "", "API URL or alias/path")
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "Image URL")
	cmd.Flags().StringVarP(&f.method, "method", "X", "", "HTTP method (GET or POST)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "POST body encoding (form or json)")
	cmd.Flags().StringVar(&f.variant, "variant", "", "Request shape (generic or fixed)")
	cmd.Flags().StringVar(&f.project, "project", "", "Project ID (fixed variant)")
	cmd.Flags().StringVar(&f.auth, "auth", "", "Auth type (none, bearer, apikey, basic)")
	cmd.Flags().StringVar(&f.secret, "secret", "", "Auth secret (default $"+secretEnv+")")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", []string{}, "Add parameter key=value (can be used multiple times)")
}

// apply copies the non-empty flags onto the session form
func (f *formFlags) apply(sess *session.Session) error {
	secret := f.secret
	if secret == "" {
		secret = os.Getenv(secretEnv)
	}

	fields := []struct{ name, value string }{
		{"endpoint", f.endpoint},
		{"image", f.image},
		{"variant", f.variant},
		{"method", f.method},
		{"encoding", f.encoding},
		{"project", f.project},
		{"auth", f.auth},
		{"secret", secret},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := sess.SetField(field.name, field.value); err != nil {
			return err
		}
	}

	params, err := parseParams(f.params)
	if err != nil {
		return err
	}
	for _, p := range params {
		i := sess.Params().Add()
		_ = sess.Params().Update(i, session.FieldKey, p.Key)
		_ = sess.Params().Update(i, session.FieldValue, p.Value)
	}
	return nil
}

// parseParams splits key=value pairs; the key must be non-empty
func parseParams(pairs []string) ([]model.Parameter, error) {
	result := make([]model.Parameter, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		key := strings.TrimSpace(parts[0])
		if len(parts) != 2 || key == "" {
			return nil, &model.ValidationError{Field: "param", Message: fmt.Sprintf("expected key=value, got %q", pair)}
		}
		result = append(result, model.Parameter{Key: key, Value: parts[1]})
	}
	return result, nil
}

// redactSecret masks the secret in s before it is logged
func redactSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "[REDACTED]")
}
