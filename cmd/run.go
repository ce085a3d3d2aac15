package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"imgapi/internal/format"
	httpclient "imgapi/internal/http"
	"imgapi/internal/session"
)

var (
	runForm   formFlags
	runExport bool
	runPath   string
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Send one request and print the response",
		Long: `Send one request built from the config file and the flags, then print
the request information, the probed image and the JSON response.

Examples:
  imgapi run -e https://api.example.com/analyze -i https://example.com/cat.jpg
  imgapi run -e https://api.example.com/analyze -i https://example.com/cat.jpg -X POST --encoding json
  imgapi run --variant fixed --project alpha --auth bearer -e https://api.example.com/v2 -i https://example.com/cat.jpg
  imgapi run -e vision/analyze -i https://example.com/cat.jpg --path labels.0 --export`,
		Args: cobra.NoArgs,
		Run:  runRun,
	}
	addFormFlags(runCmd, &runForm)
	runCmd.Flags().BoolVar(&runExport, "export", false, "Write the response to the export directory")
	runCmd.Flags().StringVar(&runPath, "path", "", "Print only the field at this gjson path")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	logger := newLogger(cmd)
	client := newClient(cfg)

	sess, err := newSession(cfg, client, logger)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to start session: %v", err))
		os.Exit(ExitConfigError)
	}
	defer sess.Close()

	p := format.NewPresenter(cmd.OutOrStdout())
	if err := runForm.apply(sess); err != nil {
		p.Error(err)
		sess.Close()
		os.Exit(ExitUsageError)
	}

	if snap, err := sess.Snapshot(); err == nil {
		logger.Printf("request %s", redactSecret(fmt.Sprintf("%+v", *snap), snap.Auth.Secret))
	}

	code := runOnce(cmd.Context(), sess, client, cmd.OutOrStdout(), runOptions{export: runExport, path: runPath})
	if code != ExitSuccess {
		sess.Close()
		os.Exit(code)
	}
}

type runOptions struct {
	export bool
	path   string
}

// runOnce dispatches the session form once, renders the outcome to out and
// returns the exit code
func runOnce(ctx context.Context, sess *session.Session, client *httpclient.Client, out io.Writer, opts runOptions) int {
	p := format.NewPresenter(out)

	rec, err := sess.Run(ctx)
	if err != nil {
		p.Error(err)
		return exitCodeFor(err)
	}

	if opts.path != "" {
		if !p.Field(rec, opts.path) {
			return ExitUsageError
		}
	} else {
		info, imgErr := client.ProbeImage(ctx, rec.ImageURL)
		p.Record(rec, info, imgErr)
	}

	if opts.export {
		path, err := sess.Export("")
		if err != nil {
			p.Error(err)
			return ExitConfigError
		}
		format.PrintSuccessTo(out, fmt.Sprintf("Exported to %s", path))
	}
	return ExitSuccess
}
