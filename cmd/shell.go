package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"imgapi/internal/format"
	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
	"imgapi/internal/session"
)

var shellForm formFlags

func init() {
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Long: `Start an interactive session. The form is seeded from the config file
and the flags; type 'help' for the session commands.

Examples:
  imgapi shell
  imgapi shell -e https://api.example.com/analyze -i https://example.com/cat.jpg`,
		Args: cobra.NoArgs,
		Run:  runShell,
	}
	addFormFlags(shellCmd, &shellForm)
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	logger := newLogger(cmd)
	client := newClient(cfg)

	sess, err := newSession(cfg, client, logger)
	if err != nil {
		format.PrintError(fmt.Sprintf("Failed to start session: %v", err))
		os.Exit(ExitConfigError)
	}
	defer sess.Close()

	sh := newShell(sess, client, os.Stdin, cmd.OutOrStdout())
	if err := shellForm.apply(sess); err != nil {
		sh.p.Error(err)
	}

	if err := sh.loop(cmd.Context()); err != nil {
		format.PrintError(fmt.Sprintf("Failed to read input: %v", err))
	}
}

// shell reads one command per line and re-renders the parts of the view
// the command changed
type shell struct {
	sess   *session.Session
	client *httpclient.Client
	in     io.Reader
	out    io.Writer
	p      *format.Presenter

	// runEditor opens path in the user's editor and waits for it to exit
	runEditor func(path string) error

	done bool

	showForm    bool
	showResult  bool
	showHistory bool
}

func newShell(sess *session.Session, client *httpclient.Client, in io.Reader, out io.Writer) *shell {
	return &shell{
		sess:      sess,
		client:    client,
		in:        in,
		out:       out,
		p:         format.NewPresenter(out),
		runEditor: openEditor,
	}
}

func (sh *shell) loop(ctx context.Context) error {
	sh.showForm = true
	sh.render(ctx)

	scanner := bufio.NewScanner(sh.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for !sh.done {
		format.PrintPrompt(sh.out, "imgapi> ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			break
		}
		sh.exec(ctx, scanner.Text())
	}
	return scanner.Err()
}

// exec runs one input line and renders what it changed
func (sh *shell) exec(ctx context.Context, line string) {
	args, err := shellquote.Split(line)
	if err != nil {
		format.PrintErrorTo(sh.out, fmt.Sprintf("Failed to parse command: %v", err))
		return
	}
	if len(args) == 0 {
		return
	}

	root := sh.commands()
	root.SetArgs(args)
	root.SetOut(sh.out)
	root.SetErr(sh.out)
	if err := root.ExecuteContext(ctx); err != nil {
		sh.p.Error(err)
	}
	sh.render(ctx)
}

func (sh *shell) render(ctx context.Context) {
	if sh.showForm {
		sh.p.Form(sh.sess.Form(), sh.sess.Params().List())
	}
	if sh.showResult {
		if rec := sh.sess.Current(); rec != nil {
			info, imgErr := sh.client.ProbeImage(ctx, rec.ImageURL)
			sh.p.Record(rec, info, imgErr)
			sh.p.Editor(sh.sess.Editor())
		}
	}
	if sh.showHistory {
		if items, err := sh.sess.Recent(ctx); err == nil {
			sh.p.History(items, sh.sess.Current())
		} else {
			sh.p.Error(err)
		}
	}
	sh.showForm, sh.showResult, sh.showHistory = false, false, false
}

// commands builds a fresh command tree so flag values never leak between lines
func (sh *shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "imgapi",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		sh.setCommand(),
		sh.formCommand(),
		sh.paramCommand(),
		sh.runCommand(),
		sh.clearCommand(),
		sh.showCommand(),
		sh.historyCommand(),
		sh.editCommand(),
		sh.exportCommand(),
		sh.copyCommand(),
		sh.validateCommand(),
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit", "q"},
			Short:   "Leave the session",
			Args:    cobra.NoArgs,
			Run:     func(cmd *cobra.Command, args []string) { sh.done = true },
		},
	)
	return root
}

func (sh *shell) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> [value]",
		Short: "Set endpoint, image, method, encoding, variant, project, auth or secret",
		Long: `Set one form field. An omitted value clears the field.

Examples:
  set endpoint https://api.example.com/analyze
  set image https://example.com/cat.jpg
  set method POST
  set auth "Bearer Token"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sh.sess.SetField(args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			sh.showForm = true
			return nil
		},
	}
}

func (sh *shell) formCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "form",
		Short: "Show the request form",
		Args:  cobra.NoArgs,
		Run:   func(cmd *cobra.Command, args []string) { sh.showForm = true },
	}
}

func (sh *shell) paramCommand() *cobra.Command {
	paramCmd := &cobra.Command{
		Use:     "param",
		Aliases: []string{"params"},
		Short:   "Edit the request parameters",
		Args:    cobra.NoArgs,
		Run:     func(cmd *cobra.Command, args []string) { sh.p.Params(sh.sess.Params().List()) },
	}

	paramCmd.AddCommand(
		&cobra.Command{
			Use:   "add [key] [value]",
			Short: "Append a parameter",
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ps := sh.sess.Params()
				i := ps.Add()
				if len(args) > 0 {
					_ = ps.Update(i, session.FieldKey, args[0])
				}
				if len(args) > 1 {
					_ = ps.Update(i, session.FieldValue, args[1])
				}
				sh.showForm = true
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <n> <key|value> [text]",
			Short: "Change the key or value of parameter n",
			Args:  cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := paramIndex(args[0])
				if err != nil {
					return err
				}
				text := ""
				if len(args) == 3 {
					text = args[2]
				}
				if err := sh.sess.Params().Update(i, session.ParamField(args[1]), text); err != nil {
					return err
				}
				sh.showForm = true
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm <n>",
			Aliases: []string{"remove"},
			Short:   "Remove parameter n",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := paramIndex(args[0])
				if err != nil {
					return err
				}
				if err := sh.sess.Params().Remove(i); err != nil {
					return err
				}
				sh.showForm = true
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the parameters",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, args []string) { sh.p.Params(sh.sess.Params().List()) },
		},
	)
	return paramCmd
}

// paramIndex converts a 1-based parameter number to an index
func paramIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid parameter number %q", s)
	}
	return n - 1, nil
}

func (sh *shell) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Send the request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format.PrintWarningTo(sh.out, "Processing request...")
			if _, err := sh.sess.Run(cmd.Context()); err != nil {
				return err
			}
			sh.showResult = true
			sh.showHistory = true
			return nil
		},
	}
}

func (sh *shell) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the current response",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sh.sess.Clear()
			format.PrintSuccessTo(sh.out, "Cleared")
		},
	}
}

func (sh *shell) showCommand() *cobra.Command {
	var path string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current response",
		Long: `Show the current response, or one field of it with --path.

Examples:
  show
  show --path labels.0.name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := sh.sess.Current()
			if rec == nil {
				return model.ErrNoCurrent
			}
			if path != "" {
				sh.p.Field(rec, path)
				return nil
			}
			sh.showResult = true
			return nil
		},
	}
	showCmd.Flags().StringVar(&path, "path", "", "gjson path of the field to print")
	return showCmd
}

func (sh *shell) editCommand() *cobra.Command {
	var (
		file  string
		text  string
		reset bool
		diff  bool
	)
	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit the JSON response before export",
		Long: `Edit the JSON response. Without flags the buffer opens in $EDITOR.

Examples:
  edit
  edit --set '{"labels": ["cat"]}'
  edit --file fixed.json
  edit --reset
  edit --diff`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := sh.sess.Editor()
			if editor == nil {
				return model.ErrNoCurrent
			}

			if diff {
				sh.p.Diff(editor.Diff())
				return nil
			}

			var err error
			switch {
			case reset:
				err = sh.sess.ResetEdit()
			case cmd.Flags().Changed("set"):
				err = sh.sess.Edit(text)
			case file != "":
				var content string
				if content, err = readLocalFile(file); err == nil {
					err = sh.sess.Edit(content)
				}
			default:
				var content string
				if content, err = sh.editInEditor(editor.Text()); err == nil {
					err = sh.sess.Edit(content)
				}
			}

			var editErr *model.EditValidationError
			if err != nil && !errors.As(err, &editErr) {
				return err
			}
			sh.p.Editor(sh.sess.Editor())
			return nil
		},
	}
	editCmd.Flags().StringVar(&file, "file", "", "Replace the buffer with the contents of a file")
	editCmd.Flags().StringVar(&text, "set", "", "Replace the buffer with this text")
	editCmd.Flags().BoolVar(&reset, "reset", false, "Restore the pretty-printed response")
	editCmd.Flags().BoolVar(&diff, "diff", false, "Show the changes against the response")
	editCmd.MarkFlagsMutuallyExclusive("file", "set", "reset", "diff")
	return editCmd
}

// editInEditor round-trips text through a temp file opened in the editor
func (sh *shell) editInEditor(text string) (string, error) {
	f, err := os.CreateTemp("", "imgapi-*.json")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if err := sh.runEditor(path); err != nil {
		return "", fmt.Errorf("editor: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func openEditor(path string) error {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	parts, err := shellquote.Split(editor)
	if err != nil || len(parts) == 0 {
		return fmt.Errorf("invalid editor %q", editor)
	}

	c := exec.Command(parts[0], append(parts[1:], path)...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func (sh *shell) exportCommand() *cobra.Command {
	var dir string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the edited response to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sh.sess.Export(dir)
			if err != nil {
				return err
			}
			format.PrintSuccessTo(sh.out, fmt.Sprintf("Exported to %s", path))
			return nil
		},
	}
	exportCmd.Flags().StringVar(&dir, "dir", "", "Directory to write to (default from config)")
	return exportCmd
}

func (sh *shell) copyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "copy",
		Short: "Copy the edited response to the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := sh.sess.Editor()
			if editor == nil {
				return model.ErrNoCurrent
			}
			if err := clipboard.WriteAll(editor.Text()); err != nil {
				return fmt.Errorf("clipboard: %w", err)
			}
			format.PrintSuccessTo(sh.out, "Copied to clipboard")
			return nil
		},
	}
}

func (sh *shell) validateCommand() *cobra.Command {
	var schemaPath string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the edited response against a JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := sh.sess.Editor()
			if editor == nil {
				return model.ErrNoCurrent
			}
			schema, err := readLocalFile(schemaPath)
			if err != nil {
				return fmt.Errorf("failed to read schema: %w", err)
			}

			violations, err := editor.ValidateSchema([]byte(schema))
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				format.PrintSuccessTo(sh.out, "Response matches the schema")
				return nil
			}
			for _, v := range violations {
				format.PrintErrorTo(sh.out, v)
			}
			return nil
		},
	}
	validateCmd.Flags().StringVar(&schemaPath, "schema", "", "JSON Schema file")
	_ = validateCmd.MarkFlagRequired("schema")
	return validateCmd
}

// readLocalFile reads file content with path validation to prevent directory traversal
func readLocalFile(filename string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	if !strings.HasPrefix(cleanPath, wd+string(filepath.Separator)) && cleanPath != wd {
		return "", fmt.Errorf("access denied: file must be within current directory")
	}

	// The symlink target must stay inside the working directory too
	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		realPath = cleanPath
	} else if !strings.HasPrefix(realPath, wd+string(filepath.Separator)) && realPath != wd {
		return "", fmt.Errorf("access denied: symlink target must be within current directory")
	}

	content, err := os.ReadFile(realPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
