package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/metalls/metalls/internal/config"
	"github.com/metalls/metalls/internal/logging"
	"github.com/metalls/metalls/internal/lspserver"
	"github.com/metalls/metalls/internal/session"
	"github.com/metalls/metalls/internal/types"
	"github.com/metalls/metalls/internal/version"
	"github.com/metalls/metalls/pkg/pathutil"
)

var Version = version.Version

func main() {
	app := &cli.App{
		Name:                   "metalls",
		Usage:                  "Language server and formatter for Metal Shading Language",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "error, warn, info, debug, or trace",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the language server over stdio",
				Action: serveCommand,
			},
			{
				Name:  "format",
				Usage: "Format .metal/.h/.hpp/.metalh files, or stdin if no paths are given",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Exit 1 if any file would change, without rewriting it",
					},
				},
				Action: formatCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// cliError carries the exit code a failure should produce, since
// urfave/cli otherwise always exits 1 on a returned error — the format
// command needs to distinguish usage/IO failures (2/3) from a plain
// would-change result under --check (1).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return 1
}

func serveCommand(c *cli.Context) error {
	log := logging.NewStderr(logging.Level(c.String("log-level")))
	srv := lspserver.New(log)
	if err := srv.Serve(c.Context, os.Stdin, os.Stdout); err != nil {
		return &cliError{code: 3, err: err}
	}
	if !srv.ShutdownReceived() {
		return &cliError{code: 1, err: fmt.Errorf("connection closed without shutdown")}
	}
	return nil
}

// formattableExtensions mirrors the file types the server indexes and
// formats: .metal sources and the headers they #include.
var formattableExtensions = map[string]bool{
	".metal":  true,
	".h":      true,
	".hpp":    true,
	".metalh": true,
}

func validateFormatPaths(paths []string) error {
	for _, p := range paths {
		ext := filepath.Ext(p)
		if !formattableExtensions[ext] {
			return &cliError{code: 2, err: fmt.Errorf("%s: unsupported file extension %q (expected .metal, .h, .hpp, or .metalh)", p, ext)}
		}
	}
	return nil
}

func formatCommand(c *cli.Context) error {
	check := c.Bool("check")
	paths := c.Args().Slice()
	cfg := config.Default()

	if err := validateFormatPaths(paths); err != nil {
		return err
	}

	sess := session.New(".", logging.NewStderr(logging.LevelError), cfg, nil)
	defer sess.Close()

	if len(paths) == 0 {
		return formatStdin(c.Context, sess, check)
	}

	changed := false
	for _, p := range paths {
		fileChanged, err := formatOneFile(c.Context, sess, p, check)
		if err != nil {
			return &cliError{code: 3, err: err}
		}
		changed = changed || fileChanged
	}
	if changed && check {
		return &cliError{code: 1, err: fmt.Errorf("one or more files would be reformatted")}
	}
	return nil
}

// formatOneFile formats one file in place, or under check just reports
// whether it would change. It never writes to disk when check is set.
func formatOneFile(ctx context.Context, sess *session.Session, path string, check bool) (changed bool, err error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	after, _, err := sess.Format(ctx, types.Path(path), text)
	if err != nil {
		return false, err
	}
	if after == string(text) {
		return false, nil
	}
	if check {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = ""
		}
		fmt.Fprintf(os.Stderr, "%s would be reformatted\n", pathutil.ToRelative(path, cwd))
		return true, nil
	}
	if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func formatStdin(ctx context.Context, sess *session.Session, check bool) error {
	text, err := io.ReadAll(os.Stdin)
	if err != nil {
		return &cliError{code: 3, err: err}
	}
	after, _, err := sess.Format(ctx, types.Path("<stdin>.metal"), text)
	if err != nil {
		return &cliError{code: 3, err: err}
	}
	if check {
		if after != string(text) {
			return &cliError{code: 1, err: fmt.Errorf("stdin would be reformatted")}
		}
		return nil
	}
	if _, err := io.WriteString(os.Stdout, after); err != nil {
		return &cliError{code: 3, err: err}
	}
	return nil
}
