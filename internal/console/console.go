package console

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/docsheet/docsheet/internal/config"
	"github.com/docsheet/docsheet/internal/observability"
	"github.com/docsheet/docsheet/internal/sheet"
)

type Options struct {
	Lookup config.LookupFunc
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Open replaces OpenDependencies.
	Open func(ctx context.Context, cfg config.Config) (Dependencies, error)
	// NewReader replaces the terminal line editor.
	NewReader func(prompt, historyFile string) (LineReader, error)
	// RunContext replaces the SIGINT-bound context of a single run.
	RunContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

// Run starts a console and returns the process exit code: 0 on a normal
// exit, 1 when the console could not start and 2 for usage errors.
func Run(ctx context.Context, args []string, opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("docsheet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	containerPath := fs.String("container", "", "container to open, as <database>/<container>")
	sheetName := fs.String("sheet", "", "saved sheet to open")
	output := fs.String("output", "", "result format: table|json")
	scriptPath := fs.String("f", "", "read commands from a file instead of the terminal ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return 2
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg, err := config.Load("docsheet", lookup)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	if *output != "" {
		if *output != config.OutputTable && *output != config.OutputJSON {
			_, _ = fmt.Fprintf(stderr, "invalid -output %q\n", *output)
			return 2
		}
		cfg.Console.Output = *output
	}

	logger := observability.NewLogger(cfg, stderr)

	open := opts.Open
	if open == nil {
		open = OpenDependencies
	}
	deps, err := open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open backends", slog.Any("error", err))
		_, _ = fmt.Fprintf(stderr, "startup error: %v\n", err)
		return 1
	}
	defer func() {
		if deps.Close != nil {
			_ = deps.Close()
		}
	}()

	if server := observability.NewMetricsServer(cfg, logger); server != nil {
		go func() {
			logger.Info("starting metrics server", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	session := NewSession(stdout, logger)
	session.Account = cfg.Console.Account
	session.Database = cfg.Console.Database
	session.Output = cfg.Console.Output
	session.MaxItemCount = cfg.Source.MaxItemCount
	session.Catalog = deps.Catalog
	session.Sources = deps.Sources
	if deps.Objects != nil {
		store, err := sheet.NewStore(deps.Objects)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "startup error: %v\n", err)
			return 1
		}
		session.Sheets = store
	}
	session.RunContext = opts.RunContext
	if session.RunContext == nil {
		session.RunContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}
	}

	if *containerPath != "" {
		if err := session.use(ctx, []string{*containerPath}); err != nil {
			_, _ = fmt.Fprintf(stderr, "open container: %v\n", err)
			return 1
		}
	} else if cfg.Console.Database != "" && cfg.Console.Container != "" {
		if err := session.use(ctx, []string{cfg.Console.Database + "/" + cfg.Console.Container}); err != nil {
			logger.Warn("default container unavailable", slog.Any("error", err))
		}
	}
	if *sheetName != "" {
		if err := session.load(ctx, []string{*sheetName}); err != nil {
			_, _ = fmt.Fprintf(stderr, "open sheet: %v\n", err)
			return 1
		}
	}

	reader, err := newReader(opts, *scriptPath, session.Prompt(), cfg.Console.HistoryFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open input: %v\n", err)
		return 1
	}
	defer func() { _ = reader.Close() }()

	loop(ctx, session, reader, stderr)
	return 0
}

func newReader(opts Options, scriptPath, prompt, historyFile string) (LineReader, error) {
	switch {
	case scriptPath == "-":
		stdin := opts.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		return newScriptReader(stdin), nil
	case scriptPath != "":
		file, err := os.Open(scriptPath)
		if err != nil {
			return nil, err
		}
		return newScriptReader(file), nil
	case opts.NewReader != nil:
		return opts.NewReader(prompt, historyFile)
	default:
		return newTerminalReader(prompt, historyFile)
	}
}

func loop(ctx context.Context, session *Session, reader LineReader, stderr io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		reader.SetPrompt(session.Prompt())
		line, err := reader.Readline()
		if isInterrupt(err) {
			_, _ = fmt.Fprintln(stderr, `(use \quit to exit)`)
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "read input: %v\n", err)
			return
		}

		if err := session.Handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		}
	}
}
