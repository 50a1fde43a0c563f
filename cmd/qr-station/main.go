package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffyaml"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/qr-station/internal/codes"
	"github.com/zombor/qr-station/internal/display"
	"github.com/zombor/qr-station/internal/journal"
	"github.com/zombor/qr-station/internal/logging"
	"github.com/zombor/qr-station/internal/login"
	"github.com/zombor/qr-station/internal/scanning"
	"github.com/zombor/qr-station/internal/station"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	server       string
	timeout      time.Duration
	fps          int
	box          int
	pollInterval time.Duration
	input        string
	username     string
	password     string
	loginAction  string
	auth         station.BasicAuth
	journalPath  string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("qr-station")
	var (
		server       = fs.StringLong("server", "http://localhost:5000", "Check-in server base URL")
		timeout      = fs.DurationLong("timeout", station.DefaultTimeout, "Timeout for a single server request")
		fps          = fs.IntLong("fps", scanning.DefaultFPS, "Decoder frames per second")
		box          = fs.IntLong("box", 0, "Capture region side in pixels (0 for the full frame)")
		pollInterval = fs.DurationLong("poll-interval", scanning.DefaultPollInterval, "Interval between scan status queries")
		input        = fs.StringLong("input", "", "Read scanner input from this file instead of stdin")
		username     = fs.StringLong("username", "", "Log in to the server as this user before scanning (optional)")
		password     = fs.StringLong("password", "", "Password for --username")
		loginAction  = fs.StringLong("login-action", "/login", "Login form action, relative to the server URL")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		journalPath  = fs.StringLong("journal", filepath.Join(xdg.DataHome, "qr-station", "journal.db"), "Scan journal file path (empty to disable)")
		history      = fs.BoolLong("history", "Print the scan journal and exit")
		historyFmt   = fs.StringLong("history-format", journal.FormatText, "History output format: 'text' or 'markdown'")
		qrText       = fs.StringLong("qr-text", "", "Generate a test badge encoding this text and exit")
		qrOut        = fs.StringLong("qr-out", "badge.png", "Output path for --qr-text")
		qrSize       = fs.IntLong("qr-size", codes.DefaultSize, "Badge size in pixels")
		verbose      = fs.BoolLong("verbose", "Enable debug logging")
		showVersion  = fs.BoolLong("version", "Show version information")
		_            = fs.StringLong("config", "", "YAML config file (optional)")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("QR_STATION"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(logging.NewLogger(os.Stderr, *verbose))

	if *qrText != "" {
		if err := codes.WriteFile(*qrOut, *qrText, *qrSize); err != nil {
			slog.Error("Failed to generate badge", "error", err)
			os.Exit(1)
		}
		slog.Info("Badge written", "path", *qrOut)
		return
	}

	if *history {
		if err := printHistory(os.Stdout, *journalPath, *historyFmt); err != nil {
			slog.Error("Failed to read journal", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config{
		server:       *server,
		timeout:      *timeout,
		fps:          *fps,
		box:          *box,
		pollInterval: *pollInterval,
		input:        *input,
		username:     *username,
		password:     *password,
		loginAction:  *loginAction,
		auth:         station.BasicAuth{Username: *authUser, Password: *authPass},
		journalPath:  *journalPath,
	}
	if err := run(ctx, cfg); err != nil {
		slog.Error("Station stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	client, err := station.NewClient(cfg.server, cfg.timeout, cfg.auth)
	if err != nil {
		return fmt.Errorf("creating station client: %w", err)
	}
	if cfg.auth.Username != "" || cfg.auth.Password != "" {
		slog.Info("Basic auth enabled", "user", cfg.auth.Username)
	}

	term := display.NewTerminal(os.Stdout)

	if cfg.username != "" {
		handler := login.NewHandler(client, term, cfg.loginAction)
		form := login.Form{
			Username:  cfg.username,
			Password:  cfg.password,
			CSRFToken: login.NewCSRFToken(),
		}
		if err := handler.Submit(ctx, form); err != nil {
			return err
		}
	}

	var scanJournal scanning.Journal
	if cfg.journalPath != "" {
		slog.Info("Opening journal...", "path", cfg.journalPath)
		j, err := journal.Open(cfg.journalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		scanJournal = j
	}

	var in io.Reader = os.Stdin
	if cfg.input != "" {
		f, err := os.Open(cfg.input)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}
	wedge := scanning.NewWedge(in)

	ctrl := scanning.NewControllerWithDeps(wedge, client, term, nil, scanJournal, nil, scanning.Config{
		FPS:          cfg.fps,
		Box:          cfg.box,
		PollInterval: cfg.pollInterval,
	})
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if err := ctrl.Start(gctx); err != nil {
		return fmt.Errorf("starting scanner: %w", err)
	}

	g.Go(func() error {
		defer cancel()
		if err := wedge.Run(gctx); err != nil {
			return err
		}
		waitForPoll(gctx, ctrl)
		return nil
	})
	g.Go(func() error {
		handleSignals(gctx, ctrl)
		return nil
	})

	slog.Info("Station ready", "server", cfg.server)
	err = g.Wait()
	slog.Info("Shutting down...")
	return err
}

// handleSignals maps SIGHUP to Hidden, SIGUSR1 to Start and SIGUSR2 to
// Stop until ctx is done.
func handleSignals(ctx context.Context, ctrl *scanning.Controller) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				ctrl.Hidden()
			case syscall.SIGUSR1:
				if err := ctrl.Start(ctx); err != nil {
					slog.Error("Failed to start scanner", "error", err)
				}
			case syscall.SIGUSR2:
				if err := ctrl.Stop(); err != nil {
					slog.Error("Failed to stop scanner", "error", err)
				}
			}
		}
	}
}

// waitForPoll lets a poll started by the last line of input finish
func waitForPoll(ctx context.Context, ctrl *scanning.Controller) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for ctrl.Polling() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printHistory(w io.Writer, path, format string) error {
	if path == "" {
		return fmt.Errorf("journal is disabled")
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.List()
	if err != nil {
		return fmt.Errorf("listing journal: %w", err)
	}
	return journal.WriteReport(w, format, entries)
}
