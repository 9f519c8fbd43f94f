package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/forest6511/muxpass/internal/app"
	"github.com/forest6511/muxpass/internal/config"
	"github.com/forest6511/muxpass/internal/logging"
	"github.com/forest6511/muxpass/pkg/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Global flags
var (
	configPath string
	dataDir    string
	logLevel   string
)

var (
	cfg    *config.Config
	logger *zap.Logger
	svc    *app.Service
)

var rootCmd = &cobra.Command{
	Use:          "muxpass",
	Short:        "muxpass is a local password manager",
	Long:         `Store website credentials encrypted on disk, with an optional PIN lock for interactive sessions.`,
	Version:      version,
	SilenceUsage: true,
	// PersistentPreRunE runs before every subcommand and loads the
	// configuration and logger. The store itself is opened lazily by
	// commands that need it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			loaded.DataDir = dataDir
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		closeService()
		if logger != nil {
			_ = logger.Sync()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the key and credential store (default ~/.muxpass)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// openService opens the credential store for the current command. A key
// that cannot be loaded is fatal.
func openService(opts ...session.Option) (*app.Service, error) {
	if svc != nil {
		return svc, nil
	}
	s, err := app.Open(cfg, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	svc = s
	return svc, nil
}

func closeService() {
	if svc == nil {
		return
	}
	if err := svc.Close(); err != nil {
		logger.Warn("failed to close store", zap.Error(err))
	}
	svc = nil
}

// readSecret prompts on stderr and reads a line without echo when stdin is
// a terminal, or a plain line otherwise so that input can be piped.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(b), nil
	}
	return readLine(stdin)
}

// stdin is shared so that piped input is not lost to separate buffers.
var stdin = bufio.NewReader(os.Stdin)

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question on stderr. Anything but y/yes is no.
func confirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	answer, err := readLine(stdin)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
