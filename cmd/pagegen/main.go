// Package main is the entry point for pagegen, the pre-upload build hook
// that embeds HTML pages into C headers served from firmware program memory.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Guliveer/pagegen/internal/config"
	"github.com/Guliveer/pagegen/internal/platform"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	app := newApp(afero.NewOsFs(), platform.New(), os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pagegen: %v\n", err)
		os.Exit(1)
	}
}

// session is what the Before hook prepares for the commands.
type session struct {
	fs        afero.Fs
	preflight platform.Preflight
	stdout    io.Writer
	stderr    io.Writer

	cfg        *config.Config
	logger     *zap.Logger
	closeLogFn func()
}

func newApp(fs afero.Fs, preflight platform.Preflight, stdout, stderr io.Writer) *cli.App {
	s := &session{
		fs:         fs,
		preflight:  preflight,
		stdout:     stdout,
		stderr:     stderr,
		logger:     zap.NewNop(),
		closeLogFn: func() {},
	}

	return &cli.App{
		Name:      "pagegen",
		Usage:     "Embed HTML pages into C headers for PROGMEM",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: search pagegen.yaml, .pagegen.yaml)",
				EnvVars: []string{"PAGEGEN_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write JSON logs to this file",
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "HTML page to embed (first target)",
			},
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Header file to write (first target)",
			},
			&cli.StringFlag{
				Name:  "identifier",
				Usage: "C identifier of the generated array (first target)",
			},
			&cli.StringFlag{
				Name:  "qualifier",
				Usage: "Memory qualifier placed after the array (first target)",
			},
			&cli.StringFlag{
				Name:  "delimiter",
				Usage: "Raw string delimiter (first target)",
			},
		},
		Before: s.setup,
		After: func(*cli.Context) error {
			_ = s.logger.Sync()
			s.closeLogFn()
			return nil
		},
		// main reports errors and sets the exit status.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:   "embed",
				Usage:  "Generate every configured header (default)",
				Action: s.runEmbed,
			},
			{
				Name:   "check",
				Usage:  "Exit non-zero when a header is out of date with its page",
				Action: s.runCheck,
			},
			{
				Name:      "extract",
				Usage:     "Print the page embedded in a generated header",
				ArgsUsage: "<header>",
				Action:    s.runExtract,
			},
			{
				Name:      "init",
				Usage:     "Write the effective configuration as YAML",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: s.runInit,
			},
		},
		Action: s.runEmbed,
	}
}

// setup loads the layered configuration and builds the logger.
func (s *session) setup(c *cli.Context) error {
	overrides := config.CLIOverrides{
		Source:      c.String("source"),
		Destination: c.String("dest"),
		Identifier:  c.String("identifier"),
		Qualifier:   c.String("qualifier"),
		Delimiter:   c.String("delimiter"),
		LogLevel:    c.String("log-level"),
		LogFile:     c.String("log-file"),
	}

	var (
		cfg *config.Config
		err error
	)
	if c.IsSet("config") {
		cfg, err = config.LoadLayered(overrides, embeddedConfig, c.String("config"))
	} else {
		cfg, err = config.LoadLayered(overrides, embeddedConfig)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.cfg = cfg
	s.logger, s.closeLogFn = initLogger(cfg, s.stderr)
	s.logger.Debug("Configuration loaded",
		zap.String("version", version),
		zap.Int("targets", len(cfg.Targets)))
	return nil
}
