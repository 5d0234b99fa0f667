package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Guliveer/pagegen/internal/config"
	"github.com/Guliveer/pagegen/internal/embedder"
)

var errStale = errors.New("headers are out of date, run pagegen embed")

func (s *session) newEmbedder() *embedder.Embedder {
	var opts []embedder.Option
	if s.preflight != nil {
		opts = append(opts, embedder.WithPreflight(s.preflight))
	}
	return embedder.New(s.fs, s.logger, opts...)
}

func (s *session) runEmbed(c *cli.Context) error {
	results, err := s.newEmbedder().EmbedAll(s.cfg.EmbedTargets())
	if err != nil {
		return err
	}
	changed := 0
	for _, r := range results {
		if r.Changed {
			changed++
		}
	}
	s.logger.Info("Headers generated",
		zap.Int("targets", len(results)),
		zap.Int("changed", changed))
	return nil
}

func (s *session) runCheck(c *cli.Context) error {
	ok := color.New(color.FgGreen)
	stale := color.New(color.FgRed)

	e := s.newEmbedder()
	anyStale := false
	for _, t := range s.cfg.EmbedTargets() {
		res, err := e.Check(t)
		if err != nil {
			return err
		}
		if res.Changed {
			anyStale = true
			stale.Fprintf(s.stdout, "✗ %s: %s is stale\n", t.Name, t.Destination)
			continue
		}
		ok.Fprintf(s.stdout, "✓ %s: %s is up to date\n", t.Name, t.Destination)
	}
	if anyStale {
		return errStale
	}
	return nil
}

func (s *session) runExtract(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("extract takes exactly one header path, got %d", c.NArg())
	}
	content, err := s.newEmbedder().Extract(c.Args().First())
	if err != nil {
		return err
	}
	_, err = s.stdout.Write(content)
	return err
}

func (s *session) runInit(c *cli.Context) error {
	path := "pagegen.yaml"
	if c.NArg() > 0 {
		path = c.Args().First()
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	// Logging overrides from the command line are not meant to be persisted.
	cfg := *s.cfg
	cfg.Logging = config.DefaultConfig().Logging
	if err := config.WriteConfig(&cfg, path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(s.stdout, "Written config → %s\n", path)
	return nil
}
