// Package embedder turns HTML pages into C headers for the firmware build.
// Each run reads the page, renders the PROGMEM declaration and replaces the
// header atomically, so a failed run never leaves a truncated header behind.
package embedder

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Guliveer/pagegen/internal/header"
	"github.com/Guliveer/pagegen/internal/platform"
)

const defaultHeaderPerm os.FileMode = 0o644

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// Embedder generates headers on an afero filesystem.
type Embedder struct {
	fs        afero.Fs
	logger    *zap.Logger
	preflight platform.Preflight
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithPreflight runs p against the destination directory before each write.
// Only meaningful when the Embedder works on the OS filesystem.
func WithPreflight(p platform.Preflight) Option {
	return func(e *Embedder) {
		e.preflight = p
	}
}

// New creates an Embedder.
func New(fs afero.Fs, logger *zap.Logger, opts ...Option) *Embedder {
	e := &Embedder{
		fs:     fs,
		logger: logger.Named("embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed reads the target's page and writes its header. It always rewrites
// the header, even when the content is unchanged.
func (e *Embedder) Embed(t Target) (*Result, error) {
	e.logger.Info("Embedding page into header",
		zap.String("target", t.Name),
		zap.String("source", t.Source),
		zap.String("destination", t.Destination))

	out, res, err := e.render(t)
	if err != nil {
		return nil, err
	}

	if err := e.checkDestination(t.Destination, int64(len(out))); err != nil {
		return nil, &DestinationUnwritableError{Path: t.Destination, Err: err}
	}

	res.Changed = e.differs(t.Destination, out)

	if err := writeFileAtomic(e.fs, t.Destination, out, e.headerPerm(t.Destination)); err != nil {
		return nil, &DestinationUnwritableError{Path: t.Destination, Err: err}
	}

	e.logger.Info("Header written",
		zap.String("target", t.Name),
		zap.String("destination", t.Destination),
		zap.Int("bytes", res.Bytes),
		zap.String("sha256", res.SHA256),
		zap.Bool("changed", res.Changed))

	return res, nil
}

// EmbedAll embeds every target in order and stops at the first failure.
// Results for the targets written before the failure are returned with it.
func (e *Embedder) EmbedAll(targets []Target) ([]*Result, error) {
	results := make([]*Result, 0, len(targets))
	for _, t := range targets {
		res, err := e.Embed(t)
		if err != nil {
			e.logger.Error("Embedding failed", zap.String("target", t.Name), zap.Error(err))
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Check renders the target in memory and reports in Result.Changed whether
// the header on disk is stale. Nothing is written.
func (e *Embedder) Check(t Target) (*Result, error) {
	out, res, err := e.render(t)
	if err != nil {
		return nil, err
	}

	current, err := afero.ReadFile(e.fs, t.Destination)
	switch {
	case err == nil:
		res.Changed = !bytes.Equal(current, out)
	case errors.Is(err, os.ErrNotExist):
		res.Changed = true
	default:
		return nil, &DestinationUnwritableError{Path: t.Destination, Err: err}
	}

	e.logger.Debug("Checked header",
		zap.String("target", t.Name),
		zap.String("destination", t.Destination),
		zap.Bool("stale", res.Changed))

	return res, nil
}

// Extract returns the page embedded in a generated header.
func (e *Embedder) Extract(path string) ([]byte, error) {
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, &SourceUnreadableError{Path: path, Err: err}
	}
	_, content, err := header.Parse(data)
	if err != nil {
		return nil, &SourceUnreadableError{Path: path, Err: err}
	}
	return content, nil
}

// render reads the page and builds the declaration for t.
func (e *Embedder) render(t Target) ([]byte, *Result, error) {
	if err := t.Declaration.Validate(); err != nil {
		return nil, nil, fmt.Errorf("target %s: %w", t.Name, err)
	}

	content, err := afero.ReadFile(e.fs, t.Source)
	if err != nil {
		return nil, nil, &SourceUnreadableError{Path: t.Source, Err: err}
	}
	if !utf8.Valid(content) {
		return nil, nil, &SourceUnreadableError{Path: t.Source, Err: errInvalidUTF8}
	}

	decl := t.Declaration
	if t.StrictDelimiter {
		if header.Collides(content, decl.Delimiter) {
			return nil, nil, &SourceUnreadableError{
				Path: t.Source,
				Err:  fmt.Errorf("%w: %q", header.ErrDelimiterCollision, ")"+decl.Delimiter+`"`),
			}
		}
	} else {
		delim, err := header.SafeDelimiter(content, decl.Delimiter)
		if err != nil {
			return nil, nil, &SourceUnreadableError{Path: t.Source, Err: err}
		}
		if delim != decl.Delimiter {
			e.logger.Warn("Page contains the raw string terminator, using another delimiter",
				zap.String("target", t.Name),
				zap.String("configured", decl.Delimiter),
				zap.String("delimiter", delim))
		}
		decl.Delimiter = delim
	}

	out := header.Render(decl, content)
	sum := sha256.Sum256(out)

	return out, &Result{
		Target:      t.Name,
		Source:      t.Source,
		Destination: t.Destination,
		Delimiter:   decl.Delimiter,
		Bytes:       len(content),
		SHA256:      hex.EncodeToString(sum[:]),
	}, nil
}

// checkDestination verifies the header's directory exists and passes the
// platform preflight. The directory is never created.
func (e *Embedder) checkDestination(path string, size int64) error {
	dir := filepath.Dir(path)
	info, err := e.fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if info, err := e.fs.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	if e.preflight == nil {
		return nil
	}
	err = e.preflight.CheckDestination(dir, size)
	if errors.Is(err, platform.ErrUsageUnavailable) {
		e.logger.Warn("Could not check free space, writing anyway",
			zap.String("directory", dir),
			zap.String("platform", e.preflight.Name()),
			zap.Error(err))
		return nil
	}
	return err
}

func (e *Embedder) differs(path string, out []byte) bool {
	current, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, out)
}

// headerPerm keeps the mode of an existing header.
func (e *Embedder) headerPerm(path string) os.FileMode {
	if info, err := e.fs.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return defaultHeaderPerm
}
