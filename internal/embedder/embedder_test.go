package embedder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Guliveer/pagegen/internal/header"
	"github.com/Guliveer/pagegen/internal/platform"
)

const mainPage = `const char MAIN_page[] PROGMEM = R"=====(<html>Hi</html>)=====";`

func indexTarget() Target {
	return Target{
		Name:        "index",
		Source:      "src/index.html",
		Destination: "include/index.h",
		Declaration: header.DefaultDeclaration(),
	}
}

func newFs(t *testing.T, page string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("include", 0o755))
	require.NoError(t, afero.WriteFile(fs, "src/index.html", []byte(page), 0o644))
	return fs
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

type stubPreflight struct {
	err   error
	dir   string
	size  int64
	calls int
}

func (s *stubPreflight) CheckDestination(dir string, size int64) error {
	s.calls++
	s.dir = dir
	s.size = size
	return s.err
}

func (s *stubPreflight) Name() string { return "stub" }

func TestEmbed_MainPage(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	e := New(fs, zap.NewNop())

	res, err := e.Embed(indexTarget())
	require.NoError(t, err)

	assert.Equal(t, mainPage, readFile(t, fs, "include/index.h"))
	assert.Equal(t, "index", res.Target)
	assert.Equal(t, header.DefaultDelimiter, res.Delimiter)
	assert.Equal(t, len("<html>Hi</html>"), res.Bytes)
	assert.Len(t, res.SHA256, 64)
	assert.True(t, res.Changed)
}

func TestEmbed_PreservesContent(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"empty", ""},
		{"quotes and newlines", "<p onclick=\"alert('x')\">\n\ta \\n b\r\n</p>\n"},
		{"near-delimiter", "<pre>)==== and =====( and )=====</pre>"},
		{"unicode", "<h1>Température: 21°C</h1>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFs(t, tt.page)
			e := New(fs, zap.NewNop())

			_, err := e.Embed(indexTarget())
			require.NoError(t, err)

			got, err := e.Extract("include/index.h")
			require.NoError(t, err)
			assert.Equal(t, tt.page, string(got))
		})
	}
}

func TestEmbed_EmptyPage(t *testing.T) {
	fs := newFs(t, "")
	_, err := New(fs, zap.NewNop()).Embed(indexTarget())
	require.NoError(t, err)

	assert.Equal(t, `const char MAIN_page[] PROGMEM = R"=====()=====";`, readFile(t, fs, "include/index.h"))
}

func TestEmbed_Idempotent(t *testing.T) {
	fs := newFs(t, "<html>\n<body>same</body>\n</html>\n")
	e := New(fs, zap.NewNop())

	first, err := e.Embed(indexTarget())
	require.NoError(t, err)
	out1 := readFile(t, fs, "include/index.h")

	second, err := e.Embed(indexTarget())
	require.NoError(t, err)
	out2 := readFile(t, fs, "include/index.h")

	assert.Equal(t, out1, out2)
	assert.Equal(t, first.SHA256, second.SHA256)
	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
}

func TestEmbed_OverwritesStaleHeader(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	require.NoError(t, afero.WriteFile(fs, "include/index.h", []byte("old contents that are much longer than the new header"), 0o600))

	_, err := New(fs, zap.NewNop()).Embed(indexTarget())
	require.NoError(t, err)

	assert.Equal(t, mainPage, readFile(t, fs, "include/index.h"))
	info, err := fs.Stat("include/index.h")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())
}

func TestEmbed_NoTempFilesLeft(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	_, err := New(fs, zap.NewNop()).Embed(indexTarget())
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, "include")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.h", entries[0].Name())
}

func TestEmbed_MissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("include", 0o755))
	require.NoError(t, afero.WriteFile(fs, "include/index.h", []byte(mainPage), 0o644))

	_, err := New(fs, zap.NewNop()).Embed(indexTarget())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.NotErrorIs(t, err, ErrDestinationUnwritable)
	assert.Contains(t, err.Error(), "src/index.html")

	var srcErr *SourceUnreadableError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "src/index.html", srcErr.Path)

	assert.Equal(t, mainPage, readFile(t, fs, "include/index.h"))
}

func TestEmbed_MissingSourceLeavesNoHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("include", 0o755))

	_, err := New(fs, zap.NewNop()).Embed(indexTarget())
	require.ErrorIs(t, err, ErrSourceUnreadable)

	exists, err := afero.Exists(fs, "include/index.h")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEmbed_InvalidUTF8(t *testing.T) {
	fs := newFs(t, "<html>\xff\xfe</html>")

	_, err := New(fs, zap.NewNop()).Embed(indexTarget())
	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.ErrorIs(t, err, errInvalidUTF8)
}

func TestEmbed_MissingDestinationDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "src/index.html", []byte("<html>Hi</html>"), 0o644))

	_, err := New(fs, zap.NewNop()).Embed(indexTarget())

	assert.ErrorIs(t, err, ErrDestinationUnwritable)
	assert.Contains(t, err.Error(), "include/index.h")

	exists, _ := afero.Exists(fs, "include/index.h")
	assert.False(t, exists)
}

func TestEmbed_DestinationIsDirectory(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	require.NoError(t, fs.MkdirAll("include/index.h", 0o755))

	_, err := New(fs, zap.NewNop()).Embed(indexTarget())
	assert.ErrorIs(t, err, ErrDestinationUnwritable)
}

func TestEmbed_ReadOnlyFilesystem(t *testing.T) {
	base := newFs(t, "<html>new</html>")
	require.NoError(t, afero.WriteFile(base, "include/index.h", []byte(mainPage), 0o644))

	_, err := New(afero.NewReadOnlyFs(base), zap.NewNop()).Embed(indexTarget())

	assert.ErrorIs(t, err, ErrDestinationUnwritable)
	assert.Equal(t, mainPage, readFile(t, base, "include/index.h"))
}

func TestEmbed_Preflight(t *testing.T) {
	t.Run("receives directory and size", func(t *testing.T) {
		fs := newFs(t, "<html>Hi</html>")
		pf := &stubPreflight{}

		_, err := New(fs, zap.NewNop(), WithPreflight(pf)).Embed(indexTarget())
		require.NoError(t, err)

		assert.Equal(t, 1, pf.calls)
		assert.Equal(t, "include", pf.dir)
		assert.Equal(t, int64(len(mainPage)), pf.size)
	})

	t.Run("failure aborts before writing", func(t *testing.T) {
		fs := newFs(t, "<html>Hi</html>")
		pf := &stubPreflight{err: platform.ErrInsufficientSpace}

		_, err := New(fs, zap.NewNop(), WithPreflight(pf)).Embed(indexTarget())

		assert.ErrorIs(t, err, ErrDestinationUnwritable)
		assert.ErrorIs(t, err, platform.ErrInsufficientSpace)
		exists, _ := afero.Exists(fs, "include/index.h")
		assert.False(t, exists)
	})

	t.Run("not called when source fails", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		pf := &stubPreflight{}

		_, err := New(fs, zap.NewNop(), WithPreflight(pf)).Embed(indexTarget())
		assert.ErrorIs(t, err, ErrSourceUnreadable)
		assert.Zero(t, pf.calls)
	})
}

func TestEmbed_UsageUnavailableIsLogged(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	pf := &stubPreflight{err: fmt.Errorf("%w for include: statfs failed", platform.ErrUsageUnavailable)}
	core, logs := observer.New(zapcore.WarnLevel)

	_, err := New(fs, zap.New(core), WithPreflight(pf)).Embed(indexTarget())
	require.NoError(t, err)

	assert.Equal(t, mainPage, readFile(t, fs, "include/index.h"))
	warns := logs.FilterMessage("Could not check free space, writing anyway").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "include", warns[0].ContextMap()["directory"])
	assert.Contains(t, warns[0].ContextMap()["error"], "statfs failed")
}

func TestEmbed_InvalidDeclaration(t *testing.T) {
	fs := newFs(t, "x")
	target := indexTarget()
	target.Declaration = header.Declaration{Identifier: "X", Delimiter: "a)b"}

	_, err := New(fs, zap.NewNop()).Embed(target)

	assert.ErrorIs(t, err, header.ErrInvalidDelimiter)
	exists, _ := afero.Exists(fs, "include/index.h")
	assert.False(t, exists)

	_, err = New(fs, zap.NewNop()).Check(target)
	assert.ErrorIs(t, err, header.ErrInvalidDelimiter)
}

func TestEmbed_OsFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.html"), []byte("<html>Hi</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "index.h"), []byte("stale header, longer than the new one"), 0o640))

	target := indexTarget()
	target.Source = filepath.Join(dir, "src", "index.html")
	target.Destination = filepath.Join(dir, "include", "index.h")

	res, err := New(afero.NewOsFs(), zap.NewNop(), WithPreflight(platform.New())).Embed(target)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	data, err := os.ReadFile(target.Destination)
	require.NoError(t, err)
	assert.Equal(t, mainPage, string(data))

	info, err := os.Stat(target.Destination)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Join(dir, "include"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.h", entries[0].Name())
}

func TestEmbed_DelimiterCollision(t *testing.T) {
	page := `<script>var s = ")=====";</script>`

	t.Run("picks another delimiter", func(t *testing.T) {
		fs := newFs(t, page)
		e := New(fs, zap.NewNop())

		res, err := e.Embed(indexTarget())
		require.NoError(t, err)
		assert.Equal(t, "=====0", res.Delimiter)

		got, err := e.Extract("include/index.h")
		require.NoError(t, err)
		assert.Equal(t, page, string(got))
	})

	t.Run("strict mode fails", func(t *testing.T) {
		fs := newFs(t, page)
		target := indexTarget()
		target.StrictDelimiter = true

		_, err := New(fs, zap.NewNop()).Embed(target)
		assert.ErrorIs(t, err, ErrSourceUnreadable)
		assert.ErrorIs(t, err, header.ErrDelimiterCollision)

		exists, _ := afero.Exists(fs, "include/index.h")
		assert.False(t, exists)
	})
}

func TestEmbedAll_StopsAtFirstFailure(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	require.NoError(t, afero.WriteFile(fs, "src/setup.html", []byte("<html>setup</html>"), 0o644))

	setup := Target{
		Name:        "setup",
		Source:      "src/setup.html",
		Destination: "include/setup.h",
		Declaration: header.Declaration{Identifier: "SETUP_page", Qualifier: "PROGMEM", Delimiter: "====="},
	}
	missing := Target{Name: "missing", Source: "src/missing.html", Destination: "include/missing.h", Declaration: header.DefaultDeclaration()}
	after := Target{Name: "after", Source: "src/index.html", Destination: "include/after.h", Declaration: header.DefaultDeclaration()}

	results, err := New(fs, zap.NewNop()).EmbedAll([]Target{indexTarget(), setup, missing, after})

	assert.ErrorIs(t, err, ErrSourceUnreadable)
	require.Len(t, results, 2)
	assert.Equal(t, "index", results[0].Target)
	assert.Equal(t, "setup", results[1].Target)
	assert.Equal(t, `const char SETUP_page[] PROGMEM = R"=====(<html>setup</html>)=====";`, readFile(t, fs, "include/setup.h"))

	exists, _ := afero.Exists(fs, "include/after.h")
	assert.False(t, exists)
}

func TestCheck(t *testing.T) {
	fs := newFs(t, "<html>Hi</html>")
	e := New(fs, zap.NewNop())

	res, err := e.Check(indexTarget())
	require.NoError(t, err)
	assert.True(t, res.Changed, "missing header is stale")

	_, err = e.Embed(indexTarget())
	require.NoError(t, err)

	res, err = e.Check(indexTarget())
	require.NoError(t, err)
	assert.False(t, res.Changed)

	require.NoError(t, afero.WriteFile(fs, "src/index.html", []byte("<html>Bye</html>"), 0o644))
	res, err = e.Check(indexTarget())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, mainPage, readFile(t, fs, "include/index.h"), "check must not write")
}

func TestExtract_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "include/bad.h", []byte("#define X 1\n"), 0o644))
	e := New(fs, zap.NewNop())

	_, err := e.Extract("include/missing.h")
	assert.ErrorIs(t, err, ErrSourceUnreadable)

	_, err = e.Extract("include/bad.h")
	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.ErrorIs(t, err, header.ErrMalformed)
}
