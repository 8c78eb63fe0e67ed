package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, log.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, log.InfoLevel, ParseLevel("chatty"))
}

func TestFactoryPrefixesAndLevels(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory(New(&buf, "info"), map[string]string{"gmail": "debug"})

	f.For("gmail").Debug("listed", "count", 3)
	f.For("classify").Debug("hidden")
	f.For("classify").Info("shown")

	out := buf.String()
	assert.Contains(t, out, "gmail")
	assert.Contains(t, out, "count=3")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailsort.log")

	l, c, err := Open(path, "info")
	require.NoError(t, err)
	l.Info("first")
	require.NoError(t, c.Close())

	l, c, err = Open(path, "info")
	require.NoError(t, err)
	l.Info("second")
	require.NoError(t, c.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "first")
	assert.Contains(t, string(b), "second")
}

func TestOpenBadPath(t *testing.T) {
	_, _, err := Open(filepath.Join(t.TempDir(), "missing", "x.log"), "info")
	assert.Error(t, err)
}
