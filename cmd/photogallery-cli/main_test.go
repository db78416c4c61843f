package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeImage creates a small PNG in dir and returns its path.
func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0644))
	return p
}

// executeCommandC executes a fresh root command against the bolt database at
// dbPath and captures its output.
func executeCommandC(t *testing.T, dbPath string, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), NewRootCmd(openBackend), dbPath, args...)
}

func executeContext(t *testing.T, ctx context.Context, root *cobra.Command, dbPath string, args ...string) (string, string, error) {
	t.Helper()
	countFlag = 0
	startFlag = 0

	actualStdout := new(bytes.Buffer)
	actualStderr := new(bytes.Buffer)
	root.SetOut(actualStdout)
	root.SetErr(actualStderr)
	root.SetArgs(append([]string{"--backend", "bolt", "--db", dbPath, "--log", "error"}, args...))

	err := root.ExecuteContext(ctx)
	closeBackend()

	return actualStdout.String(), actualStderr.String(), err
}

// listIDs returns the image ids in display order.
func listIDs(t *testing.T, dbPath string) []string {
	t.Helper()
	stdout, _, err := executeCommandC(t, dbPath, "list")
	require.NoError(t, err)
	if strings.Contains(stdout, "The gallery is empty.") {
		return nil
	}
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 2, line)
		ids = append(ids, fields[1])
	}
	return ids
}

func TestRootHelp(t *testing.T) {
	stdout, stderr, err := executeCommandC(t, filepath.Join(t.TempDir(), "g.db"), "--help")
	require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "photogallery-cli [command]")
}

func TestAddListDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "g.db")
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	b := writeImage(t, dir, "b.png")
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, listIDs(t, dbPath))
	})

	t.Run("add skips undecodable files", func(t *testing.T) {
		stdout, stderr, err := executeCommandC(t, dbPath, "add", a, b, bad)
		require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
		assert.Contains(t, stdout, "2 added, 1 skipped")
		assert.Contains(t, stdout, "skipped bad.png")
	})

	ids := listIDs(t, dbPath)
	require.Len(t, ids, 2)

	t.Run("delete", func(t *testing.T) {
		stdout, _, err := executeCommandC(t, dbPath, "delete", ids[0])
		require.NoError(t, err)
		assert.Contains(t, stdout, "removed "+ids[0])
		assert.Equal(t, ids[1:], listIDs(t, dbPath))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		stdout, _, err := executeCommandC(t, dbPath, "delete", ids[0])
		require.Error(t, err)
		assert.Contains(t, stdout, "not found "+ids[0])
		assert.Equal(t, ids[1:], listIDs(t, dbPath))
	})
}

func TestAddOnlyBadFiles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "g.db")
	bad := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))

	_, _, err := executeCommandC(t, dbPath, "add", bad)
	assert.ErrorIs(t, err, errNoAdded)
}

func TestImport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "g.db")
	dir := t.TempDir()
	writeImage(t, dir, "1.png")
	writeImage(t, dir, "2.png")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	writeImage(t, filepath.Join(dir, "sub"), "3.png")

	stdout, _, err := executeCommandC(t, dbPath, "import", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 added, 0 skipped")
	assert.Len(t, listIDs(t, dbPath), 3)

	_, _, err = executeCommandC(t, dbPath, "import", t.TempDir())
	assert.Error(t, err)
}

func TestSlideshow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "g.db")
	dir := t.TempDir()
	_, _, err := executeCommandC(t, dbPath, "add", writeImage(t, dir, "a.png"), writeImage(t, dir, "b.png"))
	require.NoError(t, err)
	ids := listIDs(t, dbPath)
	require.Len(t, ids, 2)

	t.Run("wraps around", func(t *testing.T) {
		stdout, _, err := executeCommandC(t, dbPath, "--period", "1", "slideshow", "--start", "1", "--count", "2")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "[2/2] "+ids[1], lines[0])
		assert.Equal(t, "[1/2] "+ids[0], lines[1])
	})

	t.Run("empty gallery", func(t *testing.T) {
		_, _, err := executeCommandC(t, filepath.Join(t.TempDir(), "empty.db"), "slideshow")
		assert.Error(t, err)
	})

	t.Run("invalid period", func(t *testing.T) {
		_, _, err := executeCommandC(t, dbPath, "--period", "-2", "slideshow", "--count", "1")
		assert.Error(t, err)
	})
}

func TestServeStopsOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "g.db")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	_, _, err := executeContext(t, ctx, NewRootCmd(openBackend), dbPath, "--addr", "127.0.0.1:0", "serve")
	assert.NoError(t, err)
}
