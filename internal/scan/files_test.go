package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"image.PNG", true},
		{"image.jpg", true},
		{"image.jpeg", true},
		{"image.gif", true},
		{"image.webp", true},
		{"scan.BMP", true},
		{"scan.tif", true},
		{"scan.tiff", true},
		{"image.txt", false},
		{"image", false},
		{".jpeg", true}, // only an extension
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, IsImage(test.name), test.name)
	}
}

func collect(t *testing.T, items <-chan FileItem) []FileItem {
	t.Helper()
	var found []FileItem
	timeout := time.After(5 * time.Second)
	for {
		select {
		case item, ok := <-items:
			if !ok {
				return found
			}
			found = append(found, item)
		case <-timeout:
			t.Fatal("timed out waiting for scan results")
			return nil
		}
	}
}

func TestRun(t *testing.T) {
	rootDir := t.TempDir()

	topImage1 := filepath.Join(rootDir, "image1.png")
	topImage2 := filepath.Join(rootDir, "image2.JPG") // extension case
	topText := filepath.Join(rootDir, "document.txt")
	topEmptyImage := filepath.Join(rootDir, "empty.gif")

	subDir1 := filepath.Join(rootDir, "sub1")
	require.NoError(t, os.Mkdir(subDir1, 0o755))
	subImage1 := filepath.Join(subDir1, "image3.jpeg")
	subText1 := filepath.Join(subDir1, "notes.md")

	require.NoError(t, os.Mkdir(filepath.Join(rootDir, "sub2"), 0o755))

	subSubDir := filepath.Join(subDir1, "subsub")
	require.NoError(t, os.Mkdir(subSubDir, 0o755))
	subSubImage1 := filepath.Join(subSubDir, "image4.webp")

	filesToCreate := map[string]int{
		topImage1:     10,
		topImage2:     12,
		topText:       10,
		topEmptyImage: 0, // skipped
		subImage1:     10,
		subText1:      10,
		subSubImage1:  10,
	}
	for path, size := range filesToCreate {
		content := make([]byte, size)
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}

	found := collect(t, Run(rootDir, nil))

	var paths []string
	for _, item := range found {
		paths = append(paths, item.Path)
		assert.Positive(t, item.Size, item.Path)
	}
	// WalkDir visits entries in lexical order.
	assert.Equal(t, []string{topImage1, topImage2, subImage1, subSubImage1}, paths)
	assert.Equal(t, int64(12), found[1].Size)
}

func TestRunMissingDirectory(t *testing.T) {
	found := collect(t, Run(filepath.Join(t.TempDir(), "nope"), nil))
	assert.Empty(t, found)
}
