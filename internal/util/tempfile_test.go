package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsClipDefFile(t *testing.T) {
	require.True(t, IsClipDefFile("a.clip.json"))
	require.True(t, IsClipDefFile("/tmp/UPPER.CLIP.JSON"))
	require.False(t, IsClipDefFile("a.json"))
	require.False(t, IsClipDefFile("a.clip"))
}

func TestFormatDurationFromSecs(t *testing.T) {
	require.Equal(t, "0:00", FormatDurationFromSecs(0))
	require.Equal(t, "0:05", FormatDurationFromSecs(5))
	require.Equal(t, "2:03", FormatDurationFromSecs(123))
	require.Equal(t, "1:01:01", FormatDurationFromSecs(3661))
	require.Equal(t, "0:00", FormatDurationFromSecs(-10))
}

func TestFormatBytesReadable(t *testing.T) {
	require.Equal(t, "512 B", FormatBytesReadable(512))
	require.Equal(t, "1.0 KiB", FormatBytesReadable(1024))
	require.Equal(t, "1.5 MiB", FormatBytesReadable(3*1024*1024/2))
	require.Equal(t, "2.0 GiB", FormatBytesReadable(2*1024*1024*1024))
}

func TestCreateTempDirAndCleanup(t *testing.T) {
	base := t.TempDir()
	td, err := CreateTempDir(base, "splitproc")
	require.NoError(t, err)

	info, err := os.Stat(td.Path())
	require.NoError(t, err)
	require.True(t, info.IsDir())

	require.NoError(t, td.Cleanup())
	_, err = os.Stat(td.Path())
	require.True(t, os.IsNotExist(err))
}

func TestCreateTempFileAndCleanup(t *testing.T) {
	tf, err := CreateTempFile(t.TempDir(), "splitproc", "bin")
	require.NoError(t, err)

	_, err = tf.WriteString("payload")
	require.NoError(t, err)

	path := tf.Name()
	require.NoError(t, tf.Cleanup())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestCleanupStaleTempFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "splitproc_old.bin")
	require.NoError(t, os.WriteFile(stale, nil, 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(dir, "splitproc_new.bin")
	require.NoError(t, os.WriteFile(fresh, nil, 0644))

	other := filepath.Join(dir, "unrelated_old.bin")
	require.NoError(t, os.WriteFile(other, nil, 0644))
	require.NoError(t, os.Chtimes(other, old, old))

	n, err := CleanupStaleTempFiles(dir, "splitproc", 24)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err)
}

func TestEnsureDirectoryWritable(t *testing.T) {
	require.NoError(t, EnsureDirectoryWritable(t.TempDir()))
	require.Error(t, EnsureDirectoryWritable(filepath.Join(t.TempDir(), "missing")))

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	require.Error(t, EnsureDirectoryWritable(file))
}
