package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFsPutThenFileOpen(t *testing.T) {
	f := NewMemoryFs()
	f.Put("pkgs/vnfd-a/cloud_init/init.sh", []byte("#!/bin/sh\necho hi\n"))

	rc, err := f.FileOpen("pkgs/vnfd-a/cloud_init/init.sh")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(data))
}

func TestMemoryFsMissingFile(t *testing.T) {
	f := NewMemoryFs()
	_, err := f.FileOpen("missing.sh")
	assert.Error(t, err)
}

func TestLocalFsReadsUnderRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkgs", "vnfd-a", "cloud_init"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkgs", "vnfd-a", "cloud_init", "init.sh"), []byte("hi\n"), 0o644))

	f := NewLocalFs(dir)
	rc, err := f.FileOpen("pkgs/vnfd-a/cloud_init/init.sh")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestLocalFsMissingFile(t *testing.T) {
	f := NewLocalFs(t.TempDir())
	_, err := f.FileOpen("missing.sh")
	assert.Error(t, err)
}
