package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shots.yaml")
	data := "path: /data/shots\ntrain: images/train\nval: images/val\nnc: 2\nnames:\n  - car\n  - truck\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	desc, err := describeManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "nc: 2, names: [car truck], train: images/train, val: images/val", desc)
}

func TestDescribeManifestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := describeManifest(filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nc: 3\nnames: [car]\n"), 0o644))
	_, err = describeManifest(bad)
	assert.ErrorContains(t, err, "nc is 3")
}
