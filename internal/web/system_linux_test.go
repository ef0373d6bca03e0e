//go:build linux

package web

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDisk(t *testing.T) {
	dir := t.TempDir()
	d := snapshotDisk(filepath.Join(dir, "journal.db"))
	require.NotNil(t, d)
	assert.Empty(t, d.LastError)
	assert.Equal(t, dir, d.Path)
	assert.NotZero(t, d.TotalBytes)
	assert.LessOrEqual(t, d.AvailBytes, d.TotalBytes)
}

func TestSnapshotDisk_Missing(t *testing.T) {
	d := snapshotDisk("/definitely/not/here/journal.db")
	require.NotNil(t, d)
	assert.NotEmpty(t, d.LastError)
}
