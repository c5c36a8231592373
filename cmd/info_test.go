package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInfo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "capture.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 5000), 0644))

	var buf bytes.Buffer
	err := runInfo(path, 1400, &buf)

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "size:        5000 bytes")
	assert.Contains(t, out, "chunk size:  1400 bytes")
	assert.Contains(t, out, "chunks:      4")
}

func TestRunInfoMissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := runInfo("/nonexistent/capture.bin", 1400, &buf)

	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestInfoCmd_Execute(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "capture.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0644))

	root := &cobra.Command{Use: "ninox"}
	root.AddCommand(infoCmd)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"info", "--chunk-size", "512", path})

	err := root.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "chunks:      4")
}
