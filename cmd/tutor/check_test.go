package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCheckConfigPrintsLayout(t *testing.T) {
	path := writeConfig(t, "role: teacher\nauto_join: [screen_share]\nport: 9000\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-config", "--config", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "role: teacher (peer student)")
	assert.Contains(t, out.String(), "local  primary")
	assert.Contains(t, out.String(), "listen: 127.0.0.1:9000")
}

func TestCheckConfigRejectsBadRole(t *testing.T) {
	path := writeConfig(t, "role: principal\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check-config", "--config", path})

	assert.Error(t, cmd.Execute())
}
