package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/fincert/internal/app"
	"github.com/sufield/fincert/internal/config"
)

func newTestRegistry() *CommandRegistry {
	r := NewCommandRegistry(VersionInfo{Version: "1.2.3", Commit: "abc", Date: "2024-07-01"})
	registerCommands(r)
	return r
}

func TestExecute_UsageErrors(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"sync"}},
		{name: "unknown flag", args: []string{"version", "--verbose"}},
		{name: "extra argument", args: []string{"feeds", "extra"}},
		{name: "limit out of range", args: []string{"bulletins", "--limit", "101"}},
		{name: "negative offset", args: []string{"bulletins", "--offset", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Execute(ctx, tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, errUsage)
			assert.Equal(t, app.ExitConfig, exitCode(err))
		})
	}
}

func TestExecute_Help(t *testing.T) {
	r := newTestRegistry()
	assert.NoError(t, r.Execute(context.Background(), []string{"--help"}))
	assert.NoError(t, r.Execute(context.Background(), []string{"help", "bulletins"}))

	err := r.Execute(context.Background(), []string{"version", "-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Equal(t, app.ExitOK, exitCode(err))
}

func TestPrintHelp_ListsCommandsInOrder(t *testing.T) {
	var buf bytes.Buffer
	newTestRegistry().PrintHelp(&buf)
	out := buf.String()

	prev := -1
	for _, name := range []string{"run", "feeds", "bulletins", "checklist", "validate", "cert", "version", "help"} {
		idx := strings.Index(out, "    "+name+" ")
		require.GreaterOrEqual(t, idx, 0, name)
		assert.Greater(t, idx, prev, name)
		prev = idx
	}
}

func TestRun_MissingConfigIsCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fincert.yaml")

	err := newTestRegistry().Execute(context.Background(), []string{"run", "--config", path})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNewConfig)
	assert.Equal(t, app.ExitConfig, exitCode(err))
	assert.FileExists(t, path)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry()

	incomplete := filepath.Join(dir, "incomplete.yaml")
	require.NoError(t, config.WriteDefault(incomplete))
	err := r.Execute(context.Background(), []string{"validate", "--config", incomplete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_thumbprint is required")
	assert.Equal(t, app.ExitConfig, exitCode(err))

	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("tls:\n  client_thumbprint: df252a12\n"), 0o600))
	assert.NoError(t, r.Execute(context.Background(), []string{"validate", "--config", valid}))

	err = r.Execute(context.Background(), []string{"validate", "--config", filepath.Join(dir, "absent.yaml")})
	assert.Equal(t, app.ExitConfig, exitCode(err))
}

func TestCert_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fincert.yaml")
	store := filepath.Join(dir, "certs")
	require.NoError(t, os.MkdirAll(store, 0o750))
	require.NoError(t, os.WriteFile(cfgPath, []byte("tls:\n  client_thumbprint: df252a12\n  cert_store: "+store+"\n"), 0o600))

	err := newTestRegistry().Execute(context.Background(), []string{"cert", "--config", cfgPath})
	require.Error(t, err)
	assert.Equal(t, app.ExitIdentity, exitCode(err))
}

func TestTableWriter(t *testing.T) {
	table := NewTableWriter([]string{"A", "Long header"})
	table.AddRow([]string{"wide cell", "x"})

	var buf bytes.Buffer
	table.Print(&buf)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "│ wide cell │ x           │", lines[3])
	for _, l := range lines {
		assert.Equal(t, len([]rune(lines[0])), len([]rune(l)))
	}
}

func TestExitCode_UsesApplicationMapping(t *testing.T) {
	assert.Equal(t, app.ExitOK, exitCode(nil))
	assert.Equal(t, app.ExitInternal, exitCode(errors.New("boom")))
	assert.Equal(t, app.ExitInterrupted, exitCode(context.Canceled))
}
