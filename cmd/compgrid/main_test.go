package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compgrid/internal/model"
)

const sampleDefinition = `name: health
title: Health {yesterday_date}
telegram: "-100123"
columns:
  - name: Yesterday
    type: number
    value: yesterday
  - name: WoW
    type: pctchange
    value: trailingsum(7)
    base: trailingsum(14,7)
rows:
  - name: Signups
    query: signups.sql
    type: number
`

func writeDefinition(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "signups.sql"), []byte("select 1"), 0o644))
	path := filepath.Join(dir, "health.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinition), 0o644))
	return path
}

func TestCheckCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", writeDefinition(t)})

	require.NoError(t, root.Execute())
	assert.Equal(t, "health: ok\ncolumns: Yesterday, WoW\nrows: Signups\nfields: telegram, title\n", out.String())
}

func TestCheckCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\n"), 0o644))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"check", path})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing toplevel columns attribute")
}

func TestRunCmd_UnknownTarget(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := "data_source:\n  driver: mock\ndatabase:\n  sqlite_path: " + filepath.Join(dir, "runs.db") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"--config", cfg, "run", "pager", writeDefinition(t)})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target "pager"`)
}

func TestRunAnchor(t *testing.T) {
	d, err := runAnchor("2024-02-29", nil)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2024, 2, 29), d)

	_, err = runAnchor("yesterday", nil)
	assert.Error(t, err)

	_, err = runAnchor("", func() (*time.Location, error) { return nil, errors.New("bad zone") })
	assert.EqualError(t, err, "bad zone")

	d, err = runAnchor("", func() (*time.Location, error) { return time.UTC, nil })
	require.NoError(t, err)
	assert.Equal(t, model.Yesterday(time.Now(), time.UTC), d)
}
