package main

import (
    "bytes"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "gopkg.in/yaml.v3"

    "kanban-task-man/internal/config"
)

func execute(t *testing.T, args ...string) string {
    t.Helper()
    cmd := newRootCmd()
    var out bytes.Buffer
    cmd.SetOut(&out)
    cmd.SetErr(&out)
    cmd.SetArgs(args)
    require.NoError(t, cmd.Execute())
    return out.String()
}

func TestConfigCommandAppliesFlags(t *testing.T) {
    dir := t.TempDir()
    cfgPath := filepath.Join(dir, "kanban.yaml")
    c := config.Default()
    c.Server.Port = 4100
    c.OpenAI.APIKey = "secret"
    require.NoError(t, config.Save(cfgPath, c))

    out := execute(t, "config", "--config", cfgPath, "--base-dir", dir)
    var got config.Config
    require.NoError(t, yaml.Unmarshal([]byte(out), &got))
    assert.Equal(t, dir, got.BaseDir)
    assert.Equal(t, 4100, got.Server.Port)
    assert.Equal(t, "***", got.OpenAI.APIKey)
}

func TestConfigCommandMissingFile(t *testing.T) {
    out := execute(t, "config", "--config", filepath.Join(t.TempDir(), "none.json"), "--debug")
    assert.Contains(t, out, "debug: true")
}

func TestVersionCommand(t *testing.T) {
    assert.NotEmpty(t, execute(t, "version"))
}

func TestServeRejectsArgs(t *testing.T) {
    cmd := newRootCmd()
    cmd.SetOut(&bytes.Buffer{})
    cmd.SetErr(&bytes.Buffer{})
    cmd.SetArgs([]string{"serve", "extra"})
    assert.Error(t, cmd.Execute())
}
