package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

func TestParseServeFlags(t *testing.T) {
	opts, err := parseServeFlags([]string{
		"--config", "agent.yaml",
		"--preset", "routing",
		"--listen", "127.0.0.1:9000",
		"--peer", "http://a:1",
		"--peer", "http://b:2",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "agent.yaml", opts.configPath)
	assert.Equal(t, "routing", opts.preset)
	assert.Equal(t, "127.0.0.1:9000", opts.listen)
	assert.Equal(t, stringList{"http://a:1", "http://b:2"}, opts.peers)

	_, err = parseServeFlags([]string{"--bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestBuildServeConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")

	t.Run("defaults", func(t *testing.T) {
		cfg, err := buildServeConfig(serveOptions{configPath: missing})
		require.NoError(t, err)
		assert.Equal(t, config.Defaults().Server.Listen, cfg.Server.Listen)
	})

	t.Run("preset with flag overrides", func(t *testing.T) {
		cfg, err := buildServeConfig(serveOptions{
			configPath: missing,
			preset:     config.PresetRouting,
			listen:     "127.0.0.1:9100",
			peers:      stringList{"http://127.0.0.1:9101"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Routing Agent", cfg.Agent.Name)
		assert.Equal(t, "127.0.0.1:9100", cfg.Server.Listen)
		assert.Equal(t, []string{"http://127.0.0.1:9101"}, cfg.Peers)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := buildServeConfig(serveOptions{configPath: missing, preset: "chef"})
		assert.ErrorContains(t, err, "unknown preset")
	})

	t.Run("invalid peer", func(t *testing.T) {
		_, err := buildServeConfig(serveOptions{configPath: missing, peers: stringList{"not-a-url"}})
		var ve *config.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestDemoConfigs(t *testing.T) {
	base := config.Defaults()
	base.LLM.Provider = "openai"
	base.LLM.Model = "gpt-4o"
	base.Peers = []string{"http://elsewhere:1"}

	cfgs, err := demoConfigs(base, t.TempDir())
	require.NoError(t, err)
	require.Len(t, cfgs, 3)

	names := []string{cfgs[0].Agent.Name, cfgs[1].Agent.Name, cfgs[2].Agent.Name}
	assert.Equal(t, []string{"Research Agent", "Writer Agent", "Routing Agent"}, names)
	assert.Equal(t, "localhost:8001", cfgs[0].Server.Listen)
	assert.Equal(t, "localhost:8002", cfgs[1].Server.Listen)
	assert.Equal(t, "localhost:8000", cfgs[2].Server.Listen)
	assert.Equal(t, []string{"http://localhost:8001", "http://localhost:8002"}, cfgs[2].Peers)
	assert.Empty(t, cfgs[0].Peers)

	for _, cfg := range cfgs {
		assert.Equal(t, "openai", cfg.LLM.Provider)
	}
}
