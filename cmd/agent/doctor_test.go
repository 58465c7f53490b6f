package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-hub/a2a-orchestrator/internal/adapter/a2a"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

func TestCheckConfigFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(present, []byte("agent:\n  name: x\n"), 0o600))

	tests := []struct {
		name string
		path string
		err  error
		want CheckStatus
	}{
		{"missing file uses defaults", filepath.Join(dir, "none.yaml"), nil, StatusWarn},
		{"loaded", present, nil, StatusPass},
		{"invalid", present, &config.ValidationError{Errors: []string{"agent.name must not be empty"}}, StatusFail},
		{"unreadable", present, fmt.Errorf("parse config: bad yaml"), StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkConfigFile(tt.path, tt.err)(context.Background(), nil)
			assert.Equal(t, tt.want, result.Status, result.Message)
		})
	}
}

func TestChecksWithoutConfig(t *testing.T) {
	for _, fn := range []func(context.Context, *config.Config) CheckResult{
		checkLLMAPIKey, checkLLMConnectivity, checkToolServers, checkPeers, checkListen,
	} {
		assert.Equal(t, StatusFail, fn(context.Background(), nil).Status)
	}
}

func TestCheckLLMAPIKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLM.APIKey = ""
	assert.Equal(t, StatusFail, checkLLMAPIKey(context.Background(), cfg).Status)

	cfg.LLM.APIKey = "k"
	assert.Equal(t, StatusPass, checkLLMAPIKey(context.Background(), cfg).Status)
}

func TestCheckLLMConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.LLM.BaseURL = srv.URL
	assert.Equal(t, StatusPass, checkLLMConnectivity(context.Background(), cfg).Status)

	assert.Equal(t, "https://api.openai.com/v1/models", providerEndpoint(config.LLMConfig{Provider: "openai"}))
	assert.Equal(t, "", providerEndpoint(config.LLMConfig{Provider: "other"}))
}

func TestCheckToolServers(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, StatusPass, checkToolServers(context.Background(), cfg).Status)

	cfg.ToolServers = []config.ToolServerConfig{{Command: "definitely-not-an-installed-tool-server"}}
	result := checkToolServers(context.Background(), cfg)
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "definitely-not-an-installed-tool-server")
}

func TestCheckPeers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(a2a.AgentCard{Name: "Peer", URL: "http://peer", Skills: []a2a.AgentSkill{}})
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.Peers = []string{srv.URL}
	result := checkPeers(context.Background(), cfg)
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "Peer")

	cfg.Peers = append(cfg.Peers, fmt.Sprintf("http://127.0.0.1:%d", freePort(t)))
	assert.Equal(t, StatusWarn, checkPeers(context.Background(), cfg).Status)
}

func TestCheckListen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Defaults()
	cfg.Server.Listen = ln.Addr().String()
	assert.Equal(t, StatusFail, checkListen(context.Background(), cfg).Status)

	cfg.Server.Listen = "127.0.0.1:0"
	assert.Equal(t, StatusPass, checkListen(context.Background(), cfg).Status)
}

func TestRunDoctorReportsFailures(t *testing.T) {
	t.Setenv("A2A_LLM_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer llm.Close()
	t.Setenv("A2A_LLM_BASE_URL", llm.URL)

	var out bytes.Buffer
	err := runDoctor(context.Background(), []string{
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--listen", "127.0.0.1:0",
	}, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "[FAIL] LLM API key")
	assert.Contains(t, out.String(), "[WARN] Config file")
	assert.Contains(t, out.String(), "Results:")
}
