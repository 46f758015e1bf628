package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnv(t *testing.T) {
	ResetEnv()
	t.Setenv("AGENT_DATA_ROOT", "/srv/data")
	t.Setenv("AGENT_WORKERS", "8")
	t.Setenv("AIPROXY_TOKEN", "proxy-token")
	t.Setenv("AGENT_LLM_TIMEOUT", "5s")
	t.Setenv("AGENT_BROWSER_RENDER", "1")
	t.Setenv("AGENT_CONFIG", "")
	defer ResetEnv()

	env := Env()

	assert.Equal(t, "/srv/data", env.DataRoot)
	assert.Equal(t, 8, env.Workers)
	assert.Equal(t, "proxy-token", env.LLMToken)
	assert.Equal(t, 5*time.Second, env.LLMTimeout)
	assert.True(t, env.BrowserRender)
}

func TestEnvDefaults(t *testing.T) {
	ResetEnv()
	for _, k := range []string{"AGENT_DATA_ROOT", "AGENT_WORKERS", "AGENT_LLM_MODEL", "AGENT_CONFIG", "AGENT_LISTEN_ADDR"} {
		t.Setenv(k, "")
	}
	defer ResetEnv()

	env := Env()

	assert.Equal(t, "/data", env.DataRoot)
	assert.Equal(t, 4, env.Workers)
	assert.Equal(t, "gpt-4o-mini", env.Model)
	assert.Equal(t, ":8000", env.ListenAddr)
	assert.NoError(t, env.Validate())
}

func TestTokenPrecedence(t *testing.T) {
	t.Setenv("AIPROXY_TOKEN", "proxy")
	t.Setenv("AGENT_LLM_TOKEN", "direct")
	assert.Equal(t, "direct", FromEnviron().LLMToken)
}

func TestEnvSingleton(t *testing.T) {
	ResetEnv()
	defer ResetEnv()

	assert.Same(t, Env(), Env())
}

func TestMergeFile(t *testing.T) {
	t.Setenv("AGENT_DATA_ROOT", "/from/env")
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_root: /from/file
workers: 2
llm_timeout: 90s
browser_render: true
`), 0644))

	e := FromEnviron()
	require.NoError(t, e.MergeFile(path))

	assert.Equal(t, "/from/file", e.DataRoot)
	assert.Equal(t, 2, e.Workers)
	assert.Equal(t, 90*time.Second, e.LLMTimeout)
	assert.True(t, e.BrowserRender)
}

func TestLoadBadFile(t *testing.T) {
	ResetEnv()
	defer ResetEnv()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [oops"), 0644))
	t.Setenv("AGENT_CONFIG", path)

	env, err := Load()
	assert.Error(t, err)
	require.NotNil(t, env)
	assert.NotEmpty(t, env.DataRoot)
}

func TestValidate(t *testing.T) {
	e := &AgentEnv{DataRoot: "/data", Workers: 0}
	assert.Error(t, e.Validate())
	e.Workers = 1
	assert.NoError(t, e.Validate())
	e.DataRoot = ""
	assert.Error(t, e.Validate())
}
