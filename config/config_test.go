package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envEnvFile, envHTTPAddr, envAnthropicAPIKey, envOpenAIAPIKey,
		envRetrieverTopK, envUseRerank, envMaxRestarts,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRejectsMissingLLMCredentials(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaultsWithAnthropicKeyOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAnthropicAPIKey, "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, defaultHTTPAddr, cfg.HTTPAddr)
	require.Equal(t, defaultAnthropicModel, cfg.LLM.AnthropicModel)
	require.Equal(t, defaultRetrieverTopK, cfg.Retriever.TopK)
	require.True(t, cfg.Retriever.UseRerank)
	require.Equal(t, defaultMaxRestarts, cfg.Execution.MaxRestarts)
}

func TestLoadHonorsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envOpenAIAPIKey, "sk-test")
	t.Setenv(envHTTPAddr, ":9999")
	t.Setenv(envRetrieverTopK, "12")
	t.Setenv(envUseRerank, "false")
	t.Setenv(envMaxRestarts, "5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddr)
	require.Equal(t, 12, cfg.Retriever.TopK)
	require.False(t, cfg.Retriever.UseRerank)
	require.Equal(t, 5, cfg.Execution.MaxRestarts)
}
