// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GeminiAPIKey, "  AIza-abc123  \n")
				writeFile(t, dir, TavilyAPIKey, "tvly-xyz789")
				writeFile(t, dir, AnthropicAPIKey, "sk-ant-1\n")
				return dir
			},
			want: map[string]string{
				GeminiAPIKey:    "AIza-abc123",
				TavilyAPIKey:    "tvly-xyz789",
				AnthropicAPIKey: "sk-ant-1",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, OpenAIAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				OpenAIAPIKey: "valid-key",
			},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, GeminiAPIKey, "g-real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				GeminiAPIKey: "g-real",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFileLogsWarning(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	core, logs := observer.New(zap.WarnLevel)
	got, err := Load(dir, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
	assert.Equal(t, 1, logs.FilterMessage("could not read secret").Len())
}

func TestLookup(t *testing.T) {
	loaded := map[string]string{GeminiAPIKey: "from-file", TavilyAPIKey: "tv-file"}

	tests := []struct {
		name string
		env  map[string]string
		key  string
		want string
	}{
		{"file when env unset", nil, GeminiAPIKey, "from-file"},
		{"env wins over file", map[string]string{"GEMINI_API_KEY": "from-env"}, GeminiAPIKey, "from-env"},
		{"secondary env var", map[string]string{"DASHSCOPE_API_KEY": "ds"}, OpenAIAPIKey, "ds"},
		{"first env var wins", map[string]string{"OPENAI_API_KEY": "oa", "DASHSCOPE_API_KEY": "ds"}, OpenAIAPIKey, "oa"},
		{"missing everywhere", nil, AnthropicAPIKey, ""},
		{"unknown key reads file only", nil, "custom-key", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, vars := range envVars {
				for _, v := range vars {
					t.Setenv(v, "")
				}
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, Lookup(loaded, tt.key))
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{AnthropicAPIKey, GeminiAPIKey}, Names(map[string]string{GeminiAPIKey: "x", AnthropicAPIKey: "y"}))
	assert.Empty(t, Names(nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
