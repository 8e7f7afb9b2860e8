package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points the home directory at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "BRANCHMIND_EMBEDDER"} {
		t.Setenv(k, "")
	}
	return home
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultEmbedder != "local" {
		t.Errorf("default embedder: got %q, want %q", cfg.DefaultEmbedder, "local")
	}
	if cfg.Engine.DirectThreshold != 0.70 || cfg.Engine.VerySimilarThreshold != 0.85 || cfg.Engine.MultiHopThreshold != 0.50 {
		t.Errorf("engine thresholds: got %+v", cfg.Engine)
	}
	if cfg.Engine.MaxDirect != 3 || cfg.Engine.MaxCrossRefs != 6 {
		t.Errorf("engine caps: got %+v", cfg.Engine)
	}
	if cfg.Cache.SummaryTTL() != 10*time.Minute {
		t.Errorf("summary ttl: got %v", cfg.Cache.SummaryTTL())
	}
	if cfg.Cache.EmbeddingLRUSize != 1000 || cfg.Cache.MaxEmbedTokens != 512 || cfg.Cache.EmbedBatchSize != 4 {
		t.Errorf("cache: got %+v", cfg.Cache)
	}
	if cfg.Summary.MinLength != 30 || cfg.Summary.MaxLength != 150 {
		t.Errorf("summary: got %+v", cfg.Summary)
	}
	if cfg.Gateway.BreakerTimeout() != 30*time.Second {
		t.Errorf("breaker timeout: got %v", cfg.Gateway.BreakerTimeout())
	}
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("ollama host: got %q", cfg.Ollama.Host)
	}
}

func TestPaths(t *testing.T) {
	root := "/home/user/notes"
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"db", ProjectDBPath(root), filepath.Join(root, ".branchmind", "branchmind.db")},
		{"embeddings", ProjectEmbeddingsPath(root), filepath.Join(root, ".branchmind", "embeddings")},
		{"dir", ProjectConfigDirPath(root), filepath.Join(root, ".branchmind")},
		{"config", ProjectConfigPath(root), filepath.Join(root, ".branchmind", "config.toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != Default().Engine {
		t.Errorf("expected default engine config, got %+v", cfg.Engine)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	isolate(t)

	global := Default()
	global.DefaultEmbedder = "ollama"
	global.Engine.DirectThreshold = 0.6
	global.Keys.OpenAI = "global-key"
	if err := SaveGlobal(global); err != nil {
		t.Fatalf("SaveGlobal: %v", err)
	}

	root := t.TempDir()
	os.MkdirAll(ProjectConfigDirPath(root), 0o755)
	project := "[engine]\ndirect_threshold = 0.75\n\n[project]\nname = \"research\"\n"
	if err := os.WriteFile(ProjectConfigPath(root), []byte(project), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.DirectThreshold != 0.75 {
		t.Errorf("direct threshold: got %v, want 0.75", cfg.Engine.DirectThreshold)
	}
	if cfg.Engine.MaxDirect != 3 {
		t.Errorf("unset project key should keep global value, got %d", cfg.Engine.MaxDirect)
	}
	if cfg.DefaultEmbedder != "ollama" {
		t.Errorf("embedder: got %q, want ollama", cfg.DefaultEmbedder)
	}
	if cfg.APIKey("openai") != "global-key" {
		t.Errorf("openai key: got %q", cfg.APIKey("openai"))
	}
	if cfg.Project.Name != "research" {
		t.Errorf("project name: got %q", cfg.Project.Name)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("BRANCHMIND_EMBEDDER", "gemini")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey("claude") != "env-key" {
		t.Errorf("anthropic key: got %q", cfg.APIKey("claude"))
	}
	if cfg.DefaultEmbedder != "gemini" {
		t.Errorf("embedder: got %q", cfg.DefaultEmbedder)
	}
	if cfg.APIKey("ollama") != "" {
		t.Error("ollama has no key")
	}
}

func TestLoad_InvalidProjectFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	os.MkdirAll(ProjectConfigDirPath(root), 0o755)
	os.WriteFile(ProjectConfigPath(root), []byte("not = [valid"), 0o644)

	if _, err := Load(root); err == nil {
		t.Error("expected error for malformed project config")
	}
}

func TestSaveProject_RoundTrip(t *testing.T) {
	isolate(t)
	root := t.TempDir()

	cfg := Default()
	cfg.Cache.SummaryTTLSeconds = 60
	if err := SaveProject(root, cfg); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	got, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Cache.SummaryTTL() != time.Minute {
		t.Errorf("summary ttl: got %v", got.Cache.SummaryTTL())
	}
}
