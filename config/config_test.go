package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.Size != 500 {
		t.Errorf("expected Chunking.Size=500, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap != 50 {
		t.Errorf("expected Chunking.Overlap=50, got %d", cfg.Chunking.Overlap)
	}
	if cfg.Embedding.BatchSize != 32 {
		t.Errorf("expected Embedding.BatchSize=32, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Index.Collection != "financial_documents" {
		t.Errorf("expected collection financial_documents, got %s", cfg.Index.Collection)
	}
	if len(cfg.Data.Tickers) != 10 {
		t.Errorf("expected 10 default tickers, got %d", len(cfg.Data.Tickers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "finrag.yaml")

	content := `
chunking:
  size: 200
  overlap: 20
retrieve:
  top_k: 10
index:
  backend: sqlite
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.Size != 200 || cfg.Chunking.Overlap != 20 {
		t.Errorf("expected chunking 200/20, got %d/%d", cfg.Chunking.Size, cfg.Chunking.Overlap)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Index.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Index.Backend)
	}
	// Unset fields keep their defaults.
	if cfg.Embedding.Provider != "local" {
		t.Errorf("expected default embedding provider, got %s", cfg.Embedding.Provider)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "finrag.toml")

	content := `
[llm]
provider = "ollama"
model = "llama3"
temperature = 0.2

[data]
tickers = ["AAPL", "NVDA"]
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %f", cfg.LLM.Temperature)
	}
	if len(cfg.Data.Tickers) != 2 || cfg.Data.Tickers[1] != "NVDA" {
		t.Errorf("unexpected tickers: %v", cfg.Data.Tickers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	cases := map[string]string{
		"overlap":  "chunking:\n  size: 50\n  overlap: 50\n",
		"backend":  "index:\n  backend: chroma\n",
		"provider": "embedding:\n  provider: word2vec\n",
		"batch":    "index:\n  batch_size: 0\n",
		"syntax":   "chunking: [",
	}
	for name, content := range cases {
		path := filepath.Join(tmpDir, name+".yaml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected defaults, got TopK=%d", cfg.Retrieve.TopK)
	}

	nested := filepath.Join(ConfigDir(tmpDir), "config.yaml")
	if err := os.MkdirAll(filepath.Dir(nested), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nested, []byte("retrieve:\n  top_k: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 7 {
		t.Errorf("expected TopK=7 from .finrag/config.yaml, got %d", cfg.Retrieve.TopK)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "finrag.yaml"), []byte("retrieve:\n  top_k: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected finrag.yaml to win, got TopK=%d", cfg.Retrieve.TopK)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.toml"} {
		cfg := DefaultConfig()
		cfg.Retrieve.MMREnabled = true
		cfg.Source.Kind = "live"

		path := filepath.Join(tmpDir, name)
		if err := cfg.Save(path); err != nil {
			t.Fatalf("%s: save failed: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load failed: %v", name, err)
		}
		if !loaded.Retrieve.MMREnabled || loaded.Source.Kind != "live" {
			t.Errorf("%s: round trip lost values: %+v", name, loaded.Retrieve)
		}
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ArtifactPath("/work"); got != filepath.Join("/work", "data", "processed", "all_chunks.json") {
		t.Errorf("unexpected artifact path %s", got)
	}
	if got := cfg.IndexDir("/work"); got != filepath.Join("/work", ".finrag") {
		t.Errorf("unexpected index dir %s", got)
	}
	cfg.Data.RawDir = "/abs/raw"
	if got := cfg.RawDir("/work"); got != "/abs/raw" {
		t.Errorf("absolute raw dir should be kept, got %s", got)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("USE_OLLAMA", "True")
	t.Setenv("OLLAMA_MODEL", "mistral")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "mistral" {
		t.Errorf("unexpected llm config after env: %+v", cfg.LLM)
	}
}
