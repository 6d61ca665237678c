package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultLogLevel      = "info"
	defaultPromptLogFile = "logs/prompts.log"

	defaultServerAddr   = ":5000"
	defaultUploadDir    = "uploads"
	defaultMaxUploadMB  = 50
	defaultDBDriver     = "sqlite"
	defaultDBPath       = "data/vectorstore/chunks.db"
	defaultCollection   = "rag_documents"
	defaultEmbedder     = "ollama"
	defaultEmbedURL     = "http://localhost:11434"
	defaultEmbedModel   = "nomic-embed-text"
	defaultEmbedTimeout = 30 * time.Second
	defaultHashDims     = 256

	defaultChunkSize           = 1500
	defaultChunkOverlap        = 300
	defaultSearchK             = 10
	defaultPreviewChars        = 200
	defaultMaxContextChars     = 2000
	defaultHistoryWindow       = 10
	defaultHistoryDisplayLimit = 50
	defaultLanguage            = "Vietnamese"

	defaultLocalEndpoint     = "http://localhost:1234/v1/chat/completions"
	defaultLocalModel        = "local-model"
	defaultLocalTimeout      = 30 * time.Second
	defaultProbeTimeout      = 5 * time.Second
	defaultTemperature       = 0.7
	defaultMaxTokens         = 1000
	defaultGeminiModel       = "gemini-1.5-flash"
	defaultGeminiTimeout     = 60 * time.Second
	defaultGeminiMaxTokens   = 2048
	defaultGeminiTemperature = 0.7
)

var defaultExtensions = []string{"txt", "pdf", "docx", "md", "xlsx", "pptx"}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	LocalLLM  LocalLLMConfig  `yaml:"local_llm"`
	Gemini    GeminiConfig    `yaml:"gemini"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	PromptFile string `yaml:"prompt_file"`
}

type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	UploadDir         string   `yaml:"upload_dir"`
	MaxUploadMB       int64    `yaml:"max_upload_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DatabaseConfig selects where chunk rows are persisted.
// Driver is "sqlite" (Path) or "postgres" (DSN).
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Debug      bool   `yaml:"debug"`
}

// EmbeddingConfig selects the embedding service.
// Provider is "ollama", "openai" (any OpenAI-compatible server) or "hash".
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	Dimensions int           `yaml:"dimensions"`
}

type RAGConfig struct {
	ChunkSize           int      `yaml:"chunk_size"`
	ChunkOverlap        int      `yaml:"chunk_overlap"`
	SearchK             int      `yaml:"search_k"`
	MustCheckKeywords   []string `yaml:"must_check_keywords"`
	PreviewChars        int      `yaml:"preview_chars"`
	MaxContextChars     int      `yaml:"max_context_chars"`
	HistoryWindow       int      `yaml:"history_window"`
	HistoryDisplayLimit int      `yaml:"history_display_limit"`
	Language            string   `yaml:"language"`
}

type LocalLLMConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
}

type GeminiConfig struct {
	APIKey       string        `yaml:"api_key"`
	DefaultModel string        `yaml:"default_model"`
	Models       []string      `yaml:"models"`
	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	Temperature  float32       `yaml:"temperature"`
	MaxTokens    int32         `yaml:"max_tokens"`
}

// newConfig seeds the fields whose zero value is a valid setting,
// so an explicit 0 in the file survives applyDefaults
func newConfig() *Config {
	return &Config{RAG: RAGConfig{ChunkOverlap: defaultChunkOverlap}}
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the yaml file at path, applies defaults and environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := newConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.PromptFile == "" {
		c.Log.PromptFile = defaultPromptLogFile
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = defaultUploadDir
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if len(c.Server.AllowedExtensions) == 0 {
		c.Server.AllowedExtensions = append([]string(nil), defaultExtensions...)
	}

	if c.Database.Driver == "" {
		c.Database.Driver = defaultDBDriver
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDBPath
	}
	if c.Database.Collection == "" {
		c.Database.Collection = defaultCollection
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = defaultEmbedder
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = defaultEmbedURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbedModel
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = defaultEmbedTimeout
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = defaultHashDims
	}

	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap < 0 {
		c.RAG.ChunkOverlap = 0
	}
	if c.RAG.SearchK <= 0 {
		c.RAG.SearchK = defaultSearchK
	}
	if c.RAG.PreviewChars <= 0 {
		c.RAG.PreviewChars = defaultPreviewChars
	}
	if c.RAG.MaxContextChars <= 0 {
		c.RAG.MaxContextChars = defaultMaxContextChars
	}
	if c.RAG.HistoryWindow <= 0 {
		c.RAG.HistoryWindow = defaultHistoryWindow
	}
	if c.RAG.HistoryDisplayLimit <= 0 {
		c.RAG.HistoryDisplayLimit = defaultHistoryDisplayLimit
	}
	if c.RAG.Language == "" {
		c.RAG.Language = defaultLanguage
	}

	if c.LocalLLM.Endpoint == "" {
		c.LocalLLM.Endpoint = defaultLocalEndpoint
	}
	if c.LocalLLM.Model == "" {
		c.LocalLLM.Model = defaultLocalModel
	}
	if c.LocalLLM.Timeout <= 0 {
		c.LocalLLM.Timeout = defaultLocalTimeout
	}
	if c.LocalLLM.ProbeTimeout <= 0 {
		c.LocalLLM.ProbeTimeout = defaultProbeTimeout
	}
	if c.LocalLLM.Temperature == 0 {
		c.LocalLLM.Temperature = defaultTemperature
	}
	if c.LocalLLM.MaxTokens <= 0 {
		c.LocalLLM.MaxTokens = defaultMaxTokens
	}

	if c.Gemini.DefaultModel == "" {
		c.Gemini.DefaultModel = defaultGeminiModel
	}
	if c.Gemini.Timeout <= 0 {
		c.Gemini.Timeout = defaultGeminiTimeout
	}
	if c.Gemini.ProbeTimeout <= 0 {
		c.Gemini.ProbeTimeout = defaultProbeTimeout
	}
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = defaultGeminiTemperature
	}
	if c.Gemini.MaxTokens <= 0 {
		c.Gemini.MaxTokens = defaultGeminiMaxTokens
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("LOCAL_LLM_ENDPOINT"); v != "" {
		c.LocalLLM.Endpoint = v
	}
	if v := os.Getenv("LOCAL_LLM_MODEL"); v != "" {
		c.LocalLLM.Model = v
	}
	if v := os.Getenv("RAG_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("RAG_EMBEDDING_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("RAG_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
}

// Validate rejects settings no component can work with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Embedding.Provider {
	case "ollama", "openai", "hash":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

// ExtensionAllowed reports whether a file extension (with or without the dot) may be ingested
func (c *Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range c.Server.AllowedExtensions {
		if strings.ToLower(strings.TrimPrefix(allowed, ".")) == ext {
			return true
		}
	}
	return false
}
