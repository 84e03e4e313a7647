package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Processor ProcessorConfig `yaml:"processor"`
	RAG       RAGConfig       `yaml:"rag"`
	OCR       OCRConfig       `yaml:"ocr"`
	Speech    SpeechConfig    `yaml:"speech"`
	Translate TranslateConfig `yaml:"translate"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Server    ServerConfig    `yaml:"server"`
	UI        UIConfig        `yaml:"ui"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
	Concurrency int     `yaml:"concurrency"`
}

type EmbedderConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	BatchSize int    `yaml:"batch_size"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ProcessorConfig struct {
	Strategy        string `yaml:"strategy"`
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	RemoveStopwords bool   `yaml:"remove_stopwords"`
}

type RAGConfig struct {
	CorpusDir string `yaml:"corpus_dir"`
	TopK      int    `yaml:"top_k"`
	Mode      string `yaml:"mode"`
}

type OCRConfig struct {
	Binary  string        `yaml:"binary"`
	Lang    string        `yaml:"lang"`
	Timeout time.Duration `yaml:"timeout"`
}

type SpeechConfig struct {
	WhisperBinary string        `yaml:"whisper_binary"`
	WhisperModel  string        `yaml:"whisper_model"`
	TTSBinary     string        `yaml:"tts_binary"`
	Voice         string        `yaml:"voice"`
	OutputDir     string        `yaml:"output_dir"`
	Timeout       time.Duration `yaml:"timeout"`
}

type TranslateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	RequestsPerMin int    `yaml:"requests_per_min"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
}

type UIConfig struct {
	Streaming bool `yaml:"streaming"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/medilex/config.yaml"),
			"/etc/medilex/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Config{
		History: HistoryConfig{Enabled: true},
		UI:      UIConfig{Streaming: true},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Environment wins over the file
	mergeWithEnv(&config)

	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{
		History: HistoryConfig{Enabled: true},
		UI:      UIConfig{Streaming: true},
	}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "anthropic" {
			config.LLM.Model = "claude-3-5-haiku-20241022"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxRetries == 0 {
		config.LLM.MaxRetries = 3
	}
	if config.LLM.Concurrency == 0 {
		config.LLM.Concurrency = 3
	}

	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = config.LLM.BaseURL
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 16
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "medical_documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Store.Backend == "" {
		if config.Database.URL != "" {
			config.Store.Backend = "postgres"
		} else {
			config.Store.Backend = "memory"
		}
	}
	if config.Store.Path == "" {
		config.Store.Path = "medilex_index.json"
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 2
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Processor.Strategy == "" {
		config.Processor.Strategy = "recursive"
	}
	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 50
	}

	if config.RAG.CorpusDir == "" {
		config.RAG.CorpusDir = "corpus"
	}
	if config.RAG.TopK == 0 {
		config.RAG.TopK = 3
	}
	if config.RAG.Mode == "" {
		config.RAG.Mode = "extractive"
	}

	if config.OCR.Binary == "" {
		config.OCR.Binary = "tesseract"
	}
	if config.OCR.Lang == "" {
		config.OCR.Lang = "eng"
	}
	if config.OCR.Timeout == 0 {
		config.OCR.Timeout = 60 * time.Second
	}

	if config.Speech.WhisperBinary == "" {
		config.Speech.WhisperBinary = "whisper"
	}
	if config.Speech.WhisperModel == "" {
		config.Speech.WhisperModel = "base"
	}
	if config.Speech.TTSBinary == "" {
		config.Speech.TTSBinary = "espeak-ng"
	}
	if config.Speech.Voice == "" {
		config.Speech.Voice = "en"
	}
	if config.Speech.OutputDir == "" {
		config.Speech.OutputDir = "output"
	}
	if config.Speech.Timeout == 0 {
		config.Speech.Timeout = 5 * time.Minute
	}

	if config.Translate.Source == "" {
		config.Translate.Source = "en"
	}
	if config.Translate.Target == "" {
		config.Translate.Target = "hi"
	}

	if config.Cache.Backend == "" {
		config.Cache.Backend = "memory"
	}
	if config.Cache.TTL == 0 {
		config.Cache.TTL = 24 * time.Hour
	}

	if config.History.Path == "" {
		config.History.Path = "medilex.db"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.RequestsPerMin == 0 {
		config.Server.RequestsPerMin = 30
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 10
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.RedisAddr = addr
	}
	if level := os.Getenv("MEDILEX_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
