package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Vector    VectorConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Knowledge KnowledgeConfig
	Chat      ChatConfig
	Recommend RecommendConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

// VectorConfig selects where the chunk index lives. Backend is "jsonl" for a
// local file or "milvus" for a Milvus/Zilliz collection.
type VectorConfig struct {
	Backend        string
	Path           string
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
}

type KnowledgeConfig struct {
	SourceDir        string
	ChunkSize        int
	ChunkOverlap     int
	PageMarkerPrefix string
	K                int
	FetchK           int
	Lambda           float64
}

type ChatConfig struct {
	WindowSize      int
	HistoryLimit    int
	MaxQuestionSize int
}

type RecommendConfig struct {
	Language       string
	FuzzyThreshold float64
}

type CatalogConfig struct {
	MediaDir  string
	URLPrefix string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/morph-tutor")

	return load(v)
}

// LoadFile reads an explicit config file instead of searching the default paths.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("MORPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Knowledge.PageMarkerPrefix == "" {
		config.Knowledge.PageMarkerPrefix = DefaultPageMarkerPrefix(config.Recommend.Language)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("knowledge.chunkSize must be greater than zero")
	}
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("knowledge.chunkOverlap must be in [0, chunkSize)")
	}
	if c.Knowledge.K <= 0 || c.Knowledge.FetchK < c.Knowledge.K {
		return fmt.Errorf("knowledge.fetchK must be at least knowledge.k (k=%d, fetchK=%d)", c.Knowledge.K, c.Knowledge.FetchK)
	}
	switch c.Vector.Backend {
	case "jsonl", "milvus":
	default:
		return fmt.Errorf("unsupported vector backend %q", c.Vector.Backend)
	}
	switch c.Recommend.Language {
	case "en", "id":
	default:
		return fmt.Errorf("unsupported recommend language %q", c.Recommend.Language)
	}
	return nil
}

// DefaultPageMarkerPrefix is the heading that starts a page inside a knowledge
// file written in language.
func DefaultPageMarkerPrefix(language string) string {
	if strings.EqualFold(language, "id") {
		return "## halaman"
	}
	return "## page"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/morph.db")

	v.SetDefault("vector.backend", "jsonl")
	v.SetDefault("vector.path", "./data/vectordb/index.jsonl")
	v.SetDefault("vector.endpoint", "localhost:19530")
	v.SetDefault("vector.collectionName", "morph_lessons")
	v.SetDefault("vector.vectorDim", 768)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlHours", 24)

	v.SetDefault("llm.baseURL", "http://localhost:11434/v1")
	v.SetDefault("llm.model", "gemma3:4b")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.maxTokens", 1024)
	v.SetDefault("llm.timeoutSec", 120)
	v.SetDefault("llm.embeddingModel", "nomic-embed-text:latest")

	v.SetDefault("knowledge.sourceDir", "./data/knowledge")
	v.SetDefault("knowledge.chunkSize", 1000)
	v.SetDefault("knowledge.chunkOverlap", 200)
	// no default: the marker follows recommend.language unless set
	_ = v.BindEnv("knowledge.pageMarkerPrefix")
	v.SetDefault("knowledge.k", 6)
	v.SetDefault("knowledge.fetchK", 12)
	v.SetDefault("knowledge.lambda", 0.5)

	v.SetDefault("chat.windowSize", 10)
	v.SetDefault("chat.historyLimit", 20)
	v.SetDefault("chat.maxQuestionSize", 4000)

	v.SetDefault("recommend.language", "en")
	v.SetDefault("recommend.fuzzyThreshold", 0.75)

	v.SetDefault("catalog.mediaDir", "./media/lessons")
	v.SetDefault("catalog.urlPrefix", "/media/lessons")

	v.SetDefault("ratelimit.requestsPerMinute", 30)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
