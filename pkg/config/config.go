package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	LLM       LLMConfig
	Corpus    CorpusConfig
	Retrieval RetrievalConfig
	Search    SearchConfig
	Memory    MemoryConfig
	Tickets   TicketsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Enabled        bool
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type LLMConfig struct {
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
	EmbeddingDim   int
}

type CorpusConfig struct {
	FAQPath           string
	FAQEmbeddingsPath string
	KBPath            string
	KBEmbeddingsPath  string
}

type RetrievalConfig struct {
	FAQThreshold float64
	KBThreshold  float64
}

type SearchConfig struct {
	Enabled     bool
	SerpAPIKey  string
	MaxResults  int
	TimeoutSec  int
	PageCharCap int
}

type MemoryConfig struct {
	SummaryInterval int
	RecentLimit     int
}

type TicketsConfig struct {
	DueHours int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/support-agent")

	viper.SetEnvPrefix("SUPPORT_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/support.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.enabled", false)
	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "kb_records")
	viper.SetDefault("milvus.vectorDim", 3072)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 30)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-large")
	viper.SetDefault("llm.embeddingDim", 3072)

	viper.SetDefault("corpus.faqPath", "./data/faq.json")
	viper.SetDefault("corpus.faqEmbeddingsPath", "./data/faq_embeddings.json")
	viper.SetDefault("corpus.kbPath", "./data/knowledgeBase.json")
	viper.SetDefault("corpus.kbEmbeddingsPath", "./data/kb_embeddings.json")

	viper.SetDefault("retrieval.faqThreshold", 0.55)
	viper.SetDefault("retrieval.kbThreshold", 0.40)

	viper.SetDefault("search.enabled", true)
	viper.SetDefault("search.maxResults", 5)
	viper.SetDefault("search.timeoutSec", 10)
	viper.SetDefault("search.pageCharCap", 2000)

	viper.SetDefault("memory.summaryInterval", 10)
	viper.SetDefault("memory.recentLimit", 3)

	viper.SetDefault("tickets.dueHours", 48)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
