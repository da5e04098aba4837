package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	LLMBatchSize      int `yaml:"llm_batch_size"`
	LLMMaxRetries     int `yaml:"llm_max_retries"`
	BatchDelaySeconds int `yaml:"batch_delay_seconds"`

	Country            string `yaml:"country"`
	TopAppsCount       int    `yaml:"top_apps_count"`
	ReviewsPerApp      int    `yaml:"reviews_per_app"`
	MaxComplaintRating int    `yaml:"max_complaint_rating"`
	ScrapeConcurrency  int    `yaml:"scrape_concurrency"`

	MuseMaxPages int `yaml:"muse_max_pages"`

	DBPath string `yaml:"db_path"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	AgentSchedule string `yaml:"agent_schedule"`
	Timezone      string `yaml:"timezone"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideInt(&cfg.LLMBatchSize, "LLM_BATCH_SIZE")
	envOverrideInt(&cfg.LLMMaxRetries, "LLM_MAX_RETRIES")
	envOverrideInt(&cfg.BatchDelaySeconds, "BATCH_DELAY_SECONDS")
	envOverride(&cfg.Country, "COUNTRY")
	envOverrideInt(&cfg.TopAppsCount, "TOP_APPS_COUNT")
	envOverrideInt(&cfg.ReviewsPerApp, "REVIEWS_PER_APP")
	envOverrideInt(&cfg.MaxComplaintRating, "MAX_COMPLAINT_RATING")
	envOverrideInt(&cfg.ScrapeConcurrency, "SCRAPE_CONCURRENCY")
	envOverrideInt(&cfg.MuseMaxPages, "MUSE_MAX_PAGES")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.AgentSchedule, "AGENT_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")

	// Defaults
	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultAnthropicModel
	}
	if cfg.LLMBatchSize == 0 {
		cfg.LLMBatchSize = 20
	}
	if cfg.LLMMaxRetries == 0 {
		cfg.LLMMaxRetries = 5
	}
	if cfg.BatchDelaySeconds == 0 {
		cfg.BatchDelaySeconds = 6
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.TopAppsCount == 0 {
		cfg.TopAppsCount = 100
	}
	if cfg.ReviewsPerApp == 0 {
		cfg.ReviewsPerApp = 50
	}
	if cfg.MaxComplaintRating == 0 {
		cfg.MaxComplaintRating = 3
	}
	if cfg.ScrapeConcurrency == 0 {
		cfg.ScrapeConcurrency = 10
	}
	if cfg.MuseMaxPages == 0 {
		cfg.MuseMaxPages = 8
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./appintel.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate required fields
	if cfg.AnthropicAPIKey == "" {
		log.Fatalf("Required config 'anthropic_api_key' is not set (via config.yaml or env var)")
	}
	if cfg.LLMBatchSize < 1 {
		log.Fatalf("invalid llm_batch_size '%d': must be >= 1", cfg.LLMBatchSize)
	}
	if cfg.LLMMaxRetries < 0 {
		log.Fatalf("invalid llm_max_retries '%d': must be >= 0", cfg.LLMMaxRetries)
	}
	if cfg.MaxComplaintRating < 1 || cfg.MaxComplaintRating > 5 {
		log.Fatalf("invalid max_complaint_rating '%d': must be between 1 and 5", cfg.MaxComplaintRating)
	}
	if cfg.ScrapeConcurrency < 1 {
		log.Fatalf("invalid scrape_concurrency '%d': must be >= 1", cfg.ScrapeConcurrency)
	}
	if cfg.SlackChannelID != "" && cfg.SlackBotToken == "" {
		log.Fatalf("slack_bot_token is required when slack_channel_id is set")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
		cfg.Timezone = time.Local.String()
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// BatchDelay is the pause inserted between extraction batches to stay
// under the provider's token-per-minute ceiling.
func (c Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySeconds) * time.Second
}
