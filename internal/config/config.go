package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	OpenAI struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"openai"`

	Translate struct {
		ChunkSize   int `mapstructure:"chunk_size"`
		Concurrency int `mapstructure:"concurrency"`
	} `mapstructure:"translate"`

	Intake struct {
		MaxFileSizeMB     int      `mapstructure:"max_file_size_mb"`
		AllowedExtensions []string `mapstructure:"allowed_extensions"`
	} `mapstructure:"intake"`

	Billing struct {
		StarsPer50Pages int64 `mapstructure:"stars_per_50_pages"`
	} `mapstructure:"billing"`

	Storage struct {
		DataDir string `mapstructure:"data_dir"`
		DBPath  string `mapstructure:"db_path"`
	} `mapstructure:"storage"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".") // Look for config.yaml in the current directory

	// Allow Viper to read environment variables. TRANSBOOKS_SERVER_PORT etc.
	viper.SetEnvPrefix("TRANSBOOKS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The OpenAI key is conventionally set via the unprefixed env var, so bind
	// it explicitly in addition to the prefixed form.
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, Viper might rely solely on env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults mirrors the behavior of the service before it was configurable:
// 8000-char chunks, 10 parallel calls, 20 stars per 50 pages, 50 MB cap.
func setDefaults() {
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("translate.chunk_size", 8000)
	viper.SetDefault("translate.concurrency", 10)
	viper.SetDefault("intake.max_file_size_mb", 50)
	viper.SetDefault("intake.allowed_extensions", []string{".md", ".markdown", ".txt", ".html", ".htm"})
	viper.SetDefault("billing.stars_per_50_pages", 20)
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("storage.db_path", "data/transbooks.db")
	viper.SetDefault("server.addr", "localhost")
	viper.SetDefault("server.port", "8080")
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Translate.ChunkSize <= 0 {
		return fmt.Errorf("translate.chunk_size must be positive, got %d", c.Translate.ChunkSize)
	}
	if c.Translate.Concurrency < 1 {
		return fmt.Errorf("translate.concurrency must be at least 1, got %d", c.Translate.Concurrency)
	}
	if c.Billing.StarsPer50Pages < 1 {
		return fmt.Errorf("billing.stars_per_50_pages must be at least 1, got %d", c.Billing.StarsPer50Pages)
	}
	if c.Intake.MaxFileSizeMB < 1 {
		return fmt.Errorf("intake.max_file_size_mb must be at least 1, got %d", c.Intake.MaxFileSizeMB)
	}
	return nil
}
