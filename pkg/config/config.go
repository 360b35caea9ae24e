package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const DefaultFolder = "/my_documents"

type DropboxConfig struct {
	AccessToken    string   `yaml:"-"`
	Folder         string   `yaml:"folder"`
	RateLimit      float64  `yaml:"rate_limit"`
	TimeoutSecs    int      `yaml:"timeout_secs"` // 0 disables the timeout
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"-"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	MaxTokens      int    `yaml:"max_tokens"`
	BatchSize      int    `yaml:"batch_size"`
}

type IndexConfig struct {
	Backend      string `yaml:"backend"`
	NumDocuments int    `yaml:"num_documents"`
}

type LoaderConfig struct {
	ContinueOnError bool `yaml:"continue_on_error"`
	SampleSources   int  `yaml:"sample_sources"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Name      string `yaml:"name"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	Dropbox  DropboxConfig  `yaml:"dropbox"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Index    IndexConfig    `yaml:"index"`
	Loader   LoaderConfig   `yaml:"loader"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docbot/config.yaml"),
			"/etc/docbot/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Dropbox.Folder == "" {
		config.Dropbox.Folder = DefaultFolder
	}
	if config.Dropbox.RateLimit == 0 {
		config.Dropbox.RateLimit = 5
	}

	if config.OpenAI.Model == "" {
		config.OpenAI.Model = "gpt-4o-mini"
	}
	if config.OpenAI.EmbeddingModel == "" {
		config.OpenAI.EmbeddingModel = "text-embedding-ada-002"
	}
	if config.OpenAI.MaxTokens == 0 {
		config.OpenAI.MaxTokens = 256
	}
	if config.OpenAI.BatchSize == 0 {
		config.OpenAI.BatchSize = 512
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "memory"
	}
	if config.Index.NumDocuments == 0 {
		config.Index.NumDocuments = 4
	}

	if config.Loader.SampleSources == 0 {
		config.Loader.SampleSources = 5
	}

	if config.Database.Host == "" {
		config.Database.Host = "localhost"
	}
	if config.Database.Port == 0 {
		config.Database.Port = 5432
	}
	if config.Database.TableName == "" {
		config.Database.TableName = "documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if token := os.Getenv("DROPBOX_ACCESS_TOKEN"); token != "" {
		config.Dropbox.AccessToken = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.OpenAI.APIKey = key
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}
	if user := os.Getenv("DB_USERNAME"); user != "" {
		config.Database.Username = user
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		config.Database.Name = name
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}

// ConnString returns the pgvector connection string, composing one from the
// DB_USERNAME / DB_NAME settings when no URL is configured.
func (c *Config) ConnString() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.Username != "" {
		u.User = url.User(c.Database.Username)
	}
	return u.String()
}
