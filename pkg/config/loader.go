package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading and management
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	v := viper.New()

	// Set up environment variable handling
	v.SetEnvPrefix("MEDIASCRIBE")
	v.AutomaticEnv()

	// Set up configuration file search paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search in multiple locations
		home, _ := os.UserHomeDir()
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mediascribe")
		v.SetConfigName(".mediascribe")
		v.SetConfigType("yaml")
	}

	return &Loader{
		configPath: configPath,
		viper:      v,
	}
}

// Load reads and returns the configuration
func (l *Loader) Load() (*Config, error) {
	// Set defaults
	l.setDefaults()

	// Try to read config file
	if err := l.viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal configuration
	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := l.validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithOverrides loads configuration with command-line overrides
func (l *Loader) LoadWithOverrides(overrides map[string]interface{}) (*Config, error) {
	// Load base configuration
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	// Apply overrides
	for key, value := range overrides {
		l.viper.Set(key, value)
	}

	// Re-unmarshal with overrides
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config with overrides: %w", err)
	}

	return cfg, nil
}

// Save writes the current configuration to file
func (l *Loader) Save(cfg *Config) error {
	// Determine config file path
	configFile := l.configPath
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configFile = filepath.Join(home, ".mediascribe.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal configuration to viper
	l.viper.Set("queue", cfg.Queue)
	l.viper.Set("transcription", cfg.Transcription)
	l.viper.Set("download", cfg.Download)
	l.viper.Set("rate_limit", cfg.RateLimit)
	l.viper.Set("object_store", cfg.ObjectStore)
	l.viper.Set("http", cfg.HTTP)

	// Write to file
	if err := l.viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigFile returns the path to the config file being used
func (l *Loader) GetConfigFile() string {
	return l.viper.ConfigFileUsed()
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Queue defaults
	l.viper.SetDefault("queue.max_workers", 4)
	l.viper.SetDefault("queue.max_queue_size", 64)

	// Transcription defaults
	l.viper.SetDefault("transcription.model", "whisper-1")
	l.viper.SetDefault("transcription.api_timeout", "120s")
	l.viper.SetDefault("transcription.chunk_max_size_bytes", 25*1024*1024)
	l.viper.SetDefault("transcription.chunk_duration_sec", 300)
	l.viper.SetDefault("transcription.audio_format", "wav")
	l.viper.SetDefault("transcription.audio_settings.sample_rate", 16000)
	l.viper.SetDefault("transcription.audio_settings.channels", 1)
	l.viper.SetDefault("transcription.retry_delay", "5s")
	l.viper.SetDefault("transcription.wave_size", 5)

	// Download defaults
	l.viper.SetDefault("download.max_retries", 3)
	l.viper.SetDefault("download.retry_delay", "2s")
	l.viper.SetDefault("download.timeout", "300s")
	l.viper.SetDefault("download.verify_timeout", "10s")

	// Rate limiter defaults
	l.viper.SetDefault("rate_limit.window_seconds", 50)
	l.viper.SetDefault("rate_limit.max_requests", 60)

	// Object store defaults
	l.viper.SetDefault("object_store.endpoint", "localhost:9000")
	l.viper.SetDefault("object_store.bucket", "mediascribe")
	l.viper.SetDefault("object_store.secure", false)
	l.viper.SetDefault("object_store.region", "us-east-1")

	// HTTP defaults
	l.viper.SetDefault("http.listen_addr", ":8080")
}

// validateConfig validates the loaded configuration
func (l *Loader) validateConfig(cfg *Config) error {
	if cfg.Queue.MaxWorkers <= 0 {
		return fmt.Errorf("queue.max_workers must be positive")
	}

	if cfg.Queue.MaxQueueSize <= 0 {
		return fmt.Errorf("queue.max_queue_size must be positive")
	}

	if cfg.Transcription.APIKey == "" && os.Getenv("MEDIASCRIBE_TRANSCRIPTION_API_KEY") == "" {
		return fmt.Errorf("transcription API key is required (set in config file or MEDIASCRIBE_TRANSCRIPTION_API_KEY environment variable)")
	}

	if cfg.Transcription.ChunkDurationSec <= 0 {
		return fmt.Errorf("transcription.chunk_duration_sec must be positive")
	}

	sr := cfg.Transcription.AudioSettings.SampleRate
	if sr < 8000 || sr > 48000 {
		return fmt.Errorf("transcription.audio_settings.sample_rate must be between 8000 and 48000")
	}

	ch := cfg.Transcription.AudioSettings.Channels
	if ch < 1 || ch > 2 {
		return fmt.Errorf("transcription.audio_settings.channels must be 1 or 2")
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.window_seconds must be positive")
	}

	if cfg.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}

	if cfg.ObjectStore.Bucket == "" {
		return fmt.Errorf("object_store.bucket is required")
	}

	return nil
}

// CreateSampleConfig creates a sample configuration file
func CreateSampleConfig(path string) error {
	cfg := DefaultConfig()

	// Remove sensitive information for sample
	cfg.Transcription.APIKey = "your-api-key-here"
	cfg.ObjectStore.AccessKey = "your-access-key-here"
	cfg.ObjectStore.SecretKey = "your-secret-key-here"

	loader := NewLoader(path)
	return loader.Save(cfg)
}

// GetFromEnv gets configuration values from environment variables
func GetFromEnv() map[string]interface{} {
	overrides := make(map[string]interface{})

	if apiKey := os.Getenv("MEDIASCRIBE_TRANSCRIPTION_API_KEY"); apiKey != "" {
		overrides["transcription.api_key"] = apiKey
	}

	if bucket := os.Getenv("MEDIASCRIBE_OBJECT_STORE_BUCKET"); bucket != "" {
		overrides["object_store.bucket"] = bucket
	}

	if tempDir := os.Getenv("MEDIASCRIBE_TEMP_DIR"); tempDir != "" {
		overrides["temp_dir"] = tempDir
	}

	return overrides
}
