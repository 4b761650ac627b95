package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/eternnoir/mediascribe/pkg/logger"
)

// Config represents the full application configuration surface named in
// the configuration surface: queue sizing, transcription API settings,
// download retry policy, rate limiting, and object store credentials.
type Config struct {
	Queue         QueueConfig       `yaml:"queue" mapstructure:"queue"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Download      DownloadConfig    `yaml:"download" mapstructure:"download"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	ObjectStore   ObjectStoreConfig `yaml:"object_store" mapstructure:"object_store"`
	HTTP          HTTPConfig        `yaml:"http" mapstructure:"http"`
	Logging       logger.Config     `yaml:"logging" mapstructure:"logging"`
}

// QueueConfig bounds the pipeline worker pool.
type QueueConfig struct {
	MaxWorkers   int `yaml:"max_workers" mapstructure:"max_workers"`
	MaxQueueSize int `yaml:"max_queue_size" mapstructure:"max_queue_size"`
}

// AudioSettings bounds the sample rate and channel count used when cutting
// and extracting chunks.
type AudioSettings struct {
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int `yaml:"channels" mapstructure:"channels"`
}

// TranscriptionConfig configures the remote transcription endpoint and the
// Splitter's chunking policy.
type TranscriptionConfig struct {
	APIURL            string        `yaml:"api_url" mapstructure:"api_url"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	Model             string        `yaml:"model" mapstructure:"model"`
	Language          string        `yaml:"language" mapstructure:"language"`
	APITimeout        time.Duration `yaml:"api_timeout" mapstructure:"api_timeout"`
	ChunkMaxSizeBytes int64         `yaml:"chunk_max_size_bytes" mapstructure:"chunk_max_size_bytes"`
	ChunkDurationSec  int           `yaml:"chunk_duration_sec" mapstructure:"chunk_duration_sec"`
	AudioFormat       string        `yaml:"audio_format" mapstructure:"audio_format"`
	AudioSettings     AudioSettings `yaml:"audio_settings" mapstructure:"audio_settings"`
	RetryDelay        time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	WaveSize          int           `yaml:"wave_size" mapstructure:"wave_size"`
}

// DownloadConfig configures the Downloader's retry policy.
type DownloadConfig struct {
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" mapstructure:"verify_timeout"`
}

// RateLimitConfig configures the sliding-window transcription rate limiter.
type RateLimitConfig struct {
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds"`
	MaxRequests   int `yaml:"max_requests" mapstructure:"max_requests"`
}

// ObjectStoreConfig configures the S3-compatible object store gateway.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Secure    bool   `yaml:"secure" mapstructure:"secure"`
	Region    string `yaml:"region" mapstructure:"region"`
}

// HTTPConfig configures the external HTTP façade (out of core scope, but
// still needs a listen address to be wired up from cmd/mediascribe).
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			MaxWorkers:   4,
			MaxQueueSize: 64,
		},
		Transcription: TranscriptionConfig{
			APIURL:            "http://localhost:9000/v1/transcriptions",
			Model:             "whisper-1",
			APITimeout:        120 * time.Second,
			ChunkMaxSizeBytes: 25 * 1024 * 1024,
			ChunkDurationSec:  300,
			AudioFormat:       "wav",
			AudioSettings: AudioSettings{
				SampleRate: 16000,
				Channels:   1,
			},
			RetryDelay: 5 * time.Second,
			WaveSize:   5,
		},
		Download: DownloadConfig{
			MaxRetries:    3,
			RetryDelay:    2 * time.Second,
			Timeout:       300 * time.Second,
			VerifyTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 50,
			MaxRequests:   60,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "localhost:9000",
			Bucket:   "mediascribe",
			Secure:   false,
			Region:   "us-east-1",
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		Logging: *logger.DefaultConfig(),
	}
}

// TempDir returns the process-wide scratch directory for the Downloader
// and Splitter's local staging files.
func TempDir() string {
	return filepath.Join(os.TempDir(), "mediascribe")
}
