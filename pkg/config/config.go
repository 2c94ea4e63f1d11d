package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Canvas struct {
		Width           int    `yaml:"width"`
		Height          int    `yaml:"height"`
		FrameRate       int    `yaml:"frame_rate"`
		BackgroundColor string `yaml:"background_color"`
		BackgroundImage string `yaml:"background_image,omitempty"`
		ShowBadges      bool   `yaml:"show_badges"`
		WorkerRenderer  bool   `yaml:"worker_renderer"`
	} `yaml:"canvas"`

	Audio struct {
		SampleRate int `yaml:"sample_rate"`
		Channels   int `yaml:"channels"`
	} `yaml:"audio"`

	Output struct {
		ConnectTimeout     time.Duration `yaml:"connect_timeout"`
		HealthInterval     time.Duration `yaml:"health_interval"`
		MinBitrateKbps     int           `yaml:"min_bitrate_kbps"`
		MaxPacketLossPct   float64       `yaml:"max_packet_loss_pct"`
		BackupsPerPrimary  int           `yaml:"backups_per_primary"`
		CredentialAttempts int           `yaml:"credential_attempts"`
		CredentialBackoff  time.Duration `yaml:"credential_backoff"`
	} `yaml:"output"`

	Recording struct {
		ClipBufferSeconds int    `yaml:"clip_buffer_seconds"`
		ArchiveDir        string `yaml:"archive_dir"`
	} `yaml:"recording"`

	Broadcast struct {
		APIBaseURL     string        `yaml:"api_base_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		CountdownMax   time.Duration `yaml:"countdown_max"`
		IntroMax       time.Duration `yaml:"intro_max"`
	} `yaml:"broadcast"`

	Signaling struct {
		URL          string        `yaml:"url"`
		PingInterval time.Duration `yaml:"ping_interval"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
	} `yaml:"signaling"`

	Control struct {
		Address           string        `yaml:"address"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		RequestBurst      int           `yaml:"request_burst"`
	} `yaml:"control"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Canvas
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas.width and canvas.height must be > 0")
	}
	if c.Canvas.Width%2 != 0 || c.Canvas.Height%2 != 0 {
		return fmt.Errorf("canvas dimensions must be even")
	}
	if c.Canvas.FrameRate <= 0 || c.Canvas.FrameRate > 120 {
		return fmt.Errorf("canvas.frame_rate must be in 1..120")
	}

	// Audio
	if c.Audio.SampleRate != 44100 && c.Audio.SampleRate != 48000 {
		return fmt.Errorf("audio.sample_rate must be 44100 or 48000")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2")
	}

	// Output
	if c.Output.ConnectTimeout <= 0 {
		return fmt.Errorf("output.connect_timeout must be > 0")
	}
	if c.Output.HealthInterval <= 0 {
		return fmt.Errorf("output.health_interval must be > 0")
	}
	if c.Output.MinBitrateKbps < 0 {
		return fmt.Errorf("output.min_bitrate_kbps must be >= 0")
	}
	if c.Output.MaxPacketLossPct < 0 || c.Output.MaxPacketLossPct > 100 {
		return fmt.Errorf("output.max_packet_loss_pct must be in 0..100")
	}
	if c.Output.CredentialAttempts <= 0 {
		return fmt.Errorf("output.credential_attempts must be > 0")
	}

	// Recording
	if c.Recording.ClipBufferSeconds <= 0 || c.Recording.ClipBufferSeconds > 300 {
		return fmt.Errorf("recording.clip_buffer_seconds must be in 1..300")
	}

	// Broadcast
	if c.Broadcast.RequestTimeout <= 0 {
		return fmt.Errorf("broadcast.request_timeout must be > 0")
	}
	if c.Broadcast.CountdownMax <= 0 {
		return fmt.Errorf("broadcast.countdown_max must be > 0")
	}
	if c.Broadcast.IntroMax <= 0 {
		return fmt.Errorf("broadcast.intro_max must be > 0")
	}

	// Control
	if c.Control.Address == "" {
		return fmt.Errorf("control.address must not be empty")
	}
	if c.Control.ShutdownTimeout <= 0 {
		return fmt.Errorf("control.shutdown_timeout must be > 0")
	}
	if c.Control.RequestsPerSecond < 0 {
		return fmt.Errorf("control.requests_per_second must be >= 0")
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Canvas.Width = 1280
	cfg.Canvas.Height = 720
	cfg.Canvas.FrameRate = 30
	cfg.Canvas.BackgroundColor = "#000000"
	cfg.Canvas.ShowBadges = false
	cfg.Canvas.WorkerRenderer = true

	cfg.Audio.SampleRate = 48000
	cfg.Audio.Channels = 2

	cfg.Output.ConnectTimeout = 10 * time.Second
	cfg.Output.HealthInterval = 2 * time.Second
	cfg.Output.MinBitrateKbps = 250
	cfg.Output.MaxPacketLossPct = 15
	cfg.Output.BackupsPerPrimary = 1
	cfg.Output.CredentialAttempts = 10
	cfg.Output.CredentialBackoff = 500 * time.Millisecond

	cfg.Recording.ClipBufferSeconds = 60
	cfg.Recording.ArchiveDir = "recordings"

	cfg.Broadcast.APIBaseURL = "http://localhost:8090"
	cfg.Broadcast.RequestTimeout = 10 * time.Second
	cfg.Broadcast.CountdownMax = 60 * time.Second
	cfg.Broadcast.IntroMax = 2 * time.Minute

	cfg.Signaling.URL = "ws://localhost:8081/ws"
	cfg.Signaling.PingInterval = 30 * time.Second
	cfg.Signaling.DialTimeout = 10 * time.Second

	cfg.Control.Address = ":8080"
	cfg.Control.ShutdownTimeout = 30 * time.Second
	cfg.Control.RequestsPerSecond = 50
	cfg.Control.RequestBurst = 100

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if addr := os.Getenv("STUDIOCAST_CONTROL_ADDRESS"); addr != "" {
		c.Control.Address = addr
	}
	if url := os.Getenv("STUDIOCAST_SIGNALING_URL"); url != "" {
		c.Signaling.URL = url
	}
	if url := os.Getenv("STUDIOCAST_BROADCAST_API_URL"); url != "" {
		c.Broadcast.APIBaseURL = url
	}
	if level := os.Getenv("STUDIOCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
