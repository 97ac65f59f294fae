// Package conf loads and validates the service configuration via viper.
// Settings come from an optional YAML config file, AUTOMIX_ environment
// variables, and CLI flags bound by the cmd packages.
package conf

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug logging

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // node name, used in logs and MQTT topics
		Log  LogConfig // main logging configuration
	}

	WebServer struct {
		Enabled bool   // true to enable the HTTP API
		Port    string // listen port for the HTTP API
		Debug   bool
	}

	Analysis AnalysisConfig // track analysis settings

	Planner PlannerConfig // auto-DJ planner settings

	Render RenderConfig // mix renderer settings

	Queue QueueConfig // job queue settings

	Stems StemsConfig // stem separation settings

	ObjectStore ObjectStoreConfig // blob storage settings

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite catalog
			Path    string // path to sqlite database
		}
		MySQL struct {
			Enabled  bool
			Username string
			Password string
			Database string
			Host     string
			Port     string
		}
	}

	MQTT struct {
		Enabled bool   // true to publish status events
		Broker  string // broker URL, e.g. tcp://localhost:1883
		Topic   string // base topic for status events
		User    string
		Pass    string
	}

	Sentry struct {
		Enabled bool
		DSN     string
	}
}

// LogConfig defines the configuration for a log file.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// AnalysisConfig holds track-analysis settings.
type AnalysisConfig struct {
	SampleRate     int    // PCM target rate for analysis (default 44100)
	FfmpegPath     string // path to the ffmpeg binary
	FfprobePath    string // path to the ffprobe binary
	DecodeTimeout  int    // per-decode deadline in seconds
	CacheAnalysis  bool   // skip re-analysis of identical bytes
	Version        string // opaque analysis version tag persisted with results
	MaxTrackLength int    // longest decodable track in seconds
}

// PlannerConfig holds auto-DJ planner settings.
type PlannerConfig struct {
	TargetBpmDefault float64 // fallback target BPM when no track has one
}

// RenderConfig holds mix renderer settings.
type RenderConfig struct {
	Bitrate       string // final MP3 bitrate (default 192k)
	Format        string // output container, fixed to mp3
	RenderTimeout int    // per-render deadline in seconds
}

// QueueConfig holds job queue settings.
type QueueConfig struct {
	Concurrency  int // worker count (default 4)
	MaxQueued    int // pending job limit before backpressure
	ShutdownWait int // grace period in seconds on shutdown
}

// StemsConfig holds stem separation settings.
type StemsConfig struct {
	Engines         []string // ordered engine identifiers, best first
	RemoteURL       string   // endpoint of the remote separator, if configured
	ProbeTimeout    int      // health probe deadline in seconds
	SeparateTimeout int      // per-separation deadline in seconds
}

// ObjectStoreConfig holds blob storage settings.
type ObjectStoreConfig struct {
	Driver string // "disk" or "s3"
	Disk   struct {
		Root string // root directory for the disk driver
	}
	S3 struct {
		Bucket   string
		Region   string
		Endpoint string // optional custom endpoint (minio etc.)
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from file and environment and returns the
// validated settings.
func Load() (*Settings, error) {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/automix")
	viper.AddConfigPath("/etc/automix")

	viper.SetEnvPrefix("automix")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env apply.
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// Setting returns the loaded global settings, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings installs settings for tests.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
