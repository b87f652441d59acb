package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/petems/voiceflow/internal/stream"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeTray  = "tray"
	ModeStdio = "stdio"

	EngineWhisperCpp = "whisper-cpp"
	EngineOpenAI     = "openai"

	HotkeyToggle     = "toggle"
	HotkeyPushToTalk = "push_to_talk"

	// whisper.cpp models only accept 16 kHz input
	whisperCppRate = 16000
)

// ErrWhisperCppUnavailable is returned by Validate when the whisper-cpp
// engine is selected in a binary built without the whisper_cpp tag.
var ErrWhisperCppUnavailable = errors.New("whisper-cpp engine is not compiled in: rebuild with -tags whisper_cpp or set whisper.engine=openai")

type Config struct {
	Mode     string        `mapstructure:"mode"` // "tray" or "stdio"
	LogLevel string        `mapstructure:"log_level"`
	Audio    AudioConfig   `mapstructure:"audio"`
	Whisper  WhisperConfig `mapstructure:"whisper"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`
	Server   ServerConfig  `mapstructure:"server"`
	Inject   InjectConfig  `mapstructure:"inject"`
	Hotkey   HotkeyConfig  `mapstructure:"hotkey"`

	path string
}

type AudioConfig struct {
	DeviceID        string        `mapstructure:"device_id"`
	SampleRate      int           `mapstructure:"sample_rate"`
	Channels        int           `mapstructure:"channels"`
	FramesPerBuffer int           `mapstructure:"frames_per_buffer"`
	ChunkDuration   time.Duration `mapstructure:"chunk_duration"`
	OverlapDuration time.Duration `mapstructure:"overlap_duration"`
	MaxQueueDepth   int           `mapstructure:"max_queue_depth"`
}

type WhisperConfig struct {
	Engine           string        `mapstructure:"engine"`   // "whisper-cpp" or "openai"
	Model            string        `mapstructure:"model"`    // "base.en", "small", etc.
	Language         string        `mapstructure:"language"` // "auto", "en", etc.
	Threads          int           `mapstructure:"threads"`
	TargetSampleRate int           `mapstructure:"target_sample_rate"`
	Timeout          time.Duration `mapstructure:"timeout"` // 0 disables
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // pages allowed to open /events besides loopback

}

type InjectConfig struct {
	CopyOnStop  bool `mapstructure:"copy_on_stop"`
	AppendSpace bool `mapstructure:"append_space"`
	Paste       bool `mapstructure:"paste"`        // paste into the focused app when a session ends
	PreferPaste bool `mapstructure:"prefer_paste"` // Cmd+V first, typing as fallback
}

type HotkeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Accel   string `mapstructure:"accel"`
	Darwin  string `mapstructure:"accel_darwin"`
	Mode    string `mapstructure:"mode"` // "toggle" or "push_to_talk"
}

// flagKeys maps command line flags onto config keys
var flagKeys = map[string]string{
	"mode":      "mode",
	"log-level": "log_level",
	"device":    "audio.device_id",
	"engine":    "whisper.engine",
	"model":     "whisper.model",
	"listen":    "server.addr",
	"serve":     "server.enabled",
	"hotkey":    "hotkey.accel",
}

// Load reads the config from path (or the platform default location when
// path is empty), then applies VOICEFLOW_* environment variables and any
// flags that were set. A missing default file yields the defaults.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VOICEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || os.IsNotExist(err)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.path = path

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := stream.DefaultConfig()

	v.SetDefault("mode", ModeTray)
	v.SetDefault("log_level", "info")

	v.SetDefault("audio.device_id", "")
	v.SetDefault("audio.sample_rate", def.SampleRate)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.frames_per_buffer", 512)
	v.SetDefault("audio.chunk_duration", def.ChunkDuration)
	v.SetDefault("audio.overlap_duration", def.OverlapDuration)
	v.SetDefault("audio.max_queue_depth", def.MaxQueueDepth)

	v.SetDefault("whisper.engine", EngineWhisperCpp)
	v.SetDefault("whisper.model", "base.en")
	v.SetDefault("whisper.language", "auto")
	v.SetDefault("whisper.threads", 0) // Auto-detect
	v.SetDefault("whisper.target_sample_rate", def.TargetSampleRate)
	v.SetDefault("whisper.timeout", time.Duration(0))

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "whisper-1")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("inject.copy_on_stop", true)
	v.SetDefault("inject.append_space", true)
	v.SetDefault("inject.paste", false)
	v.SetDefault("inject.prefer_paste", true)

	v.SetDefault("hotkey.enabled", true)
	v.SetDefault("hotkey.accel", "Alt+Space")
	v.SetDefault("hotkey.accel_darwin", "Alt+Space") // Option+Space
	v.SetDefault("hotkey.mode", HotkeyPushToTalk)
}

// Save writes the config back to the file it was loaded from
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = configPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("mode", c.Mode)
	v.Set("log_level", c.LogLevel)
	v.Set("audio.device_id", c.Audio.DeviceID)
	v.Set("audio.sample_rate", c.Audio.SampleRate)
	v.Set("audio.channels", c.Audio.Channels)
	v.Set("audio.frames_per_buffer", c.Audio.FramesPerBuffer)
	v.Set("audio.chunk_duration", c.Audio.ChunkDuration.String())
	v.Set("audio.overlap_duration", c.Audio.OverlapDuration.String())
	v.Set("audio.max_queue_depth", c.Audio.MaxQueueDepth)
	v.Set("whisper.engine", c.Whisper.Engine)
	v.Set("whisper.model", c.Whisper.Model)
	v.Set("whisper.language", c.Whisper.Language)
	v.Set("whisper.threads", c.Whisper.Threads)
	v.Set("whisper.target_sample_rate", c.Whisper.TargetSampleRate)
	v.Set("whisper.timeout", c.Whisper.Timeout.String())
	v.Set("openai.base_url", c.OpenAI.BaseURL)
	v.Set("openai.model", c.OpenAI.Model)
	v.Set("server.enabled", c.Server.Enabled)
	v.Set("server.addr", c.Server.Addr)
	v.Set("server.allowed_origins", c.Server.AllowedOrigins)
	v.Set("inject.copy_on_stop", c.Inject.CopyOnStop)
	v.Set("inject.append_space", c.Inject.AppendSpace)
	v.Set("inject.paste", c.Inject.Paste)
	v.Set("inject.prefer_paste", c.Inject.PreferPaste)
	v.Set("hotkey.enabled", c.Hotkey.Enabled)
	v.Set("hotkey.accel", c.Hotkey.Accel)
	v.Set("hotkey.accel_darwin", c.Hotkey.Darwin)
	v.Set("hotkey.mode", c.Hotkey.Mode)
	// The API key stays in the environment, never on disk

	return v.WriteConfigAs(path)
}

// Path returns the file Save writes to
func (c *Config) Path() string {
	return c.path
}

// Pipeline returns the streaming parameters derived from the audio and
// whisper sections.
func (c *Config) Pipeline() stream.Config {
	return stream.Config{
		SampleRate:       c.Audio.SampleRate,
		ChunkDuration:    c.Audio.ChunkDuration,
		OverlapDuration:  c.Audio.OverlapDuration,
		TargetSampleRate: c.Whisper.TargetSampleRate,
		MaxQueueDepth:    c.Audio.MaxQueueDepth,
	}
}

// Validate rejects configs the pipeline or engine could not run with
func (c *Config) Validate() error {
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case ModeTray, ModeStdio:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.Whisper.Engine {
	case EngineWhisperCpp:
		if !WhisperCppBuilt {
			return ErrWhisperCppUnavailable
		}
		if c.Whisper.TargetSampleRate != whisperCppRate {
			return fmt.Errorf("whisper-cpp engine requires whisper.target_sample_rate %d, got %d", whisperCppRate, c.Whisper.TargetSampleRate)
		}
	case EngineOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai engine requires openai.api_key (VOICEFLOW_OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown transcription engine %q", c.Whisper.Engine)
	}
	switch c.Hotkey.Mode {
	case HotkeyToggle, HotkeyPushToTalk:
	default:
		return fmt.Errorf("unknown hotkey mode %q", c.Hotkey.Mode)
	}
	return nil
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.Hotkey.Darwin != "" {
		return c.Hotkey.Darwin
	}
	return c.Hotkey.Accel
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "voiceflow", "config.yaml")
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "voiceflow", "models")
}
