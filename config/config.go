package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"chatterbridge/language"
)

// HostPlaceholder in any endpoint URL is replaced with the development host.
const HostPlaceholder = "{host}"

type Config struct {
	DefaultTarget string           `yaml:"default_target"`
	Transcribe    TranscribeConfig `yaml:"transcribe"`
	Translate     TranslateConfig  `yaml:"translate"`
	Detect        DetectConfig     `yaml:"detect"`
	Speech        SpeechConfig     `yaml:"speech"`
	Recording     RecordingConfig  `yaml:"recording"`
	Server        ServerConfig     `yaml:"server"`
}

type TranscribeConfig struct {
	Backend   string `yaml:"backend"` // json, multipart, openai, groq, mock
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TranslateConfig struct {
	Backend   string `yaml:"backend"` // http, static, none
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APIHost   string `yaml:"api_host"`
	Table     string `yaml:"table"` // extra phrasebook for the static backend
	TimeoutMS int    `yaml:"timeout_ms"`
}

type DetectConfig struct {
	URL       string `yaml:"url"`
	Mode      string `yaml:"mode"` // image, video
	TimeoutMS int    `yaml:"timeout_ms"`
}

type SpeechConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

type RecordingConfig struct {
	Format            string  `yaml:"format"` // wav, flac
	SampleRate        int     `yaml:"sample_rate"`
	Device            string  `yaml:"device"`
	SilenceThreshold  float64 `yaml:"silence_threshold"`
	SilenceWarnMS     int     `yaml:"silence_warn_ms"`
	SilenceAutoStopMS int     `yaml:"silence_auto_stop_ms"`
	MaxDurationMS     int     `yaml:"max_duration_ms"`
}

type ServerConfig struct {
	Bind          string `yaml:"bind"`
	Port          int    `yaml:"port"`
	Transcriber   string `yaml:"transcriber"` // mock, openai, groq
	APIKey        string `yaml:"api_key"`
	ImageLabels   string `yaml:"image_labels"`
	VideoLabels   string `yaml:"video_labels"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	ShutdownMS    int    `yaml:"shutdown_timeout_ms"`
	MetricsEnable bool   `yaml:"metrics"`
}

func Default() Config {
	return Config{
		DefaultTarget: "en",
		Transcribe: TranscribeConfig{
			Backend:   "json",
			URL:       "http://{host}:5000/transcribe",
			TimeoutMS: 30000,
		},
		Translate: TranslateConfig{
			Backend:   "http",
			URL:       "http://{host}:5000/translate",
			TimeoutMS: 15000,
		},
		Detect: DetectConfig{
			URL:       "http://{host}:5000",
			Mode:      "image",
			TimeoutMS: 30000,
		},
		Speech: SpeechConfig{
			Enabled: false,
			Command: "espeak-ng -v {lang}",
		},
		Recording: RecordingConfig{
			Format:            "wav",
			SampleRate:        16000,
			SilenceThreshold:  0.01,
			SilenceWarnMS:     8000,
			SilenceAutoStopMS: 30000,
			MaxDurationMS:     5 * 60 * 1000,
		},
		Server: ServerConfig{
			Bind:          "0.0.0.0",
			Port:          5000,
			Transcriber:   "mock",
			MaxUploadMB:   25,
			ShutdownMS:    5000,
			MetricsEnable: true,
		},
	}
}

// DefaultPath is config.yaml under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatterbridge", "config.yaml")
}

// Load reads path on top of Default. An empty path skips the file. A
// missing file is only an error when explicit is true.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err) && !explicit:
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	expandHosts(&cfg, DevHost())
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DevHost is the host substituted for HostPlaceholder. It comes from
// CHATTERBRIDGE_DEV_HOST and falls back to localhost.
func DevHost() string {
	if h := strings.TrimSpace(os.Getenv("CHATTERBRIDGE_DEV_HOST")); h != "" {
		return h
	}
	return "localhost"
}

func ExpandHost(url, host string) string {
	return strings.ReplaceAll(url, HostPlaceholder, host)
}

func expandHosts(cfg *Config, host string) {
	cfg.Transcribe.URL = ExpandHost(cfg.Transcribe.URL, host)
	cfg.Translate.URL = ExpandHost(cfg.Translate.URL, host)
	cfg.Detect.URL = ExpandHost(cfg.Detect.URL, host)
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.DefaultTarget, "CHATTERBRIDGE_DEFAULT_TARGET")
	overrideString(&cfg.Transcribe.Backend, "CHATTERBRIDGE_TRANSCRIBE_BACKEND")
	overrideString(&cfg.Transcribe.URL, "CHATTERBRIDGE_TRANSCRIBE_URL")
	overrideString(&cfg.Transcribe.APIKey, "CHATTERBRIDGE_TRANSCRIBE_API_KEY")
	overrideString(&cfg.Transcribe.Model, "CHATTERBRIDGE_TRANSCRIBE_MODEL")
	overrideString(&cfg.Transcribe.Language, "CHATTERBRIDGE_TRANSCRIBE_LANGUAGE")
	overrideInt(&cfg.Transcribe.TimeoutMS, "CHATTERBRIDGE_TRANSCRIBE_TIMEOUT_MS")
	overrideString(&cfg.Translate.Backend, "CHATTERBRIDGE_TRANSLATE_BACKEND")
	overrideString(&cfg.Translate.URL, "CHATTERBRIDGE_TRANSLATE_URL")
	overrideString(&cfg.Translate.APIKey, "CHATTERBRIDGE_TRANSLATE_API_KEY")
	overrideString(&cfg.Translate.APIHost, "CHATTERBRIDGE_TRANSLATE_API_HOST")
	overrideString(&cfg.Translate.Table, "CHATTERBRIDGE_TRANSLATE_TABLE")
	overrideInt(&cfg.Translate.TimeoutMS, "CHATTERBRIDGE_TRANSLATE_TIMEOUT_MS")
	overrideString(&cfg.Detect.URL, "CHATTERBRIDGE_DETECT_URL")
	overrideString(&cfg.Detect.Mode, "CHATTERBRIDGE_DETECT_MODE")
	overrideInt(&cfg.Detect.TimeoutMS, "CHATTERBRIDGE_DETECT_TIMEOUT_MS")
	overrideBool(&cfg.Speech.Enabled, "CHATTERBRIDGE_SPEECH_ENABLED")
	overrideString(&cfg.Speech.Command, "CHATTERBRIDGE_SPEECH_COMMAND")
	overrideString(&cfg.Recording.Format, "CHATTERBRIDGE_RECORDING_FORMAT")
	overrideInt(&cfg.Recording.SampleRate, "CHATTERBRIDGE_RECORDING_SAMPLE_RATE")
	overrideString(&cfg.Recording.Device, "CHATTERBRIDGE_RECORDING_DEVICE")
	overrideFloat(&cfg.Recording.SilenceThreshold, "CHATTERBRIDGE_RECORDING_SILENCE_THRESHOLD")
	overrideInt(&cfg.Recording.SilenceWarnMS, "CHATTERBRIDGE_RECORDING_SILENCE_WARN_MS")
	overrideInt(&cfg.Recording.SilenceAutoStopMS, "CHATTERBRIDGE_RECORDING_SILENCE_AUTO_STOP_MS")
	overrideInt(&cfg.Recording.MaxDurationMS, "CHATTERBRIDGE_RECORDING_MAX_DURATION_MS")
	overrideString(&cfg.Server.Bind, "CHATTERBRIDGE_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "CHATTERBRIDGE_SERVER_PORT")
	overrideString(&cfg.Server.Transcriber, "CHATTERBRIDGE_SERVER_TRANSCRIBER")
	overrideString(&cfg.Server.APIKey, "CHATTERBRIDGE_SERVER_API_KEY")
	overrideString(&cfg.Server.ImageLabels, "CHATTERBRIDGE_SERVER_IMAGE_LABELS")
	overrideString(&cfg.Server.VideoLabels, "CHATTERBRIDGE_SERVER_VIDEO_LABELS")
	overrideInt(&cfg.Server.MaxUploadMB, "CHATTERBRIDGE_SERVER_MAX_UPLOAD_MB")
	overrideInt(&cfg.Server.ShutdownMS, "CHATTERBRIDGE_SERVER_SHUTDOWN_TIMEOUT_MS")
	overrideBool(&cfg.Server.MetricsEnable, "CHATTERBRIDGE_SERVER_METRICS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Transcribe.Backend {
	case "json", "multipart":
		if cfg.Transcribe.URL == "" {
			return errors.New("transcribe.url must not be empty")
		}
	case "openai", "groq":
		if cfg.Transcribe.APIKey == "" {
			return fmt.Errorf("transcribe.api_key is required for backend %q", cfg.Transcribe.Backend)
		}
	case "mock":
	default:
		return fmt.Errorf("transcribe.backend %q is not supported", cfg.Transcribe.Backend)
	}
	switch cfg.Translate.Backend {
	case "http":
		if cfg.Translate.URL == "" {
			return errors.New("translate.url must not be empty")
		}
	case "static", "none":
	default:
		return fmt.Errorf("translate.backend %q is not supported", cfg.Translate.Backend)
	}
	if cfg.Detect.Mode != "image" && cfg.Detect.Mode != "video" {
		return errors.New("detect.mode must be image or video")
	}
	if cfg.DefaultTarget != "" && !language.Valid(cfg.DefaultTarget) {
		return fmt.Errorf("default_target %q is not a known language", cfg.DefaultTarget)
	}
	if cfg.Recording.Format != "wav" && cfg.Recording.Format != "flac" {
		return errors.New("recording.format must be wav or flac")
	}
	if cfg.Recording.SampleRate <= 0 {
		return errors.New("recording.sample_rate must be positive")
	}
	if cfg.Recording.SilenceThreshold < 0 || cfg.Recording.SilenceThreshold > 1 {
		return errors.New("recording.silence_threshold must be between 0 and 1")
	}
	if cfg.Recording.SilenceAutoStopMS > 0 && cfg.Recording.SilenceWarnMS >= cfg.Recording.SilenceAutoStopMS {
		return errors.New("recording.silence_warn_ms must be below silence_auto_stop_ms")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	switch cfg.Server.Transcriber {
	case "mock", "openai", "groq":
	default:
		return fmt.Errorf("server.transcriber %q is not supported", cfg.Server.Transcriber)
	}
	return nil
}
