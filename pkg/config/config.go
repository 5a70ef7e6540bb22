package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

type AnswerConfig struct {
	Mode    string `yaml:"mode"` // mock, gemini
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

type SpeechConfig struct {
	Mode       string `yaml:"mode"` // http, mock
	BaseURL    string `yaml:"base_url"`
	SampleRate int    `yaml:"sample_rate"`
	ToneHz     int    `yaml:"tone_hz"`
}

type PlayerConfig struct {
	Mode    string `yaml:"mode"` // exec, null
	Command string `yaml:"command"`
}

type VoiceConfig struct {
	CommaFallbackLen int `yaml:"comma_fallback_len"`
}

type ChatConfig struct {
	URL              string `yaml:"url"`
	RoomID           string `yaml:"room_id"`
	UserName         string `yaml:"user_name"`
	Role             string `yaml:"role"`
	ReconnectDelayMS int    `yaml:"reconnect_delay_ms"`
	PingIntervalMS   int    `yaml:"ping_interval_ms"`
}

type Config struct {
	ServiceName string       `yaml:"service_name"`
	Environment string       `yaml:"environment"`
	Server      ServerConfig `yaml:"server"`
	Log         LogConfig    `yaml:"log"`
	Answer      AnswerConfig `yaml:"answer"`
	Speech      SpeechConfig `yaml:"speech"`
	Player      PlayerConfig `yaml:"player"`
	Voice       VoiceConfig  `yaml:"voice"`
	Chat        ChatConfig   `yaml:"chat"`
}

func Default() Config {
	return Config{
		ServiceName: "voxwire",
		Environment: "development",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Answer: AnswerConfig{
			Mode:    "mock",
			BaseURL: "http://localhost:8080",
			Model:   "gemini-2.0-flash",
		},
		Speech: SpeechConfig{
			Mode:       "http",
			BaseURL:    "http://localhost:8080",
			SampleRate: 22050,
			ToneHz:     440,
		},
		Player: PlayerConfig{
			Mode: "null",
		},
		Voice: VoiceConfig{
			CommaFallbackLen: 60,
		},
		Chat: ChatConfig{
			URL:              "ws://localhost:8080/v1/chat",
			RoomID:           "lobby",
			UserName:         "guest",
			Role:             "listener",
			ReconnectDelayMS: 3000,
			PingIntervalMS:   20000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "VOXWIRE_SERVICE_NAME")
	overrideString(&cfg.Environment, "VOXWIRE_ENVIRONMENT")
	overrideString(&cfg.Server.Bind, "VOXWIRE_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "VOXWIRE_SERVER_PORT")
	overrideString(&cfg.Log.Level, "VOXWIRE_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "VOXWIRE_LOG_FORMAT")
	overrideString(&cfg.Answer.Mode, "VOXWIRE_ANSWER_MODE")
	overrideString(&cfg.Answer.BaseURL, "VOXWIRE_ANSWER_BASE_URL")
	overrideString(&cfg.Answer.Model, "VOXWIRE_ANSWER_MODEL")
	overrideString(&cfg.Answer.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Speech.Mode, "VOXWIRE_SPEECH_MODE")
	overrideString(&cfg.Speech.BaseURL, "VOXWIRE_SPEECH_BASE_URL")
	overrideInt(&cfg.Speech.SampleRate, "VOXWIRE_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.ToneHz, "VOXWIRE_SPEECH_TONE_HZ")
	overrideString(&cfg.Player.Mode, "VOXWIRE_PLAYER_MODE")
	overrideString(&cfg.Player.Command, "VOXWIRE_PLAYER_COMMAND")
	overrideInt(&cfg.Voice.CommaFallbackLen, "VOXWIRE_VOICE_COMMA_FALLBACK_LEN")
	overrideString(&cfg.Chat.URL, "VOXWIRE_CHAT_URL")
	overrideString(&cfg.Chat.RoomID, "VOXWIRE_CHAT_ROOM_ID")
	overrideString(&cfg.Chat.UserName, "VOXWIRE_CHAT_USER_NAME")
	overrideString(&cfg.Chat.Role, "VOXWIRE_CHAT_ROLE")
	overrideInt(&cfg.Chat.ReconnectDelayMS, "VOXWIRE_CHAT_RECONNECT_DELAY_MS")
	overrideInt(&cfg.Chat.PingIntervalMS, "VOXWIRE_CHAT_PING_INTERVAL_MS")
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

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.New("log.format must be one of text|json")
	}
	switch cfg.Answer.Mode {
	case "mock", "gemini":
	default:
		return errors.New("answer.mode must be one of mock|gemini")
	}
	if cfg.Answer.Mode == "gemini" && cfg.Answer.Model == "" {
		return errors.New("answer.model must be set when mode=gemini")
	}
	if cfg.Answer.BaseURL == "" {
		return errors.New("answer.base_url must not be empty")
	}
	switch cfg.Speech.Mode {
	case "http", "mock":
	default:
		return errors.New("speech.mode must be one of http|mock")
	}
	if cfg.Speech.Mode == "http" && cfg.Speech.BaseURL == "" {
		return errors.New("speech.base_url must be set when mode=http")
	}
	if cfg.Speech.SampleRate <= 0 {
		return errors.New("speech.sample_rate must be positive")
	}
	switch cfg.Player.Mode {
	case "exec", "null":
	default:
		return errors.New("player.mode must be one of exec|null")
	}
	if cfg.Player.Mode == "exec" && cfg.Player.Command == "" {
		return errors.New("player.command must be set when mode=exec")
	}
	if cfg.Voice.CommaFallbackLen <= 0 {
		return errors.New("voice.comma_fallback_len must be positive")
	}
	if cfg.Chat.URL == "" {
		return errors.New("chat.url must not be empty")
	}
	if cfg.Chat.RoomID == "" {
		return errors.New("chat.room_id must not be empty")
	}
	if cfg.Chat.ReconnectDelayMS <= 0 {
		return errors.New("chat.reconnect_delay_ms must be positive")
	}
	return nil
}
