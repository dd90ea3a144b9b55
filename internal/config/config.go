package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration, loaded once at startup from
// environment variables.
type Config struct {
	Port      string
	RedisAddr string
	MongoURI  string

	// Postgres connection pieces for the session store.
	PostgresHost     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresPort     string
	PostgresSSLMode  string

	JWTSecret string

	FollowUpProvider string
	SpeechBaseURL    string

	Engine EngineConfig
}

// EngineConfig is the immutable per-session tuning snapshot. It is copied
// into the orchestrator at session-open time so a config change can never
// corrupt an in-flight interview.
//
// The completeness threshold and the disconnect grace period are modeled as
// named settings rather than fixed values.
type EngineConfig struct {
	// AnswerMinWords is the completeness threshold: answers shorter than
	// this trigger a clarifying follow-up.
	AnswerMinWords int

	// DisconnectGrace is how long a candidate may be gone before the
	// session is abandoned.
	DisconnectGrace time.Duration

	// AudioWindow is the fixed transcription window.
	AudioWindow time.Duration
	// SilenceFlush flushes a shorter final window once the candidate's
	// stream has been silent this long.
	SilenceFlush time.Duration
	// ReorderWindow bounds out-of-order audio chunk buffering.
	ReorderWindow int

	// IdleCheckIn triggers a soft AI check-in; IdleClose moves the session
	// to closing after a second idle period.
	IdleCheckIn time.Duration
	IdleClose   time.Duration

	IntroTimeout time.Duration
	MaxDuration  time.Duration

	// SpeechTimeout bounds each transcription/synthesis call.
	SpeechTimeout time.Duration
	// FollowUpTimeout bounds follow-up generation.
	FollowUpTimeout time.Duration
	// FollowUpApproval is how long a speculative follow-up waits for the
	// hybrid manager before being discarded.
	FollowUpApproval time.Duration

	// ReplayDepth is how many recent segments are replayed on reconnect.
	ReplayDepth int

	Voice string
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "8087"),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		MongoURI:  getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),

		PostgresHost:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresUser:     getEnvOrDefault("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnvOrDefault("POSTGRES_DB", "postgres"),
		PostgresPort:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),

		FollowUpProvider: getEnvOrDefault("FOLLOWUP_PROVIDER", "gemini"),
		SpeechBaseURL:    getEnvOrDefault("SPEECH_BASE_URL", "http://localhost:9090"),

		Engine: LoadEngineConfig(),
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEngineConfig reads the engine tunables from environment variables,
// falling back to defaults.
func LoadEngineConfig() EngineConfig {
	return EngineConfig{
		AnswerMinWords:   getEnvInt("ANSWER_MIN_WORDS", 12),
		DisconnectGrace:  getEnvSeconds("DISCONNECT_GRACE_SEC", 60),
		AudioWindow:      getEnvSeconds("AUDIO_WINDOW_SEC", 5),
		SilenceFlush:     getEnvMillis("SILENCE_FLUSH_MS", 1200),
		ReorderWindow:    getEnvInt("AUDIO_REORDER_WINDOW", 32),
		IdleCheckIn:      getEnvSeconds("IDLE_CHECKIN_SEC", 45),
		IdleClose:        getEnvSeconds("IDLE_CLOSE_SEC", 45),
		IntroTimeout:     getEnvSeconds("INTRO_TIMEOUT_SEC", 30),
		MaxDuration:      getEnvSeconds("MAX_INTERVIEW_SEC", 2700),
		SpeechTimeout:    getEnvSeconds("SPEECH_TIMEOUT_SEC", 10),
		FollowUpTimeout:  getEnvSeconds("FOLLOWUP_TIMEOUT_SEC", 8),
		FollowUpApproval: getEnvSeconds("FOLLOWUP_APPROVAL_SEC", 20),
		ReplayDepth:      getEnvInt("REPLAY_DEPTH", 20),
		Voice:            getEnvOrDefault("AI_VOICE", "aria"),
	}
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.FollowUpProvider != "gemini" && cfg.FollowUpProvider != "none" {
		return errors.New("unsupported follow-up provider: " + cfg.FollowUpProvider)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

func getEnvMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Millisecond
}
