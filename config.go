package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings are the process-level knobs read from the environment; a .env
// file in the working directory is honored for local development.
type Settings struct {
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	DataDir      string `envconfig:"REHEARSE_DATA_DIR"`
	LiveModel    string `envconfig:"REHEARSE_LIVE_MODEL"`
	TextModel    string `envconfig:"REHEARSE_TEXT_MODEL"`
}

func loadSettings() (Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return s, fmt.Errorf("reading environment: %w", err)
	}
	if s.GeminiAPIKey == "" {
		return s, fmt.Errorf("GEMINI_API_KEY is not set (put it in the environment or a .env file)")
	}
	if s.DataDir == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return s, fmt.Errorf("resolving data directory: %w", err)
		}
		s.DataDir = filepath.Join(cfgDir, "rehearse")
	}
	return s, nil
}
