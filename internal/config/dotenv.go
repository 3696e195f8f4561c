package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file.
// If path is empty, it loads from ".env" in the current directory.
// A missing file is not an error. Variables already set in the environment
// are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadConfig loads configuration from an optional .env file and the
// environment, then applies opts on top.
func LoadConfig(envPath string, opts ...Option) (ClientConfig, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return ClientConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return ClientConfig{}, err
	}

	return envCfg.ToClientConfig().Apply(opts...), nil
}
