package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from a .env file without overriding ones that
// are already set. An empty path means ".env"; a missing file is not an
// error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
