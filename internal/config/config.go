// /internal/config/config.go
package config

import (
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds the process settings read from the environment.
type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN,required"`
	SoundsDir     string `env:"SOUNDS_DIRECTORY,required"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"~"`
}

// New parses the environment into a Config. Missing required settings are
// fatal; the bot cannot run without a token and a sounds directory.
func New() *Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		log.Fatal("[ERR] ", err)
	}
	return &cfg
}
