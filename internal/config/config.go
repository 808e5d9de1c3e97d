package config

import (
	"fmt"
	"os"
	"strings"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	CatalogPath string
	BalancePath string
}

type BotConfig struct {
	DiscordToken  string
	DatabaseURL   string
	CatalogPath   string
	BalancePath   string
	CommandPrefix string
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TROUPE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogPath: strings.TrimSpace(os.Getenv("TROUPE_CATALOG_PATH")),
		BalancePath: strings.TrimSpace(os.Getenv("TROUPE_BALANCE_PATH")),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// LoadBotFromEnv reads the gateway config. DATABASE_URL is optional
// here: without it the bot runs on the in-memory store, which is handy
// for trying it out on a test server.
func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		DiscordToken:  strings.TrimSpace(os.Getenv("TROUPE_DISCORD_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogPath:   strings.TrimSpace(os.Getenv("TROUPE_CATALOG_PATH")),
		BalancePath:   strings.TrimSpace(os.Getenv("TROUPE_BALANCE_PATH")),
		CommandPrefix: envDefault("TROUPE_COMMAND_PREFIX", "!"),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("TROUPE_DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TRP_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
