package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	AgroLink struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"agrolink"`
	CoinGecko struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"coingecko"`
	Symbols struct {
		Agro   []string `yaml:"agro"`
		Crypto []string `yaml:"crypto"`
	} `yaml:"symbols"`
	Schedule struct {
		AgroCron   string `yaml:"agro_cron"`
		CryptoCron string `yaml:"crypto_cron"`
		PurgeCron  string `yaml:"purge_cron"`
	} `yaml:"schedule"`
	Cache struct {
		AgroTTL   time.Duration `yaml:"agro_ttl"`
		CryptoTTL time.Duration `yaml:"crypto_ttl"`
		MaxAge    time.Duration `yaml:"max_age"`
	} `yaml:"cache"`
	HTTP struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Store struct {
		Backend  string `yaml:"backend"`
		FilePath string `yaml:"file_path"`
	} `yaml:"store"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGROLINK_BASE_URL"); v != "" {
		cfg.AgroLink.BaseURL = v
	}
	if v := os.Getenv("AGROLINK_API_KEY"); v != "" {
		cfg.AgroLink.APIKey = v
	}
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.CoinGecko.BaseURL = v
	}
	if v := os.Getenv("SYMBOLS_AGRO"); v != "" {
		cfg.Symbols.Agro = splitList(v)
	}
	if v := os.Getenv("SYMBOLS_CRYPTO"); v != "" {
		cfg.Symbols.Crypto = splitList(v)
	}
	if v := os.Getenv("CRON_AGRO"); v != "" {
		cfg.Schedule.AgroCron = v
	}
	if v := os.Getenv("CRON_CRYPTO"); v != "" {
		cfg.Schedule.CryptoCron = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_POLLING"); v != "" {
		cfg.Telegram.Polling, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com"
	}
	if len(cfg.Symbols.Agro) == 0 {
		cfg.Symbols.Agro = []string{"soja", "milho", "cafe", "algodao", "trigo", "acucar"}
	}
	if len(cfg.Symbols.Crypto) == 0 {
		cfg.Symbols.Crypto = []string{"bitcoin", "ethereum"}
	}
	if cfg.Schedule.AgroCron == "" {
		cfg.Schedule.AgroCron = "0 */5 * * * *"
	}
	if cfg.Schedule.CryptoCron == "" {
		cfg.Schedule.CryptoCron = "*/30 * * * * *"
	}
	if cfg.Schedule.PurgeCron == "" {
		cfg.Schedule.PurgeCron = "0 0 * * * *"
	}
	if cfg.Cache.AgroTTL == 0 {
		cfg.Cache.AgroTTL = 5 * time.Minute
	}
	if cfg.Cache.CryptoTTL == 0 {
		cfg.Cache.CryptoTTL = 30 * time.Second
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = 24 * time.Hour
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreSQLite
	}
	if cfg.Store.FilePath == "" {
		cfg.Store.FilePath = "data/alerts.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/quote_sentinel.db"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "quotesentinel:alerts"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that all required fields are set and well formed.
func (c *Config) Validate() error {
	if c.AgroLink.BaseURL != "" && c.AgroLink.APIKey == "" {
		return fmt.Errorf("agrolink.api_key is required when agrolink.base_url is set")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.agro_cron":   c.Schedule.AgroCron,
		"schedule.crypto_cron": c.Schedule.CryptoCron,
		"schedule.purge_cron":  c.Schedule.PurgeCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Cache.AgroTTL < 0 || c.Cache.CryptoTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	switch c.Store.Backend {
	case StoreSQLite, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("store.backend must be one of %s, %s, %s", StoreSQLite, StoreFile, StoreMemory)
	}
	return nil
}

// TelegramEnabled reports whether Telegram delivery is configured.
func (c *Config) TelegramEnabled() bool { return c.Telegram.BotToken != "" }

// RedisEnabled reports whether the Redis sink is configured.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }
