package app

import (
	"os"
	"strconv"
	"strings"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	HTTPAddr          string
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int

	// OperatorCode guards the operator API. Empty disables the check, which
	// is only sane on a classroom machine with no network exposure.
	OperatorCode    string
	RateLimitPerMin int

	// PresetsPath points at the pre-authored question catalog.
	PresetsPath string

	// ConsoleURL is what the /qr endpoint encodes; defaults to the listen
	// address when unset.
	ConsoleURL string
}

func LoadConfig() Config {
	addr := envOrDefault("HTTP_ADDR", ":1145")

	return Config{
		AppEnv:            envOrDefault("APP_ENV", "development"),
		HTTPAddr:          addr,
		DBDriver:          envOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:             os.Getenv("DB_DSN"),
		DBMaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins: intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		OperatorCode:      os.Getenv("OPERATOR_CODE"),
		RateLimitPerMin:   intOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		PresetsPath:       envOrDefault("PRESETS_PATH", "presets.json"),
		ConsoleURL:        envOrDefault("CONSOLE_URL", "http://localhost"+normalizeAddr(addr)),
	}
}

func normalizeAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}
