package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort string

	// "memory" or "mysql"
	LedgerBackend string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	TargetLTVPercent            decimal.Decimal
	LiquidationThresholdPercent decimal.Decimal
	CollaboratorTimeout         time.Duration
	HoldDuration                time.Duration

	WatcherInterval   time.Duration
	ExpiryLeadTime    time.Duration
	AutomationEnabled bool
	PriceCacheTTL     time.Duration
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getdur(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func getdec(k string, d string) decimal.Decimal {
	if v := os.Getenv(k); v != "" {
		if dec, err := decimal.NewFromString(v); err == nil {
			return dec
		}
	}
	out, _ := decimal.NewFromString(d)
	return out
}

func getbool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:       getenv("APP_PORT", "8080"),
		LedgerBackend: getenv("LEDGER_BACKEND", "memory"),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "creditshaft"),
		MySQLUser: getenv("MYSQL_USER", "creditshaft"),
		MySQLPass: getenv("MYSQL_PASS", "creditshaft"),

		RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:   getint("REDIS_DB", 0),

		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		TargetLTVPercent:            getdec("TARGET_LTV_PERCENT", "80"),
		LiquidationThresholdPercent: getdec("LIQUIDATION_THRESHOLD_PERCENT", "85"),
		CollaboratorTimeout:         getdur("COLLABORATOR_TIMEOUT", 10*time.Second),
		HoldDuration:                getdur("HOLD_DURATION", 7*24*time.Hour),

		WatcherInterval:   getdur("WATCHER_INTERVAL", time.Minute),
		ExpiryLeadTime:    getdur("EXPIRY_LEAD_TIME", time.Hour),
		AutomationEnabled: getbool("AUTOMATION_ENABLED", true),
		PriceCacheTTL:     getdur("PRICE_CACHE_TTL", 5*time.Second),
	}
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.LedgerBackend {
	case "memory":
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}
	if !c.TargetLTVPercent.IsPositive() || c.TargetLTVPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("TARGET_LTV_PERCENT out of range: %s", c.TargetLTVPercent)
	}
	if c.LiquidationThresholdPercent.LessThan(c.TargetLTVPercent) {
		return errors.New("LIQUIDATION_THRESHOLD_PERCENT below TARGET_LTV_PERCENT")
	}
	if c.WatcherInterval <= 0 || c.ExpiryLeadTime <= 0 {
		return errors.New("watcher interval and lead time must be positive")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME scanning into time.Time
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
