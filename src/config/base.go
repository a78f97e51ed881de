package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/storyvote/src/data"
	"gorm.io/gorm"
)

// Base contains bootstrap configuration that cannot live in the settings table.
type Base struct {
	MySQLDSN string
	RedisURL string
}

// LoadBase refreshes the settings cache and reads bootstrap values.
func LoadBase(db *gorm.DB) Base {
	if db != nil {
		n, err := data.LoadSettings(db)
		if err != nil {
			log.Printf("config: settings unavailable, using env fallbacks: %v", err)
		} else {
			log.Printf("config: loaded %d setting(s)", n)
		}
	}

	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Printf("config: %v", err)
	}

	return Base{
		MySQLDSN: dsn,
		RedisURL: GetSetting("redis_url", "REDIS_URL", ""),
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val, ok := data.LookupSetting(name)
	if !ok && envKey != "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return strings.TrimSpace(val)
}

func getIntSetting(name, envKey string, defaultValue int) int {
	raw := GetSetting(name, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", name, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getPositiveInt(name, envKey string, defaultValue int) int {
	if v := getIntSetting(name, envKey, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

func getSeconds(name, envKey string, defaultValue int) time.Duration {
	return time.Duration(getPositiveInt(name, envKey, defaultValue)) * time.Second
}

func getBoolSetting(settingKey, envKey string, defaultValue bool) bool {
	return parseBoolDefault(GetSetting(settingKey, envKey, ""), defaultValue)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
