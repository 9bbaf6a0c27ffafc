package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// KeyCacheCfg controls the optional API key verdict cache. It is off unless
// API_KEY_CACHE_SIZE is positive or REDIS_ADDR is set.
type KeyCacheCfg struct {
	RedisAddr        string
	RedisPoolSize    int
	RedisDialTimeout time.Duration
	RedisReadTimeout time.Duration
	TTL              time.Duration
	LocalSize        int
}

type EventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr         string
	LogLevel     string
	LogConsole   bool
	LogSampleN   int
	Session      string
	APIURL       string
	WFSTypeName  string
	PointRes     int
	PointCount   int
	ProbeTimeout time.Duration
	WFSTimeout   time.Duration
	KeyCache     KeyCacheCfg
	Events       EventsCfg
	Metrics      MetricsCfg
}

func FromEnv() Config {
	res := getint("POINT_QUERY_H3_RES", 9)
	if res < 0 || res > 15 {
		res = 9
	}

	return Config{
		Addr:         getenv("ADDR", ":8090"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogConsole:   getbool("LOG_CONSOLE", false),
		LogSampleN:   getint("LOG_SAMPLE_N", 0),
		Session:      getenv("SESSION_ID", ""),
		APIURL:       getenv("API_URL", "https://api.maxar.com/"),
		WFSTypeName:  getenv("WFS_TYPENAME", "Maxar:FinishedFeature"),
		PointRes:     res,
		PointCount:   getint("POINT_QUERY_COUNT", 100),
		ProbeTimeout: getduration("API_KEY_PROBE_TIMEOUT", 0),
		WFSTimeout:   getduration("WFS_TIMEOUT", 30*time.Second),
		KeyCache: KeyCacheCfg{
			RedisAddr:        getenv("REDIS_ADDR", ""),
			RedisPoolSize:    getint("REDIS_POOL_SIZE", 8),
			RedisDialTimeout: getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			RedisReadTimeout: getduration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			TTL:              getduration("API_KEY_CACHE_TTL", 5*time.Minute),
			LocalSize:        getint("API_KEY_CACHE_SIZE", 0),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "map-state-events"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
