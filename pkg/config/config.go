package config

import (
	"os"
	"strconv"
)

// Version is the build version, checked against profile "requires"
// constraints. Overridden at link time with -X.
var Version = "0.1.0"

// Config holds server and CLI configuration.
type Config struct {
	Addr         string
	LogLevel     string
	LogFormat    string // text | json | tint
	ProfilePath  string
	DatabaseURL  string // empty means in-memory receipts
	RedisAddr    string // empty means in-memory ledger
	OTLPEndpoint string // empty disables telemetry export
	JWTSecret    string // empty disables bearer auth
	RateRPS      float64
	RateBurst    int
	SigningSeed  string // hex Ed25519 seed for receipts; empty generates one
}

// Load loads configuration from environment variables.
func Load() *Config {
	addr := os.Getenv("OPENGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}

	rps := 50.0
	if v, err := strconv.ParseFloat(os.Getenv("OPENGATE_RATE_RPS"), 64); err == nil && v > 0 {
		rps = v
	}

	burst := 100
	if v, err := strconv.Atoi(os.Getenv("OPENGATE_RATE_BURST")); err == nil && v > 0 {
		burst = v
	}

	return &Config{
		Addr:         addr,
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		ProfilePath:  os.Getenv("OPENGATE_PROFILE"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		JWTSecret:    os.Getenv("OPENGATE_JWT_SECRET"),
		RateRPS:      rps,
		RateBurst:    burst,
		SigningSeed:  os.Getenv("OPENGATE_SIGNING_SEED"),
	}
}
