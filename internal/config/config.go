// Package config loads the orchestrator's process-wide configuration,
// grounded on the teacher's app.LoadConfig/utils.GetEnv pattern
// (internal/app/config.go, internal/utils/env.go), generalized to return
// an error instead of silently defaulting when a *required* setting
// (DSNs, chain RPC URL) is missing, while keeping silent-default behavior
// for tunables (timeouts, intervals).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/karnotxyz/madara-orchestrator/internal/logger"
)

// Discovery holds each worker's independently configurable tick interval.
type Discovery struct {
	SnosInterval              time.Duration
	ProvingInterval           time.Duration
	DataSubmissionInterval    time.Duration
	ProofRegistrationInterval time.Duration
	UpdateStateInterval       time.Duration
	SkipProofRegistration     bool
}

// RetryPolicy holds the attempt caps and verification polling delay that
// cmd/orchestrator passes to every handler's constructor. One policy
// applies to all job types; there is no per-type override.
type RetryPolicy struct {
	MaxProcessAttempts              int
	MaxVerificationAttempts         int
	VerificationPollingDelaySeconds int
}

type Config struct {
	PostgresDSN            string
	RedisAddr              string
	ChainRPCURL            string
	SettlementContractAddr string
	BlobBucketName         string
	HTTPPort               int
	LogMode                string
	OTLPEndpoint           string
	HandlerTimeout         time.Duration
	ConsumerConcurrency    int
	ConsumerPollInterval   time.Duration
	Discovery              Discovery
	DefaultRetryPolicy     RetryPolicy
}

// Load reads environment variables into a Config, failing fast when a
// required setting is absent.
func Load(log *logger.Logger) (Config, error) {
	dsn := getEnv("POSTGRES_DSN", "", log)
	if dsn == "" {
		return Config{}, fmt.Errorf("config: required environment variable POSTGRES_DSN is not set")
	}
	redisAddr := getEnv("REDIS_ADDR", "", log)
	if redisAddr == "" {
		return Config{}, fmt.Errorf("config: required environment variable REDIS_ADDR is not set")
	}
	chainRPCURL := getEnv("CHAIN_RPC_URL", "", log)
	if chainRPCURL == "" {
		return Config{}, fmt.Errorf("config: required environment variable CHAIN_RPC_URL is not set")
	}

	return Config{
		PostgresDSN:            dsn,
		RedisAddr:              redisAddr,
		ChainRPCURL:            chainRPCURL,
		SettlementContractAddr: getEnv("SETTLEMENT_CONTRACT_ADDRESS", "", log),
		BlobBucketName:         getEnv("BLOB_BUCKET_NAME", "madara-orchestrator-blobs", log),
		HTTPPort:               getEnvAsInt("HTTP_PORT", 8080, log),
		LogMode:                getEnv("LOG_MODE", "dev", log),
		OTLPEndpoint:           getEnv("OTLP_ENDPOINT", "", log),
		HandlerTimeout:         time.Duration(getEnvAsInt("HANDLER_TIMEOUT_SECONDS", 120, log)) * time.Second,
		ConsumerConcurrency:    getEnvAsInt("CONSUMER_CONCURRENCY", 4, log),
		ConsumerPollInterval:   time.Duration(getEnvAsInt("CONSUMER_POLL_INTERVAL_MS", 500, log)) * time.Millisecond,
		Discovery: Discovery{
			SnosInterval:              time.Duration(getEnvAsInt("DISCOVERY_SNOS_INTERVAL_SECONDS", 10, log)) * time.Second,
			ProvingInterval:           time.Duration(getEnvAsInt("DISCOVERY_PROVING_INTERVAL_SECONDS", 10, log)) * time.Second,
			DataSubmissionInterval:    time.Duration(getEnvAsInt("DISCOVERY_DATA_SUBMISSION_INTERVAL_SECONDS", 10, log)) * time.Second,
			ProofRegistrationInterval: time.Duration(getEnvAsInt("DISCOVERY_PROOF_REGISTRATION_INTERVAL_SECONDS", 10, log)) * time.Second,
			UpdateStateInterval:       time.Duration(getEnvAsInt("DISCOVERY_UPDATE_STATE_INTERVAL_SECONDS", 15, log)) * time.Second,
			SkipProofRegistration:     getEnvAsBool("DISCOVERY_SKIP_PROOF_REGISTRATION", false, log),
		},
		DefaultRetryPolicy: RetryPolicy{
			MaxProcessAttempts:              getEnvAsInt("DEFAULT_MAX_PROCESS_ATTEMPTS", 5, log),
			MaxVerificationAttempts:         getEnvAsInt("DEFAULT_MAX_VERIFICATION_ATTEMPTS", 10, log),
			VerificationPollingDelaySeconds: getEnvAsInt("DEFAULT_VERIFICATION_POLLING_DELAY_SECONDS", 5, log),
		},
	}, nil
}

func getEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(valStr)
	if err != nil {
		if log != nil {
			log.Debug("environment variable could not be parsed as int, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return n
}

func getEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		if log != nil {
			log.Debug("environment variable could not be parsed as bool, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return b
}
