// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"verification/registry"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Chaincode configures the chaincode process. When Address is set the chaincode runs as
// an external service listening there; otherwise the peer launches it.
type Chaincode struct {
	CCID         string `env:"CHAINCODE_ID"`
	Address      string `env:"CHAINCODE_SERVER_ADDRESS"`
	ProgramID    string `env:"REGISTRY_PROGRAM_ID"`
	TLSDisabled  bool   `env:"CHAINCODE_TLS_DISABLED" envDefault:"true"`
	TLSKeyFile   string `env:"CHAINCODE_TLS_KEY_FILE"`
	TLSCertFile  string `env:"CHAINCODE_TLS_CERT_FILE"`
	ClientCAFile string `env:"CHAINCODE_CLIENT_CA_CERT_FILE"`
}

// RunAsServer reports whether the chaincode should serve on Address.
func (c Chaincode) RunAsServer() bool {
	return c.Address != ""
}

// Validate checks the settings needed for the selected run mode.
func (c Chaincode) Validate() error {
	if !c.RunAsServer() {
		return nil
	}
	if c.CCID == "" {
		return fmt.Errorf("CHAINCODE_ID is required when CHAINCODE_SERVER_ADDRESS is set")
	}
	if !c.TLSDisabled && (c.TLSKeyFile == "" || c.TLSCertFile == "") {
		return fmt.Errorf("CHAINCODE_TLS_KEY_FILE and CHAINCODE_TLS_CERT_FILE are required when TLS is enabled")
	}
	return nil
}

// TLSMaterial holds PEM bytes read from the configured TLS files.
type TLSMaterial struct {
	Key           []byte
	Cert          []byte
	ClientCACerts []byte
}

// LoadTLS reads the TLS files. It returns nil when TLS is disabled.
func (c Chaincode) LoadTLS() (*TLSMaterial, error) {
	if c.TLSDisabled {
		return nil, nil
	}
	key, err := os.ReadFile(c.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read TLS key: %w", err)
	}
	cert, err := os.ReadFile(c.TLSCertFile)
	if err != nil {
		return nil, fmt.Errorf("read TLS cert: %w", err)
	}
	m := &TLSMaterial{Key: key, Cert: cert}
	if c.ClientCAFile != "" {
		if m.ClientCACerts, err = os.ReadFile(c.ClientCAFile); err != nil {
			return nil, fmt.Errorf("read client CA cert: %w", err)
		}
	}
	return m, nil
}

// Store backends selectable for the simulator.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Simulator configures the local scenario runner.
type Simulator struct {
	Store       string `env:"REGISTRY_STORE" envDefault:"memory"`
	SQLitePath  string `env:"REGISTRY_SQLITE_PATH" envDefault:"registry.db"`
	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"REGISTRY_REDIS_PREFIX"`
	PostgresURL string `env:"DATABASE_URL"`
	ProgramID   string `env:"REGISTRY_PROGRAM_ID"`
	Scenario    string `env:"REGISTRY_SCENARIO_FILE"`
}

// Validate checks that the selected store has what it needs.
func (s Simulator) Validate() error {
	switch strings.ToLower(s.Store) {
	case StoreMemory:
	case StoreSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("REGISTRY_SQLITE_PATH is required for the sqlite store")
		}
	case StoreRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if s.PostgresURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store '%s' (want memory, sqlite, redis or postgres)", s.Store)
	}
	return nil
}

// ProgramID parses a base58 program ID, falling back to registry.DefaultProgramID.
func ProgramID(value string) (registry.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return registry.DefaultProgramID, nil
	}
	id, err := registry.ParseAddress(value)
	if err != nil {
		return registry.ZeroAddress, fmt.Errorf("REGISTRY_PROGRAM_ID: %w", err)
	}
	return id, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
