// Package gwconfig loads the gateway's file and environment configuration:
// gateway.yml for trading parameters, and environment variables for
// connection settings.
package gwconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fincubator/bitshares-gateway/internal/store"
)

// File is the gateway.yml schema.
type File struct {
	CoreAsset              string   `yaml:"core_asset"`
	GatewayPrefix          string   `yaml:"gateway_prefix"`
	GatewayDistributeAsset string   `yaml:"gateway_distribute_asset"`
	Account                string   `yaml:"account"`
	Nodes                  []string `yaml:"nodes"`
	MinDeposit             string   `yaml:"min_deposit"`
	MinWithdrawal          string   `yaml:"min_withdrawal"`
	MaxDeposit             string   `yaml:"max_deposit"`
	MaxWithdrawal          string   `yaml:"max_withdrawal"`
}

// LoadFile reads and parses gateway.yml from path.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gwconfig: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("gwconfig: parse %s: %w", path, err)
	}
	return &f, nil
}

// Save writes f back to path, preserving key order and comments is not
// attempted — gateway.yml is machine-owned configuration, not a hand-edited
// document the daemon must round-trip byte-for-byte.
func (f *File) Save(path string) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("gwconfig: marshal: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// Env is the environment-only connection configuration. The supervisor accepts no flags.
type Env struct {
	Database store.Config

	HTTPHost string
	HTTPPort string

	BookerHost string
	BookerPort string

	ZMQProto string
	ZMQHost  string
	ZMQPort  string
}

// LoadEnv reads Env from the process environment, applying the defaults a
// local development run needs.
func LoadEnv() Env {
	return Env{
		Database: store.Config{
			Driver:   store.Driver(getenv("DATABASE_DRIVER", "sqlite")),
			Host:     getenv("DATABASE_HOST", "localhost"),
			Port:     getenv("DATABASE_PORT", "5432"),
			Username: getenv("DATABASE_USERNAME", "gateway"),
			Password: getenv("DATABASE_PASSWORD", ""),
			Name:     getenv("DATABASE_NAME", "gateway.db"),
		},
		HTTPHost:   getenv("HTTP_HOST", "127.0.0.1"),
		HTTPPort:   getenv("HTTP_PORT", "8000"),
		BookerHost: getenv("BOOKER_HOST", "127.0.0.1"),
		BookerPort: getenv("BOOKER_PORT", "8001"),
		ZMQProto:   getenv("ZMQ_PROTO", "tcp"),
		ZMQHost:    getenv("ZMQ_HOST", "127.0.0.1"),
		ZMQPort:    getenv("ZMQ_PORT", "5556"),
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// ZMQAddr formats the ZeroMQ bind/connect address from its three parts.
func (e Env) ZMQAddr() string {
	return fmt.Sprintf("%s://%s:%s", e.ZMQProto, e.ZMQHost, e.ZMQPort)
}

// HTTPAddr formats the health endpoint bind address.
func (e Env) HTTPAddr() string { return e.HTTPHost + ":" + e.HTTPPort }

// BookerWSURL formats the booker websocket endpoint URL.
func (e Env) BookerWSURL() string {
	return fmt.Sprintf("ws://%s:%s/gateway", e.BookerHost, e.BookerPort)
}

// Thresholds decodes the file's decimal amount bounds.
func (f *File) Thresholds() (minDeposit, maxDeposit, minWithdrawal, maxWithdrawal decimal.Decimal, err error) {
	parse := func(field, s string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("gwconfig: %s=%q: %w", field, s, err)
		}
		return d, nil
	}
	if minDeposit, err = parse("min_deposit", f.MinDeposit); err != nil {
		return
	}
	if maxDeposit, err = parse("max_deposit", f.MaxDeposit); err != nil {
		return
	}
	if minWithdrawal, err = parse("min_withdrawal", f.MinWithdrawal); err != nil {
		return
	}
	if maxWithdrawal, err = parse("max_withdrawal", f.MaxWithdrawal); err != nil {
		return
	}
	return
}

// AssetCode derives the memo-mask short code from an asset symbol of the
// form "<PREFIX>.<CODE>" (e.g. "FINTEHTEST.ETH" -> "ETH"); if there is no
// dot the whole symbol is the code.
func AssetCode(asset string) string {
	for i := len(asset) - 1; i >= 0; i-- {
		if asset[i] == '.' {
			return asset[i+1:]
		}
	}
	return asset
}

// RequiredConfirmations is a gateway-operational constant kept outside
// gateway.yml, overridable via CONFIRMER_REQUIRED_CONFIRMATIONS for test
// environments that cannot wait out a chain's normal depth.
func RequiredConfirmations() int64 {
	v := getenv("CONFIRMER_REQUIRED_CONFIRMATIONS", "5")
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 5
	}
	return n
}
