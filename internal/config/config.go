package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultRPCTimeout = 10 * time.Second
	defaultGasLimit   = 2_000_000
)

// Config holds the YAML configuration.
type Config struct {
	Version      int          `yaml:"version"`
	Global       GlobalConfig `yaml:"global"`
	ContractInfo string       `yaml:"contract_info"`
	Chains       Chains       `yaml:"chains"`
	Keys         []Key        `yaml:"keys"`
	Sinks        []Sink       `yaml:"sinks"`

	// dir is the directory of the loaded file; relative paths resolve against it.
	dir string
}

type GlobalConfig struct {
	DBPath            string `yaml:"db_path"`
	WindowSize        uint64 `yaml:"window_size"`
	RPCTimeout        string `yaml:"rpc_timeout"`
	MaxActionsPerPass int    `yaml:"max_actions_per_pass"`
	AuditLog          string `yaml:"audit_log"`
}

type Chains struct {
	Source      Chain `yaml:"source"`
	Destination Chain `yaml:"destination"`
}

type Chain struct {
	RPCURL        string   `yaml:"rpc_url"`
	ChainID       uint64   `yaml:"chain_id"`
	Confirmations uint64   `yaml:"confirmations"`
	StartBlock    string   `yaml:"start_block"`
	GasLimit      uint64   `yaml:"gas_limit"`
	MaxGasPrice   string   `yaml:"max_gas_price"`
	SignerKeyID   string   `yaml:"signer_key_id"`
	Events        []string `yaml:"events"`
	Where         []string `yaml:"where"`
}

type Key struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Dir      string `yaml:"dir"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

type Sink struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	URL        string `yaml:"url"`
	Method     string `yaml:"method"`
}

var defaultEvents = map[bridge.Role][]string{
	bridge.Source:      {"Deposit"},
	bridge.Destination: {"Unwrap"},
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, applies defaults, and validates.
// Every failure is a config error.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, bridge.ConfigErrorf("%v", err)
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.dir = filepath.Dir(path)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

func (c *Config) applyDefaults() {
	if c.Global.WindowSize == 0 {
		c.Global.WindowSize = bridge.DefaultWindowSize
	}
	if c.Global.DBPath == "" {
		c.Global.DBPath = "warden.db"
	}
	for _, role := range bridge.Roles {
		ch := c.Chain(role)
		if ch.GasLimit == 0 {
			ch.GasLimit = defaultGasLimit
		}
		if len(ch.Events) == 0 {
			ch.Events = append([]string(nil), defaultEvents[role]...)
		}
	}
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if c.ContractInfo == "" {
		return errors.New("contract_info is required")
	}
	if c.Global.MaxActionsPerPass < 0 {
		return errors.New("global.max_actions_per_pass must be >= 0")
	}
	if _, err := c.RPCTimeout(); err != nil {
		return err
	}

	keyIDs := map[string]struct{}{}
	for i := range c.Keys {
		k := &c.Keys[i]
		if _, exists := keyIDs[k.ID]; exists {
			return fmt.Errorf("duplicate key id: %s", k.ID)
		}
		keyIDs[k.ID] = struct{}{}
		if err := k.Validate(); err != nil {
			return fmt.Errorf("key %s: %w", k.ID, err)
		}
	}

	for _, role := range bridge.Roles {
		if err := c.Chain(role).Validate(keyIDs); err != nil {
			return fmt.Errorf("chains.%s: %w", role, err)
		}
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}

	return nil
}

// Chain returns the chain section for role.
func (c *Config) Chain(role bridge.Role) *Chain {
	if role == bridge.Destination {
		return &c.Chains.Destination
	}
	return &c.Chains.Source
}

// RPCTimeout parses global.rpc_timeout, defaulting to 10s.
func (c *Config) RPCTimeout() (time.Duration, error) {
	if c.Global.RPCTimeout == "" {
		return defaultRPCTimeout, nil
	}
	d, err := time.ParseDuration(c.Global.RPCTimeout)
	if err != nil {
		return 0, fmt.Errorf("global.rpc_timeout: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("global.rpc_timeout must be positive")
	}
	return d, nil
}

// Resolve makes a config-relative path absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

func (ch *Chain) Validate(keyIDs map[string]struct{}) error {
	if ch.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if ch.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	if ch.SignerKeyID == "" {
		return errors.New("signer_key_id is required")
	}
	if _, ok := keyIDs[ch.SignerKeyID]; !ok {
		return fmt.Errorf("unknown signer_key_id: %s", ch.SignerKeyID)
	}
	if _, err := ch.GasPriceCeiling(); err != nil {
		return err
	}
	for _, ev := range ch.Events {
		if strings.TrimSpace(ev) == "" {
			return errors.New("events must not contain empty names")
		}
	}
	return nil
}

// GasPriceCeiling parses max_gas_price in wei; nil means no ceiling.
func (ch *Chain) GasPriceCeiling() (*big.Int, error) {
	if ch.MaxGasPrice == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(ch.MaxGasPrice, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("max_gas_price %q must be a positive integer in wei", ch.MaxGasPrice)
	}
	return v, nil
}

func (k *Key) Validate() error {
	if k.ID == "" {
		return errors.New("id is required")
	}
	switch strings.ToLower(k.Type) {
	case "key_file":
		if k.Path == "" {
			return errors.New("path is required for key_file keys")
		}
	case "keystore":
		if k.Dir == "" || k.Address == "" {
			return errors.New("dir and address are required for keystore keys")
		}
	default:
		return fmt.Errorf("unsupported key type: %s", k.Type)
	}
	return nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch strings.ToLower(s.Type) {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
