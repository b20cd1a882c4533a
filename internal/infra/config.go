package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mango_go/internal/domain"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultDexProgramID is the Serum DEX v3 program on mainnet.
	DefaultDexProgramID = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
)

// TokenConfig describes one token of the group.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Mint     string `yaml:"mint"`
	Decimals int32  `yaml:"decimals"`
	LogoURI  string `yaml:"logo_uri"`
}

// SpotMarketConfig references a spot market by its token symbols.
type SpotMarketConfig struct {
	Base    string `yaml:"base"`
	Quote   string `yaml:"quote"`
	Address string `yaml:"address"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Solana struct {
		RPCURL       string `yaml:"rpc_url"`
		WSURL        string `yaml:"ws_url"`
		Commitment   string `yaml:"commitment"`
		DexProgramID string `yaml:"dex_program_id"`
		TimeoutSec   int    `yaml:"timeout_sec"`
		MaxRetries   int    `yaml:"max_retries"`
	} `yaml:"solana"`

	Group struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
	} `yaml:"group"`

	Tokens      []TokenConfig      `yaml:"tokens"`
	SpotMarkets []SpotMarketConfig `yaml:"spot_markets"`

	Processor struct {
		Consumer       string `yaml:"consumer"`
		PollIntervalMS int    `yaml:"poll_interval_ms"`
	} `yaml:"processor"`

	Storage struct {
		Path    string `yaml:"path"`
		IconDir string `yaml:"icon_dir"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML bytes, applies defaults and environment
// overrides, then validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Field: "yaml", Err: err}
	}

	applyDefaults(&cfg)
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Solana.DexProgramID == "" {
		cfg.Solana.DexProgramID = DefaultDexProgramID
	}
	if cfg.Solana.Commitment == "" {
		cfg.Solana.Commitment = "confirmed"
	}
	if cfg.Solana.TimeoutSec <= 0 {
		cfg.Solana.TimeoutSec = 10
	}
	if cfg.Solana.MaxRetries < 0 {
		cfg.Solana.MaxRetries = 0
	}
	if cfg.Processor.Consumer == "" {
		cfg.Processor.Consumer = "default"
	}
	if cfg.Processor.PollIntervalMS <= 0 {
		cfg.Processor.PollIntervalMS = 2000
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Solana.RPCURL, "http://") && !strings.HasPrefix(c.Solana.RPCURL, "https://") {
		return &domain.ConfigError{Field: "solana.rpc_url", Err: fmt.Errorf("invalid RPC URL: %q", c.Solana.RPCURL)}
	}
	if c.Solana.WSURL != "" && !strings.HasPrefix(c.Solana.WSURL, "ws://") && !strings.HasPrefix(c.Solana.WSURL, "wss://") {
		return &domain.ConfigError{Field: "solana.ws_url", Err: fmt.Errorf("invalid WS URL: %q", c.Solana.WSURL)}
	}
	if _, err := solana.PublicKeyFromBase58(c.Solana.DexProgramID); err != nil {
		return &domain.ConfigError{Field: "solana.dex_program_id", Err: err}
	}
	if c.Group.Address != "" {
		if _, err := solana.PublicKeyFromBase58(c.Group.Address); err != nil {
			return &domain.ConfigError{Field: "group.address", Err: err}
		}
	}

	symbols := make(map[string]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		field := fmt.Sprintf("tokens[%d]", i)
		if t.Symbol == "" {
			return &domain.ConfigError{Field: field, Err: errors.New("symbol is required")}
		}
		if symbols[t.Symbol] {
			return &domain.ConfigError{Field: field, Err: errors.New("duplicate symbol " + t.Symbol)}
		}
		symbols[t.Symbol] = true
		if t.Decimals < 0 || t.Decimals > 18 {
			return &domain.ConfigError{Field: field, Err: fmt.Errorf("decimals out of range: %d", t.Decimals)}
		}
		if t.Mint != "" {
			if _, err := solana.PublicKeyFromBase58(t.Mint); err != nil {
				return &domain.ConfigError{Field: field + ".mint", Err: err}
			}
		}
	}

	if len(c.SpotMarkets) == 0 {
		return &domain.ConfigError{Field: "spot_markets", Err: errors.New("at least one spot market is required")}
	}
	for i, m := range c.SpotMarkets {
		field := fmt.Sprintf("spot_markets[%d]", i)
		if !symbols[m.Base] {
			return &domain.ConfigError{Field: field, Err: errors.New("unknown base token " + m.Base)}
		}
		if !symbols[m.Quote] {
			return &domain.ConfigError{Field: field, Err: errors.New("unknown quote token " + m.Quote)}
		}
		if _, err := solana.PublicKeyFromBase58(m.Address); err != nil {
			return &domain.ConfigError{Field: field + ".address", Err: err}
		}
	}

	return nil
}

// Token returns the configured token with the given symbol.
func (c *Config) Token(symbol string) (TokenConfig, bool) {
	for _, t := range c.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return TokenConfig{}, false
}

// RequestTimeout returns the per-request RPC timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Solana.TimeoutSec) * time.Second
}

// PollInterval returns the event processor poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Processor.PollIntervalMS) * time.Millisecond
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MANGO_RPC_URL"); url != "" {
		cfg.Solana.RPCURL = url
	}
	if url := os.Getenv("MANGO_WS_URL"); url != "" {
		cfg.Solana.WSURL = url
	}
	if id := os.Getenv("MANGO_DEX_PROGRAM_ID"); id != "" {
		cfg.Solana.DexProgramID = id
	}
}
