package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Asset     string          `yaml:"asset"`
	RateModel RateModelConfig `yaml:"rate_model"`
	Upkeep    UpkeepConfig    `yaml:"upkeep"`
	Reserve   ReserveConfig   `yaml:"reserve"`
	Schedule  struct {
		CheckCron  string `yaml:"check_cron"`
		ReportCron string `yaml:"report_cron"`
	} `yaml:"schedule"`
	State struct {
		File string `yaml:"file"`
	} `yaml:"state"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Admin struct {
		Listen string `yaml:"listen"`
	} `yaml:"admin"`
	Log struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// RateModelConfig holds the curve. Ray values are decimal strings. The
// multipliers are pointers so an explicit 0 is kept.
type RateModelConfig struct {
	Configurator                  string  `yaml:"configurator"`
	OptimalUsageRatio             string  `yaml:"optimal_usage_ratio"`
	BaseVariableBorrowRate        string  `yaml:"base_variable_borrow_rate"`
	VariableRateSlope1            string  `yaml:"variable_rate_slope1"`
	VariableRateSlope2            string  `yaml:"variable_rate_slope2"`
	StableRateSlope1              string  `yaml:"stable_rate_slope1"`
	StableRateSlope2              string  `yaml:"stable_rate_slope2"`
	BaseStableRateOffset          string  `yaml:"base_stable_rate_offset"`
	StableRateExcessOffset        string  `yaml:"stable_rate_excess_offset"`
	OptimalStableToTotalDebtRatio string  `yaml:"optimal_stable_to_total_debt_ratio"`
	Epsilon                       string  `yaml:"epsilon"`
	MPlus                         *uint64 `yaml:"m_plus"`
	MMinus                        *uint64 `yaml:"m_minus"`
	ReserveFactor                 uint64  `yaml:"reserve_factor"` // bps, reporting only
}

// UpkeepConfig configures the controller. InitialHistory wins over
// InitialUtilization when both are set.
type UpkeepConfig struct {
	Address            string        `yaml:"address"`
	Interval           time.Duration `yaml:"interval"`
	WindowSize         int           `yaml:"window_size"`
	InitialHistory     []string      `yaml:"initial_history"`
	InitialUtilization string        `yaml:"initial_utilization"`
}

// ReserveConfig selects where reserve totals are read from.
type ReserveConfig struct {
	Source            string  `yaml:"source"` // static | http | evm
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RPCURL            string  `yaml:"rpc_url"`
	LiquidityToken    string  `yaml:"liquidity_token"`
	VariableDebtToken string  `yaml:"variable_debt_token"`
	StableDebtToken   string  `yaml:"stable_debt_token"`
	StaticSupply      string  `yaml:"static_supply"`
	StaticVariable    string  `yaml:"static_variable_debt"`
	StaticStable      string  `yaml:"static_stable_debt"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Load reads .env and the YAML file, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("RESERVE_SOURCE"); v != "" {
		cfg.Reserve.Source = v
	}
	if v := os.Getenv("RESERVE_BASE_URL"); v != "" {
		cfg.Reserve.BaseURL = v
	}
	if v := os.Getenv("RESERVE_API_KEY"); v != "" {
		cfg.Reserve.APIKey = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Reserve.RPCURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("UPKEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upkeep.Interval = d
		}
	}
	if v := os.Getenv("M_PLUS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RateModel.MPlus = &n
		}
	}
	if v := os.Getenv("M_MINUS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RateModel.MMinus = &n
		}
	}
	if v := os.Getenv("CRON_CHECK"); v != "" {
		cfg.Schedule.CheckCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.State.File = v
	}
	if v := os.Getenv("ADMIN_LISTEN"); v != "" {
		cfg.Admin.Listen = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Asset == "" {
		c.Asset = "WETH"
	}
	if c.RateModel.MPlus == nil {
		c.RateModel.MPlus = uint64Ptr(11_000)
	}
	if c.RateModel.MMinus == nil {
		c.RateModel.MMinus = uint64Ptr(9_000)
	}
	if c.Upkeep.Interval == 0 {
		c.Upkeep.Interval = 12 * time.Hour
	}
	if c.Upkeep.WindowSize == 0 {
		c.Upkeep.WindowSize = 60
	}
	if c.Reserve.Source == "" {
		c.Reserve.Source = "static"
	}
	if c.Reserve.RequestsPerSecond == 0 {
		c.Reserve.RequestsPerSecond = 5
	}
	if c.Schedule.CheckCron == "" {
		c.Schedule.CheckCron = "0 */5 * * * *"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 8 * * *"
	}
	if c.State.File == "" {
		c.State.File = "data/ratekeeper_state.json"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/ratekeeper.db"
	}
	if c.Admin.Listen == "" {
		c.Admin.Listen = "127.0.0.1:8089"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}
}

// Validate checks that all required fields are set and parse.
func (c *Config) Validate() error {
	if _, err := c.RateParams(); err != nil {
		return err
	}
	if !common.IsHexAddress(c.RateModel.Configurator) {
		return fmt.Errorf("rate_model.configurator must be an address")
	}
	if !common.IsHexAddress(c.Upkeep.Address) {
		return fmt.Errorf("upkeep.address must be an address")
	}
	if c.Upkeep.Interval <= 0 {
		return fmt.Errorf("upkeep.interval must be positive")
	}
	if c.Upkeep.WindowSize <= 0 {
		return fmt.Errorf("upkeep.window_size must be positive")
	}
	if _, err := c.InitialHistory(); err != nil {
		return err
	}
	switch c.Reserve.Source {
	case "static":
		for name, v := range map[string]string{
			"reserve.static_supply":        c.Reserve.StaticSupply,
			"reserve.static_variable_debt": c.Reserve.StaticVariable,
			"reserve.static_stable_debt":   c.Reserve.StaticStable,
		} {
			if _, err := parseAmount(name, v); err != nil {
				return err
			}
		}
	case "http":
		if c.Reserve.BaseURL == "" {
			return fmt.Errorf("reserve.base_url is required for source http")
		}
	case "evm":
		if c.Reserve.RPCURL == "" {
			return fmt.Errorf("reserve.rpc_url is required for source evm")
		}
		for name, v := range map[string]string{
			"reserve.liquidity_token":     c.Reserve.LiquidityToken,
			"reserve.variable_debt_token": c.Reserve.VariableDebtToken,
			"reserve.stable_debt_token":   c.Reserve.StableDebtToken,
		} {
			if !common.IsHexAddress(v) {
				return fmt.Errorf("%s must be an address", name)
			}
		}
	default:
		return fmt.Errorf("reserve.source %q must be static, http or evm", c.Reserve.Source)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// RateParams parses the rate model section.
func (c *Config) RateParams() (model.RateParams, error) {
	rm := c.RateModel
	p := model.RateParams{}
	if rm.MPlus != nil {
		p.MPlus = *rm.MPlus
	}
	if rm.MMinus != nil {
		p.MMinus = *rm.MMinus
	}
	fields := []struct {
		name     string
		value    string
		required bool
		dst      **uint256.Int
	}{
		{"optimal_usage_ratio", rm.OptimalUsageRatio, true, &p.OptimalUsageRatio},
		{"base_variable_borrow_rate", rm.BaseVariableBorrowRate, false, &p.BaseVariableBorrowRate},
		{"variable_rate_slope1", rm.VariableRateSlope1, true, &p.VariableRateSlope1},
		{"variable_rate_slope2", rm.VariableRateSlope2, false, &p.VariableRateSlope2},
		{"stable_rate_slope1", rm.StableRateSlope1, false, &p.StableRateSlope1},
		{"stable_rate_slope2", rm.StableRateSlope2, false, &p.StableRateSlope2},
		{"base_stable_rate_offset", rm.BaseStableRateOffset, false, &p.BaseStableRateOffset},
		{"stable_rate_excess_offset", rm.StableRateExcessOffset, false, &p.StableRateExcessOffset},
		{"optimal_stable_to_total_debt_ratio", rm.OptimalStableToTotalDebtRatio, false, &p.OptimalStableToTotalDebtRatio},
		{"epsilon", rm.Epsilon, true, &p.Epsilon},
	}
	for _, f := range fields {
		if f.value == "" {
			if f.required {
				return model.RateParams{}, fmt.Errorf("rate_model.%s is required", f.name)
			}
			*f.dst = new(uint256.Int)
			continue
		}
		v, err := calculator.ParseRay(f.value)
		if err != nil {
			return model.RateParams{}, fmt.Errorf("rate_model.%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

// InitialHistory returns the window seed.
func (c *Config) InitialHistory() ([]*uint256.Int, error) {
	if len(c.Upkeep.InitialHistory) > 0 {
		if len(c.Upkeep.InitialHistory) != c.Upkeep.WindowSize {
			return nil, fmt.Errorf("upkeep.initial_history has %d samples, want %d", len(c.Upkeep.InitialHistory), c.Upkeep.WindowSize)
		}
		out := make([]*uint256.Int, len(c.Upkeep.InitialHistory))
		for i, s := range c.Upkeep.InitialHistory {
			v, err := calculator.ParseRay(s)
			if err != nil {
				return nil, fmt.Errorf("upkeep.initial_history[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	if c.Upkeep.InitialUtilization == "" {
		return nil, fmt.Errorf("upkeep.initial_history or upkeep.initial_utilization is required")
	}
	v, err := calculator.ParseRay(c.Upkeep.InitialUtilization)
	if err != nil {
		return nil, fmt.Errorf("upkeep.initial_utilization: %w", err)
	}
	out := make([]*uint256.Int, c.Upkeep.WindowSize)
	for i := range out {
		out[i] = v.Clone()
	}
	return out, nil
}

// StaticAmounts parses the static reserve totals.
func (c *Config) StaticAmounts() (supply, variableDebt, stableDebt *uint256.Int, err error) {
	if supply, err = parseAmount("reserve.static_supply", c.Reserve.StaticSupply); err != nil {
		return
	}
	if variableDebt, err = parseAmount("reserve.static_variable_debt", c.Reserve.StaticVariable); err != nil {
		return
	}
	stableDebt, err = parseAmount("reserve.static_stable_debt", c.Reserve.StaticStable)
	return
}

func parseAmount(name, v string) (*uint256.Int, error) {
	if strings.TrimSpace(v) == "" {
		return new(uint256.Int), nil
	}
	n, err := calculator.ParseRay(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func uint64Ptr(v uint64) *uint64 { return &v }
