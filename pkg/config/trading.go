package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tradectl/internal/cooldown"
	"tradectl/internal/risk"
)

// tradingFile is the top-level YAML structure of the trading parameters file.
// Durations are written as Go duration strings ("30m", "1h15m").
type tradingFile struct {
	Risk struct {
		PositionFraction    float64 `yaml:"position_fraction"`
		MaxRiskPerTrade     float64 `yaml:"max_risk_per_trade"`
		MaxTotalExposure    float64 `yaml:"max_total_exposure"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"risk"`
	Cooldowns struct {
		Buy              string `yaml:"buy"`
		Sell             string `yaml:"sell"`
		Hold             string `yaml:"hold"`
		MinTradeInterval string `yaml:"min_trade_interval"`
		MaxSellsPerHour  int    `yaml:"max_sells_per_hour"`
	} `yaml:"cooldowns"`
}

// TradingParams bundles the tunable risk and cooldown parameters.
type TradingParams struct {
	Risk      risk.Config
	Cooldowns cooldown.Config
}

// DefaultTradingParams returns the built-in parameter set.
func DefaultTradingParams() TradingParams {
	return TradingParams{
		Risk:      risk.DefaultConfig(),
		Cooldowns: cooldown.DefaultConfig(),
	}
}

// LoadTradingParams reads risk and cooldown parameters from a YAML file.
// A missing file falls back to defaults; a malformed file is an error.
func LoadTradingParams(path string) (TradingParams, error) {
	params := DefaultTradingParams()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return params, nil
	}
	if err != nil {
		return params, fmt.Errorf("read trading config: %w", err)
	}

	var file tradingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return params, fmt.Errorf("parse trading config: %w", err)
	}

	if v := file.Risk.PositionFraction; v > 0 {
		params.Risk.PositionFraction = v
	}
	if v := file.Risk.MaxRiskPerTrade; v > 0 {
		params.Risk.MaxRiskPerTrade = v
	}
	if v := file.Risk.MaxTotalExposure; v > 0 {
		params.Risk.MaxTotalExposure = v
	}
	if v := file.Risk.ConfidenceThreshold; v > 0 {
		params.Risk.ConfidenceThreshold = v
	}

	if err := setDuration(&params.Cooldowns.BuyCooldown, file.Cooldowns.Buy); err != nil {
		return params, fmt.Errorf("cooldowns.buy: %w", err)
	}
	if err := setDuration(&params.Cooldowns.SellCooldown, file.Cooldowns.Sell); err != nil {
		return params, fmt.Errorf("cooldowns.sell: %w", err)
	}
	if err := setDuration(&params.Cooldowns.HoldCooldown, file.Cooldowns.Hold); err != nil {
		return params, fmt.Errorf("cooldowns.hold: %w", err)
	}
	if err := setDuration(&params.Cooldowns.MinTradeInterval, file.Cooldowns.MinTradeInterval); err != nil {
		return params, fmt.Errorf("cooldowns.min_trade_interval: %w", err)
	}
	if file.Cooldowns.MaxSellsPerHour > 0 {
		params.Cooldowns.MaxSellsPerHour = file.Cooldowns.MaxSellsPerHour
	}

	return params, nil
}

func setDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
