// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads a pool deployment from a config file, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/pairpool/pool"
	"github.com/luxfi/pairpool/swapmath"
	"github.com/luxfi/pairpool/token"
)

// Token kinds
const (
	KindFungible = "fungible"
	KindWrapped  = "wrapped"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidLevel   = errors.New("invalid log level")
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Pool        Pool
	Tokens      []Token
	Genesis     []Allocation
	LogLevel    string
	MetricsAddr string
}

// Pool is the textual form of pool.Config
type Pool struct {
	Address        string
	TokenA         string
	TokenB         string
	LPFeeBps       uint64
	ProtocolFeeBps uint64
	FeeReceiver    string
	WrappedNative  string
}

// Token deploys a fungible or wrapped native token
type Token struct {
	Address string `mapstructure:"address"`
	Name    string `mapstructure:"name"`
	Kind    string `mapstructure:"kind"`
	TaxBps  uint64 `mapstructure:"tax-bps"`
}

// Allocation credits Holder with Amount of Token before the first call.
// Token may be the zero address for native currency.
type Allocation struct {
	Token  string `mapstructure:"token"`
	Holder string `mapstructure:"holder"`
	Amount string `mapstructure:"amount"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAIRPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("pool.address", "0x0000000000000000000000000000000000009010")
	v.SetDefault("pool.lp-fee-bps", uint64(30))
	v.SetDefault("pool.protocol-fee-bps", uint64(0))
	v.SetDefault("log-level", "info")
	v.SetDefault("metrics-addr", "")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("pairpool")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Pool: Pool{
			Address:        v.GetString("pool.address"),
			TokenA:         v.GetString("pool.token-a"),
			TokenB:         v.GetString("pool.token-b"),
			LPFeeBps:       v.GetUint64("pool.lp-fee-bps"),
			ProtocolFeeBps: v.GetUint64("pool.protocol-fee-bps"),
			FeeReceiver:    v.GetString("pool.fee-receiver"),
			WrappedNative:  v.GetString("pool.wrapped-native"),
		},
		LogLevel:    v.GetString("log-level"),
		MetricsAddr: v.GetString("metrics-addr"),
	}
	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return Config{}, fmt.Errorf("decode tokens: %w", err)
	}
	if err := v.UnmarshalKey("genesis", &cfg.Genesis); err != nil {
		return Config{}, fmt.Errorf("decode genesis: %w", err)
	}
	return cfg, nil
}

// Validate checks every address and amount and the pool constructor rules
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.LogLevel)
	}

	pc, err := c.PoolConfig()
	if err != nil {
		return err
	}
	if err := pc.Validate(); err != nil {
		return err
	}

	known := map[common.Address]bool{token.Native: true}
	for i, t := range c.Tokens {
		addr, err := ParseAddress(t.Address)
		if err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		if token.IsNative(addr) {
			return fmt.Errorf("%w: tokens[%d] uses the native address", ErrInvalidToken, i)
		}
		switch t.Kind {
		case "", KindFungible:
		case KindWrapped:
			if t.TaxBps != 0 {
				return fmt.Errorf("%w: tokens[%d] wrapped token cannot be taxed", ErrInvalidToken, i)
			}
		default:
			return fmt.Errorf("%w: tokens[%d] kind %q", ErrInvalidToken, i, t.Kind)
		}
		if t.TaxBps >= swapmath.BpsDenominator {
			return fmt.Errorf("%w: tokens[%d] tax %d bps", ErrInvalidToken, i, t.TaxBps)
		}
		known[addr] = true
	}
	for _, side := range []common.Address{pc.TokenA, pc.TokenB} {
		if !known[side] {
			return fmt.Errorf("%w: pool side %s is not configured", ErrInvalidToken, side.Hex())
		}
	}

	for i, a := range c.Genesis {
		tok, err := ParseAddress(a.Token)
		if err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if !known[tok] {
			return fmt.Errorf("%w: genesis[%d] token %s is not configured", ErrInvalidToken, i, tok.Hex())
		}
		if _, err := ParseAddress(a.Holder); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, err := ParseAmount(a.Amount); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}
	return nil
}

// PoolConfig parses the pool section
func (c Config) PoolConfig() (pool.Config, error) {
	var (
		pc  pool.Config
		err error
	)
	fields := []struct {
		name     string
		value    string
		dst      *common.Address
		optional bool
	}{
		{"pool.address", c.Pool.Address, &pc.Address, false},
		{"pool.token-a", c.Pool.TokenA, &pc.TokenA, false},
		{"pool.token-b", c.Pool.TokenB, &pc.TokenB, false},
		{"pool.fee-receiver", c.Pool.FeeReceiver, &pc.FeeReceiver, true},
		{"pool.wrapped-native", c.Pool.WrappedNative, &pc.WrappedNative, true},
	}
	for _, f := range fields {
		if f.value == "" && f.optional {
			continue
		}
		if *f.dst, err = ParseAddress(f.value); err != nil {
			return pool.Config{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	pc.LPFeeBps = c.Pool.LPFeeBps
	pc.ProtocolFeeBps = c.Pool.ProtocolFeeBps
	return pc, nil
}

// ParseAddress parses a 0x-prefixed hex address
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a decimal or 0x-prefixed hex amount
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(uint256.Int), nil
	}
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") {
		v, err = uint256.FromHex(s)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return v, nil
}
