package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/evm"
	"github.com/technostore/technostore/go/node"
)

// Environment variables override the config file.
const (
	envListen     = "TECHNOSTORE_LISTEN"
	envDataDir    = "TECHNOSTORE_DATA_DIR"
	envLogLevel   = "TECHNOSTORE_LOG_LEVEL"
	envOwner      = "TECHNOSTORE_OWNER"
	envMCP        = "TECHNOSTORE_MCP"
	envURL        = "TECHNOSTORE_URL"
	envPrivateKey = "TECHNOSTORE_PRIVATE_KEY"
)

// hardhat account #0
const defaultOwner = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// Config is the serve configuration.
type Config struct {
	Listen   string        `yaml:"listen"`
	DataDir  string        `yaml:"data_dir"` // empty keeps state in memory
	LogLevel string        `yaml:"log_level"`
	MCP      MCPConfig     `yaml:"mcp"`
	Genesis  GenesisConfig `yaml:"genesis"`
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GenesisConfig seeds a fresh ledger. It is ignored when DataDir holds state.
type GenesisConfig struct {
	Owner        string                   `yaml:"owner"`
	StoreAddress string                   `yaml:"store_address"`
	Token        TokenConfig              `yaml:"token"`
	Balances     map[string]string        `yaml:"balances"`
	Policy       technostore.RefundPolicy `yaml:"policy"`
}

// TokenConfig describes the payment token.
type TokenConfig struct {
	Name    string `yaml:"name"`
	Symbol  string `yaml:"symbol"`
	Version string `yaml:"version"`
	Network string `yaml:"network"`  // hardhat or sepolia
	ChainID int64  `yaml:"chain_id"` // overrides network when set
	Address string `yaml:"address"`
}

// defaultConfig serves a dev ledger on the hardhat identities.
func defaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8545",
		LogLevel: "info",
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Genesis: GenesisConfig{
			Owner:        defaultOwner,
			StoreAddress: node.DefaultStoreAddress.Hex(),
			Token: TokenConfig{
				Name:    "TechnoToken",
				Symbol:  "TT",
				Version: evm.DefaultTokenVersion,
				Network: "hardhat",
				Address: node.DefaultTokenAddress.Hex(),
			},
			Policy: technostore.PolicyV1,
		},
	}
}

func defaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".technostore", "config.yaml")
}

// loadConfig reads path over the defaults, then applies environment
// overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath()
	}

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(envDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envOwner); v != "" {
		c.Genesis.Owner = v
	}
	if v := os.Getenv(envMCP); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envMCP, err)
		}
		c.MCP.Enabled = enabled
	}
	return nil
}

// NodeGenesis converts the genesis section.
func (g GenesisConfig) NodeGenesis() (node.Genesis, error) {
	owner, err := evm.ParseAddress(g.Owner)
	if err != nil {
		return node.Genesis{}, fmt.Errorf("genesis owner: %w", err)
	}
	genesis := node.DefaultGenesis(owner)

	if g.StoreAddress != "" {
		if genesis.StoreAddress, err = evm.ParseAddress(g.StoreAddress); err != nil {
			return node.Genesis{}, fmt.Errorf("genesis store address: %w", err)
		}
	}
	if g.Token.Address != "" {
		if genesis.Token.Address, err = evm.ParseAddress(g.Token.Address); err != nil {
			return node.Genesis{}, fmt.Errorf("genesis token address: %w", err)
		}
	}
	if g.Token.Name != "" {
		genesis.Token.Name = g.Token.Name
	}
	if g.Token.Symbol != "" {
		genesis.Token.Symbol = g.Token.Symbol
	}
	if g.Token.Version != "" {
		genesis.Token.Version = g.Token.Version
	}
	switch {
	case g.Token.ChainID != 0:
		genesis.Token.ChainID = big.NewInt(g.Token.ChainID)
	case g.Token.Network != "":
		chainID, ok := evm.GetChainID(g.Token.Network)
		if !ok {
			return node.Genesis{}, fmt.Errorf("genesis token: unknown network %q", g.Token.Network)
		}
		genesis.Token.ChainID = chainID
	}
	if g.Policy != (technostore.RefundPolicy{}) {
		if err := g.Policy.Validate(); err != nil {
			return node.Genesis{}, err
		}
		genesis.Policy = g.Policy
	}

	if len(g.Balances) > 0 {
		genesis.Balances = make(map[common.Address]*big.Int, len(g.Balances))
		for addr, amount := range g.Balances {
			who, err := evm.ParseAddress(addr)
			if err != nil {
				return node.Genesis{}, fmt.Errorf("genesis balance: %w", err)
			}
			v, err := evm.ParseUint256(amount)
			if err != nil {
				return node.Genesis{}, fmt.Errorf("genesis balance of %s: %w", addr, err)
			}
			genesis.Balances[who] = v
		}
	}
	return genesis, genesis.Validate()
}
