package simnet

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// Defaults used by DefaultConfig and for zero fields of a loaded file.
const (
	DefaultNetwork          = "simnet"
	DefaultChainID          = 0x80000000
	DefaultGenesisTimestamp = 1_700_000_000
	DefaultBlockInterval    = 600
	DefaultBurnOffset       = 100
	DefaultBalance          = 100_000_000_000_000 // 100M STX in micro-STX
)

// Config describes a simulated chain. It is usually read from a devnet
// TOML file:
//
//	network = "simnet"
//	genesis_timestamp = 1700000000
//	block_interval = 600
//
//	[[accounts]]
//	name = "deployer"
//	balance = 100000000000000
//
//	[[epochs]]
//	epoch = "3.0"
//	height = 10
type Config struct {
	Network          string       `toml:"network"`
	ChainID          uint32       `toml:"chain_id"`
	GenesisTimestamp uint64       `toml:"genesis_timestamp"`
	BlockInterval    uint64       `toml:"block_interval"`
	BurnOffset       uint64       `toml:"burn_offset"`
	MaxCallDepth     int          `toml:"max_call_depth"`
	CostSchedule     string       `toml:"cost_schedule"` // path to a CUE schedule
	Accounts         []Account    `toml:"accounts"`
	Epochs           []Activation `toml:"epochs"`
}

// Account is a funded principal at genesis. Address may be empty, in
// which case one is derived from Name.
type Account struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
	Balance uint64 `toml:"balance"`
}

// Activation switches the chain to Epoch from Height on.
type Activation struct {
	Epoch  string `toml:"epoch"`
	Height uint64 `toml:"height"`
}

// DefaultConfig returns a chain in epoch 2.5 with a deployer and three
// funded wallets.
func DefaultConfig() Config {
	cfg := Config{
		Network:          DefaultNetwork,
		ChainID:          DefaultChainID,
		GenesisTimestamp: DefaultGenesisTimestamp,
		BlockInterval:    DefaultBlockInterval,
		BurnOffset:       DefaultBurnOffset,
		MaxCallDepth:     eval.DefaultMaxCallDepth,
		Epochs:           []Activation{{Epoch: string(eval.Epoch25), Height: 0}},
	}
	for _, name := range []string{"deployer", "wallet_1", "wallet_2", "wallet_3"} {
		cfg.Accounts = append(cfg.Accounts, Account{Name: name, Balance: DefaultBalance})
	}
	return cfg
}

// LoadConfig reads a devnet TOML file. Zero fields take their defaults;
// unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("reading config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a devnet document held in memory.
func ParseConfig(data string) (Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Network == "" {
		c.Network = d.Network
	}
	if c.ChainID == 0 {
		c.ChainID = d.ChainID
	}
	if c.GenesisTimestamp == 0 {
		c.GenesisTimestamp = d.GenesisTimestamp
	}
	if c.BlockInterval == 0 {
		c.BlockInterval = d.BlockInterval
	}
	if c.BurnOffset == 0 {
		c.BurnOffset = d.BurnOffset
	}
	if c.MaxCallDepth == 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if len(c.Accounts) == 0 {
		c.Accounts = d.Accounts
	}
	if len(c.Epochs) == 0 {
		c.Epochs = d.Epochs
	}
}

// Mainnet reports whether addresses use mainnet versions.
func (c Config) Mainnet() bool { return c.Network == "mainnet" }

// Validate checks account names, addresses and the epoch schedule.
func (c Config) Validate() error {
	var errs []error
	if c.MaxCallDepth < 0 {
		errs = append(errs, fmt.Errorf("max_call_depth must not be negative"))
	}
	names := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: missing name", i))
			continue
		}
		if names[a.Name] {
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate name %q", i, a.Name))
		}
		names[a.Name] = true
		if a.Address != "" {
			p, err := value.ParsePrincipal(a.Address)
			if err != nil {
				errs = append(errs, fmt.Errorf("account %s: %w", a.Name, err))
			} else if p.IsContract() {
				errs = append(errs, fmt.Errorf("account %s: %s is a contract", a.Name, a.Address))
			}
		}
	}

	var prev *Activation
	for i := range c.Epochs {
		a := &c.Epochs[i]
		e, err := eval.ParseEpoch(a.Epoch)
		if err != nil {
			errs = append(errs, fmt.Errorf("epochs[%d]: %w", i, err))
			continue
		}
		if prev != nil {
			if a.Height <= prev.Height {
				errs = append(errs, fmt.Errorf("epochs[%d]: height %d does not follow %d", i, a.Height, prev.Height))
			}
			if !e.AtLeast(eval.Epoch(prev.Epoch)) || e == eval.Epoch(prev.Epoch) {
				errs = append(errs, fmt.Errorf("epochs[%d]: %s does not follow %s", i, a.Epoch, prev.Epoch))
			}
		}
		prev = a
	}
	return errors.Join(errs...)
}

// EpochAt returns the epoch active at height. Heights before the first
// activation run in 2.0.
func (c Config) EpochAt(height uint64) eval.Epoch {
	epoch := eval.Epoch20
	for _, a := range c.Epochs {
		if a.Height > height {
			break
		}
		epoch = eval.Epoch(a.Epoch)
	}
	return epoch
}

// Timestamp is the simulated time of the block at height.
func (c Config) Timestamp(height uint64) uint64 {
	return c.GenesisTimestamp + height*c.BlockInterval
}

// principals resolves every account in declaration order.
func (c Config) principals() ([]value.Principal, error) {
	version := value.VersionTestnetSingleSig
	if c.Mainnet() {
		version = value.VersionMainnetSingleSig
	}
	out := make([]value.Principal, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.Address == "" {
			out = append(out, value.PrincipalFromSeed(version, a.Name))
			continue
		}
		p, err := value.ParsePrincipal(a.Address)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.Name, err)
		}
		out = append(out, p)
	}
	if slices.ContainsFunc(out, func(p value.Principal) bool { return p.IsContract() }) {
		return nil, fmt.Errorf("accounts must be standard principals")
	}
	return out, nil
}
