package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/simnet"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// ContractFile is a contract read from disk.
type ContractFile struct {
	Name   string // file name without .clar
	Path   string
	Source string
}

// LoadError represents an error that occurred while loading inputs.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// exitError turns a load error into a command error.
func exitError(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
	}
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "load failed", err)
}

// LoadContract reads a .clar file. The contract is named after the file.
func LoadContract(path string) (ContractFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ContractFile{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("contract not found: %s", path)}
	}
	if err != nil {
		return ContractFile{}, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s", path), Err: err}
	}
	return ContractFile{
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:   path,
		Source: string(data),
	}, nil
}

// Parse parses the contract source.
func (c ContractFile) Parse() (*ast.Contract, error) {
	parsed, err := ast.Parse(c.Name, c.Source)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("parsing %s", c.Path), Err: err}
	}
	return parsed, nil
}

// SessionOptions are the flags shared by commands that open a session.
type SessionOptions struct {
	Config   string // devnet TOML file
	Schedule string // cost schedule CUE file
}

// OpenSession starts a fresh in-memory session. Logs go to logs.
func (o *RootOptions) OpenSession(ctx context.Context, so SessionOptions, logs io.Writer) (*simnet.Session, error) {
	cfg := simnet.DefaultConfig()
	if so.Config != "" {
		var err error
		if cfg, err = simnet.LoadConfig(so.Config); err != nil {
			return nil, &LoadError{Code: ErrCodeConfig, Message: "loading devnet config", Err: err}
		}
	}
	opts := []simnet.Option{simnet.WithLogger(o.logger(logs))}
	if so.Schedule != "" {
		sched, err := cost.LoadSchedule(so.Schedule)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeConfig, Message: "loading cost schedule", Err: err}
		}
		opts = append(opts, simnet.WithSchedule(sched))
	}
	s, err := simnet.New(ctx, cfg, opts...)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "opening session", Err: err}
	}
	return s, nil
}

// deploy deploys a contract as the deployer account.
func deploy(ctx context.Context, s *simnet.Session, c ContractFile) (value.Principal, error) {
	id, err := s.DeployContract(ctx, c.Name, c.Source, s.Deployer())
	if err != nil {
		return value.Principal{}, &LoadError{Code: ErrCodeDeploy, Message: fmt.Sprintf("deploying %s", c.Path), Err: err}
	}
	return id, nil
}
