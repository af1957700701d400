package simnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/store"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// genesisParent is the parent hash of block 0.
const genesisParent = "0x" + "0000000000000000000000000000000000000000000000000000000000000000"

// Session is one simulated chain: a store, an evaluator and the
// configured accounts. A Session is single-writer; callers serialize
// access.
type Session struct {
	id       string
	cfg      Config
	store    *store.Store
	ev       *eval.Evaluator
	parser   ast.Parser
	logger   *slog.Logger
	schedule *cost.Schedule
	path     string

	accounts map[string]value.Principal
	tip      store.Block
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithSchedule overrides the cost schedule named by the config.
func WithSchedule(sched *cost.Schedule) Option {
	return func(s *Session) {
		s.schedule = sched
	}
}

// WithStorePath keeps the chain in a SQLite file instead of memory. An
// existing file resumes at its tip.
func WithStorePath(path string) Option {
	return func(s *Session) {
		s.path = path
	}
}

// WithParser replaces the default contract reader.
func WithParser(p ast.Parser) Option {
	return func(s *Session) {
		s.parser = p
	}
}

// New opens a chain for cfg and commits the genesis block with the
// configured balances.
func New(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Session{
		id:     sessionID(),
		cfg:    cfg,
		parser: ast.Reader{},
		path:   store.MemoryPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("session", s.id)

	if s.schedule == nil {
		s.schedule = cost.DefaultSchedule()
		if cfg.CostSchedule != "" {
			sched, err := cost.LoadSchedule(cfg.CostSchedule)
			if err != nil {
				return nil, err
			}
			s.schedule = sched
		}
	}

	principals, err := cfg.principals()
	if err != nil {
		return nil, err
	}
	s.accounts = make(map[string]value.Principal, len(principals))
	for i, a := range cfg.Accounts {
		s.accounts[a.Name] = principals[i]
	}

	st, err := store.Open(s.path)
	if err != nil {
		return nil, err
	}
	s.store = st

	evOpts := []eval.Option{
		eval.WithSchedule(s.schedule),
		eval.WithParser(s.parser),
		eval.WithLogger(s.logger),
	}
	if cfg.MaxCallDepth > 0 {
		evOpts = append(evOpts, eval.WithMaxCallDepth(cfg.MaxCallDepth))
	}
	ev, err := eval.New(st, evOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	s.ev = ev

	if tip, ok := st.TipHeight(); ok {
		if s.tip, err = st.Block(ctx, tip); err != nil {
			st.Close()
			return nil, err
		}
		s.logger.Info("session resumed", "path", s.path, "height", tip)
		return s, nil
	}

	if err := s.genesis(ctx, principals); err != nil {
		st.Close()
		return nil, err
	}
	s.logger.Info("session opened",
		"network", cfg.Network,
		"accounts", len(principals),
		"epoch", cfg.EpochAt(0),
	)
	return s, nil
}

// sessionID tags log lines; it never enters chain state.
func sessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Session) genesis(ctx context.Context, principals []value.Principal) error {
	overlay := store.NewOverlay(s.store)
	supply := value.NewUInt(0)
	for i, p := range principals {
		bal := value.NewUInt(s.cfg.Accounts[i].Balance)
		key := store.STXBalanceKey(p.ID())
		if raw, ok, err := overlay.Get(ctx, key); err != nil {
			return err
		} else if ok {
			// Two accounts may share an address; balances add up.
			prev, err := value.Deserialize(raw)
			if err != nil {
				return err
			}
			sum, err := value.Arith(value.OpAdd, prev, bal)
			if err != nil {
				return fmt.Errorf("genesis balance of %s: %w", p.ID(), err)
			}
			bal = sum.(value.UInt)
		}
		if err := overlay.Put(key, value.Serialize(bal)); err != nil {
			return err
		}
		total, err := value.Arith(value.OpAdd, supply, value.NewUInt(s.cfg.Accounts[i].Balance))
		if err != nil {
			return fmt.Errorf("genesis supply: %w", err)
		}
		supply = total.(value.UInt)
	}
	if err := overlay.Put(store.KeySTXLiquidSupply, value.Serialize(supply)); err != nil {
		return err
	}
	return s.commit(ctx, overlay, 0, nil)
}

// Close releases the store.
func (s *Session) Close() error {
	return s.store.Close()
}

// ID returns the session id used in log lines.
func (s *Session) ID() string { return s.id }

// Config returns the chain configuration.
func (s *Session) Config() Config { return s.cfg }

// Schedule returns the cost schedule in use.
func (s *Session) Schedule() *cost.Schedule { return s.schedule }

// Parser returns the contract reader in use.
func (s *Session) Parser() ast.Parser { return s.parser }

// Account returns the principal of a configured account.
func (s *Session) Account(name string) (value.Principal, bool) {
	p, ok := s.accounts[name]
	return p, ok
}

// Accounts returns the configured account principals by name.
func (s *Session) Accounts() map[string]value.Principal {
	out := make(map[string]value.Principal, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out
}

// Deployer is the first configured account.
func (s *Session) Deployer() value.Principal {
	if len(s.cfg.Accounts) == 0 {
		return value.Principal{}
	}
	return s.accounts[s.cfg.Accounts[0].Name]
}

// BlockHeight returns the height of the newest committed block.
func (s *Session) BlockHeight() uint64 { return s.tip.Height }

// CurrentEpoch is the epoch the next block runs in.
func (s *Session) CurrentEpoch() eval.Epoch { return s.cfg.EpochAt(s.tip.Height + 1) }

// env is the environment of a transaction in the block at height.
func (s *Session) env(sender value.Principal, height uint64) eval.Environment {
	return eval.Environment{
		Sender:       sender,
		BlockHeight:  height,
		TenureHeight: height,
		BurnHeight:   height + s.cfg.BurnOffset,
		Timestamp:    s.cfg.Timestamp(height),
		Epoch:        s.cfg.EpochAt(height),
		ChainID:      s.cfg.ChainID,
		Mainnet:      s.cfg.Mainnet(),
	}
}

// MineBlock runs txs in order in a new block and commits it. Each
// transaction sees the writes of the committed ones before it. Rolled
// back and aborted transactions are recorded but change nothing.
func (s *Session) MineBlock(ctx context.Context, txs []Tx) ([]Receipt, error) {
	height := s.tip.Height + 1
	overlay := store.NewOverlay(s.store)

	receipts := make([]Receipt, 0, len(txs))
	for i, tx := range txs {
		r, err := s.execute(ctx, overlay, tx, height, i)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %d: %w", height, i, err)
		}
		receipts = append(receipts, r)
	}

	if err := s.commit(ctx, overlay, height, receipts); err != nil {
		return nil, err
	}
	s.logger.Info("block mined", "height", height, "hash", s.tip.Hash, "txs", len(receipts), "epoch", s.tip.Epoch)
	return receipts, nil
}

// MineEmptyBlock commits a block without transactions.
func (s *Session) MineEmptyBlock(ctx context.Context) error {
	_, err := s.MineBlock(ctx, nil)
	return err
}

// MineEmptyBlocks commits n empty blocks.
func (s *Session) MineEmptyBlocks(ctx context.Context, n int) error {
	for range n {
		if err := s.MineEmptyBlock(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) execute(ctx context.Context, overlay *store.Overlay, tx Tx, height uint64, index int) (Receipt, error) {
	id, err := value.TxID(tx.payload(height, index))
	if err != nil {
		return Receipt{}, err
	}
	env := s.env(tx.Sender, height)

	var out eval.Outcome
	switch tx.Kind {
	case TxContractCall:
		mode := eval.CallPublic
		if tx.Private {
			mode = eval.CallAny
		}
		out = s.ev.Call(ctx, overlay, env, tx.Contract, tx.Function, tx.Args, mode)
	case TxDeploy:
		out = s.ev.Deploy(ctx, overlay, env, tx.Name, tx.Source)
	case TxTransferSTX:
		out = s.ev.TransferSTX(ctx, overlay, env, value.NewUInt(tx.Amount), tx.Recipient, tx.Memo)
	default:
		return Receipt{}, fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}

	// Store failures are not contract faults.
	if out.Fault != nil && out.Fault.Code == eval.CodeHost {
		return Receipt{}, out.Fault
	}

	r := Receipt{
		TxID:        id,
		Index:       index,
		BlockHeight: height,
		Kind:        tx.Kind,
		Sender:      tx.Sender,
		Status:      out.Status,
		Result:      out.Value,
		Fault:       out.Fault,
		Events:      out.Events,
		Cost:        out.Cost,
	}
	switch out.Status {
	case eval.StatusAborted:
		s.logger.Warn("transaction aborted", "txid", id, "kind", tx.Kind, "fault", out.Fault.Error())
	default:
		s.logger.Debug("transaction executed", "txid", id, "kind", tx.Kind, "status", out.Status, "result", out.Value)
	}
	return r, nil
}

func (s *Session) commit(ctx context.Context, overlay *store.Overlay, height uint64, receipts []Receipt) error {
	ids := make([]string, len(receipts))
	records := make([]store.TxRecord, len(receipts))
	for i, r := range receipts {
		rec, err := value.MarshalCanonical(r.Canonical())
		if err != nil {
			return fmt.Errorf("receipt %s: %w", r.TxID, err)
		}
		ids[i] = r.TxID
		records[i] = store.TxRecord{Index: i, ID: r.TxID, Record: rec}
	}

	parent := genesisParent
	if height > 0 {
		parent = s.tip.Hash
	}
	ts := s.cfg.Timestamp(height)
	hash, err := value.BlockHash(parent, height, ts, ids)
	if err != nil {
		return err
	}
	b := store.Block{
		Height:       height,
		Hash:         hash,
		ParentHash:   parent,
		BurnHeight:   height + s.cfg.BurnOffset,
		TenureHeight: height,
		Timestamp:    ts,
		Epoch:        string(s.cfg.EpochAt(height)),
		TxCount:      len(receipts),
	}
	if err := s.store.CommitBlock(ctx, b, overlay.Writes(), records); err != nil {
		return err
	}
	s.tip = b
	return nil
}

// DeployContract deploys source as <deployer>.<name> in its own block.
// The block is mined even when the deploy fails; the failure is returned
// as the error.
func (s *Session) DeployContract(ctx context.Context, name, source string, deployer value.Principal) (value.Principal, error) {
	receipts, err := s.MineBlock(ctx, []Tx{DeployTx(deployer, name, source)})
	if err != nil {
		return value.Principal{}, err
	}
	r := receipts[0]
	if r.Fault != nil {
		return value.Principal{}, fmt.Errorf("deploying %s: %w", name, r.Fault)
	}
	id, ok := r.Result.(value.Principal)
	if !ok {
		return value.Principal{}, fmt.Errorf("deploying %s: unexpected result %s", name, r.Result)
	}
	return id, nil
}

// CallPublic calls a public function in its own block.
func (s *Session) CallPublic(ctx context.Context, sender, contract value.Principal, function string, args ...value.Value) (Receipt, error) {
	return s.single(ctx, CallTx(sender, contract, function, args...))
}

// CallPrivate calls any function, private ones included, in its own block.
func (s *Session) CallPrivate(ctx context.Context, sender, contract value.Principal, function string, args ...value.Value) (Receipt, error) {
	return s.single(ctx, PrivateCallTx(sender, contract, function, args...))
}

// TransferSTX moves micro-STX in its own block.
func (s *Session) TransferSTX(ctx context.Context, sender, recipient value.Principal, amount uint64) (Receipt, error) {
	return s.single(ctx, TransferTx(sender, recipient, amount))
}

func (s *Session) single(ctx context.Context, tx Tx) (Receipt, error) {
	receipts, err := s.MineBlock(ctx, []Tx{tx})
	if err != nil {
		return Receipt{}, err
	}
	return receipts[0], nil
}

// CallReadOnly calls a read-only or public function against the tip on a
// throwaway overlay. Nothing is ever committed. A fault is returned as
// the error; an (err ...) result is a value.
func (s *Session) CallReadOnly(ctx context.Context, sender, contract value.Principal, function string, args ...value.Value) (value.Value, error) {
	out := s.ev.Call(ctx, store.NewOverlay(s.store), s.env(sender, s.tip.Height+1), contract, function, args, eval.CallReadOnly)
	if out.Fault != nil {
		return nil, out.Fault
	}
	return out.Value, nil
}

// EvalExpression evaluates source as the deployer against the tip, in the
// context of contract or of a bare console when contract is the zero
// principal. Nothing is committed.
func (s *Session) EvalExpression(ctx context.Context, contract value.Principal, source string) (value.Value, error) {
	out := s.ev.EvalExpression(ctx, store.NewOverlay(s.store), s.env(s.Deployer(), s.tip.Height+1), contract, source)
	if out.Fault != nil {
		return nil, out.Fault
	}
	return out.Value, nil
}

// RollbackTo restores the chain to the state right after block height.
func (s *Session) RollbackTo(ctx context.Context, height uint64) error {
	if err := s.store.RollbackTo(ctx, height); err != nil {
		return err
	}
	b, err := s.store.Block(ctx, height)
	if err != nil {
		return err
	}
	from := s.tip.Height
	s.tip = b
	s.logger.Info("rolled back", "from", from, "to", height)
	return nil
}

// StateDigest hashes the live state at the tip.
func (s *Session) StateDigest(ctx context.Context) (string, error) {
	return s.store.Digest(ctx)
}

// ErrNotFound is returned by lookups of missing data.
var ErrNotFound = errors.New("not found")

// contractPrincipal accepts "ST....name" or a bare name deployed by the
// deployer.
func (s *Session) contractPrincipal(id string) (value.Principal, error) {
	if !strings.Contains(id, ".") {
		return value.ContractPrincipal(s.Deployer(), id)
	}
	p, err := value.ParsePrincipal(id)
	if err != nil {
		return value.Principal{}, err
	}
	if !p.IsContract() {
		return value.Principal{}, fmt.Errorf("%s is not a contract", id)
	}
	return p, nil
}
