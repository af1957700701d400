package simnet

import (
	"encoding/hex"

	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// TxKind selects what a transaction does.
type TxKind string

const (
	TxContractCall TxKind = "contract_call"
	TxDeploy       TxKind = "deploy"
	TxTransferSTX  TxKind = "stx_transfer"
)

// Tx is one transaction of a block. Only the fields of its Kind are used.
type Tx struct {
	Kind   TxKind
	Sender value.Principal

	// Contract call
	Contract value.Principal
	Function string
	Args     []value.Value
	Private  bool // allow private functions; test-only convenience

	// Deploy
	Name   string
	Source string

	// STX transfer
	Recipient value.Principal
	Amount    uint64
	Memo      []byte
}

// CallTx calls a public function.
func CallTx(sender, contract value.Principal, function string, args ...value.Value) Tx {
	return Tx{Kind: TxContractCall, Sender: sender, Contract: contract, Function: function, Args: args}
}

// PrivateCallTx calls any function, private ones included.
func PrivateCallTx(sender, contract value.Principal, function string, args ...value.Value) Tx {
	tx := CallTx(sender, contract, function, args...)
	tx.Private = true
	return tx
}

// DeployTx deploys source as <sender>.<name>.
func DeployTx(sender value.Principal, name, source string) Tx {
	return Tx{Kind: TxDeploy, Sender: sender, Name: name, Source: source}
}

// TransferTx moves amount micro-STX to recipient.
func TransferTx(sender, recipient value.Principal, amount uint64) Tx {
	return Tx{Kind: TxTransferSTX, Sender: sender, Recipient: recipient, Amount: amount}
}

// payload is the canonical identity of the transaction at a position in
// a block.
func (tx Tx) payload(height uint64, index int) map[string]any {
	m := map[string]any{
		"kind":   string(tx.Kind),
		"sender": tx.Sender.ID(),
		"height": height,
		"index":  uint64(index),
	}
	switch tx.Kind {
	case TxContractCall:
		args := make([]string, len(tx.Args))
		for i, a := range tx.Args {
			args[i] = hex.EncodeToString(value.Serialize(a))
		}
		m["contract"] = tx.Contract.ID()
		m["function"] = tx.Function
		m["args"] = args
		m["private"] = tx.Private
	case TxDeploy:
		m["name"] = tx.Name
		m["source"] = tx.Source
	case TxTransferSTX:
		m["recipient"] = tx.Recipient.ID()
		m["amount"] = tx.Amount
		if len(tx.Memo) > 0 {
			m["memo"] = "0x" + hex.EncodeToString(tx.Memo)
		}
	}
	return m
}

// Receipt is the recorded result of one transaction.
type Receipt struct {
	TxID        string
	Index       int
	BlockHeight uint64
	Kind        TxKind
	Sender      value.Principal
	Status      eval.Status
	Result      value.Value // nil when aborted
	Fault       *eval.Fault // set when aborted
	Events      []eval.Event
	Cost        cost.ExecutionCost
}

// Committed reports whether the transaction's writes were kept.
func (r Receipt) Committed() bool { return r.Status == eval.StatusCommittedOk }

// Canonical returns the receipt as a canonical JSON object. Stored with
// the block and used for golden traces.
func (r Receipt) Canonical() map[string]any {
	events := make([]any, len(r.Events))
	for i, e := range r.Events {
		events[i] = e.Canonical()
	}
	m := map[string]any{
		"txid":   r.TxID,
		"index":  uint64(r.Index),
		"height": r.BlockHeight,
		"kind":   string(r.Kind),
		"sender": r.Sender.ID(),
		"status": string(r.Status),
		"events": events,
		"cost": map[string]any{
			"runtime":      r.Cost.Runtime,
			"read_count":   r.Cost.ReadCount,
			"read_length":  r.Cost.ReadLength,
			"write_count":  r.Cost.WriteCount,
			"write_length": r.Cost.WriteLength,
		},
	}
	if r.Result != nil {
		m["result"] = r.Result.String()
	}
	if r.Fault != nil {
		fault := map[string]any{
			"kind":    string(r.Fault.Kind),
			"code":    string(r.Fault.Code),
			"message": r.Fault.Message,
		}
		if r.Fault.Contract != "" {
			fault["contract"] = r.Fault.Contract
		}
		if r.Fault.Span.StartLine > 0 {
			fault["location"] = r.Fault.Span.String()
		}
		m["fault"] = fault
	}
	return m
}
