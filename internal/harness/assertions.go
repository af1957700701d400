package harness

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hirosystems/clarinet-sub000/internal/simnet"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Subject  string // What was inspected, e.g. counter.count
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Subject)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// assertDataVar checks the committed value of a data variable.
func (h *Harness) assertDataVar(ctx context.Context, a Assertion) error {
	contract, err := h.contract(a.Contract)
	if err != nil {
		return err
	}
	v, err := h.session.GetDataVar(ctx, contract.ID(), a.Name)
	if err != nil {
		return err
	}
	return compare(a, a.Contract+"."+a.Name, v.String())
}

// assertMapEntry checks a map entry; a missing entry prints as none.
func (h *Harness) assertMapEntry(ctx context.Context, a Assertion) error {
	contract, err := h.contract(a.Contract)
	if err != nil {
		return err
	}
	key, err := h.args([]string{a.Key})
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	entry, err := h.session.GetMapEntry(ctx, contract.ID(), a.Name, key[0])
	if err != nil {
		return err
	}
	return compare(a, fmt.Sprintf("%s.%s[%s]", a.Contract, a.Name, a.Key), entry.String())
}

// assertBalance checks an STX or fungible token balance. A principal
// without a balance holds u0.
func (h *Harness) assertBalance(ctx context.Context, a Assertion) error {
	owner, err := h.principal(a.Owner)
	if err != nil {
		return err
	}
	asset := simnet.STXAsset
	if a.Asset != simnet.STXAsset {
		contract, token, err := splitCall(a.Asset)
		if err != nil {
			return fmt.Errorf("asset %q is not contract.token", a.Asset)
		}
		p, err := h.contract(contract)
		if err != nil {
			return err
		}
		asset = p.ID() + "." + token
	}

	assets, err := h.session.GetAssetsMap(ctx)
	if err != nil {
		return err
	}
	got := "u0"
	if bal, ok := assets[asset][owner.ID()]; ok {
		got = bal.String()
	}
	return compare(a, a.Asset+" of "+a.Owner, got)
}

func (h *Harness) assertBlockHeight(a Assertion) error {
	return compare(a, "chain tip", strconv.FormatUint(h.session.BlockHeight(), 10))
}

func compare(a Assertion, subject, actual string) error {
	if actual == a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Subject:  subject,
		Expected: a.Expect,
		Actual:   actual,
	}
}

// EvaluateAssertions runs all assertions and returns error messages.
// Returns empty slice if all assertions pass.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertDataVar:
			err = h.assertDataVar(ctx, a)
		case AssertMapEntry:
			err = h.assertMapEntry(ctx, a)
		case AssertBalance:
			err = h.assertBalance(ctx, a)
		case AssertBlockHeight:
			err = h.assertBlockHeight(a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errors
}

