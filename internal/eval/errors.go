package eval

import (
	"errors"
	"fmt"

	"github.com/hirosystems/clarinet-sub000/internal/ast"
	"github.com/hirosystems/clarinet-sub000/internal/cost"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// FaultKind separates host-level failures from budget breaches.
type FaultKind string

const (
	// RuntimeFault aborts a call on a type error, arithmetic error,
	// failed unwrap, unresolved name or trait mismatch.
	RuntimeFault FaultKind = "runtime_fault"
	// ResourceExceeded aborts a call that ran out of cost budget or
	// call depth.
	ResourceExceeded FaultKind = "resource_exceeded"
)

// FaultCode identifies the specific failure.
type FaultCode string

const (
	CodeTypeMismatch     FaultCode = "TYPE_MISMATCH"
	CodeOverflow         FaultCode = "ARITHMETIC_OVERFLOW"
	CodeUnderflow        FaultCode = "ARITHMETIC_UNDERFLOW"
	CodeDivisionByZero   FaultCode = "DIVISION_BY_ZERO"
	CodeArithmetic       FaultCode = "ARITHMETIC"
	CodeUnwrapFailure    FaultCode = "UNWRAP_FAILURE"
	CodeUndefinedName    FaultCode = "UNDEFINED_NAME"
	CodeUndefinedFunc    FaultCode = "UNDEFINED_FUNCTION"
	CodeNoSuchContract   FaultCode = "NO_SUCH_CONTRACT"
	CodeNoSuchFunction   FaultCode = "NO_SUCH_FUNCTION"
	CodeTraitMismatch    FaultCode = "TRAIT_MISMATCH"
	CodeWriteInReadOnly  FaultCode = "WRITE_IN_READ_ONLY"
	CodeValueTooLarge    FaultCode = "VALUE_TOO_LARGE"
	CodeArity            FaultCode = "BAD_ARITY"
	CodeInvalidSyntax    FaultCode = "INVALID_SYNTAX"
	CodeEpoch            FaultCode = "NOT_AVAILABLE_IN_EPOCH"
	CodeContractExists   FaultCode = "CONTRACT_ALREADY_EXISTS"
	CodeSupplyOverflow   FaultCode = "SUPPLY_OVERFLOW"
	CodeShortReturn      FaultCode = "SHORT_RETURN"
	CodeHost             FaultCode = "HOST_ERROR"
	CodeStackDepth       FaultCode = "STACK_DEPTH"
	CodeCostBudget       FaultCode = "COST_BUDGET_EXCEEDED"
	CodeNoSuchBlock      FaultCode = "NO_SUCH_BLOCK"
	CodeInvalidPrincipal FaultCode = "INVALID_PRINCIPAL"
)

// Fault is the typed failure of a call. The call's writes and events are
// discarded; the receipt carries the fault instead of a value.
type Fault struct {
	Kind     FaultKind
	Code     FaultCode
	Message  string
	Contract string   // Contract being evaluated, when known
	Span     ast.Span // Expression that failed, zero when not attributable
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Contract != "" && f.Span.StartLine > 0 {
		return fmt.Sprintf("%s: %s at %s:%s: %s", f.Kind, f.Code, f.Contract, f.Span, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Kind, f.Code, f.Message)
}

// IsRuntimeFault returns true if err is or wraps a runtime fault.
// Uses errors.As to handle wrapped errors.
func IsRuntimeFault(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == RuntimeFault
	}
	return false
}

// IsResourceExceeded returns true if err is or wraps a resource fault.
func IsResourceExceeded(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == ResourceExceeded
	}
	return cost.IsBudgetExceeded(err)
}

func faultf(code FaultCode, format string, args ...any) *Fault {
	return &Fault{Kind: RuntimeFault, Code: code, Message: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) *Fault {
	return faultf(CodeTypeMismatch, format, args...)
}

// earlyReturn unwinds to the enclosing user function, which returns
// value. Raised by asserts!, unwrap!, unwrap-err! and try!.
type earlyReturn struct {
	value value.Value
}

func (e *earlyReturn) Error() string {
	return "early return: " + e.value.String()
}

// asFault converts any evaluation error into a Fault. Budget breaches
// become ResourceExceeded faults; errors from the value package keep
// their arithmetic meaning.
func asFault(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	var be *cost.BudgetExceededError
	if errors.As(err, &be) {
		return &Fault{Kind: ResourceExceeded, Code: CodeCostBudget, Message: be.Error()}
	}
	var er *earlyReturn
	if errors.As(err, &er) {
		return faultf(CodeShortReturn, "early return of %s outside a function", er.value)
	}
	switch {
	case errors.Is(err, value.ErrOverflow):
		return faultf(CodeOverflow, "%v", err)
	case errors.Is(err, value.ErrUnderflow):
		return faultf(CodeUnderflow, "%v", err)
	case errors.Is(err, value.ErrDivisionByZero):
		return faultf(CodeDivisionByZero, "%v", err)
	case errors.Is(err, value.ErrNegativeInput):
		return faultf(CodeArithmetic, "%v", err)
	case errors.Is(err, value.ErrTypeMismatch):
		return faultf(CodeTypeMismatch, "%v", err)
	case errors.Is(err, value.ErrValueTooLarge):
		return faultf(CodeValueTooLarge, "%v", err)
	case errors.Is(err, value.ErrInvalidPrincipal):
		return faultf(CodeInvalidPrincipal, "%v", err)
	}
	return faultf(CodeHost, "%v", err)
}
