package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosystems/clarinet-sub000/internal/eval"
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func TestFormatSTX(t *testing.T) {
	tests := []struct {
		micro uint64
		want  string
	}{
		{0, "0.000000"},
		{1, "0.000001"},
		{1_500_000, "1.500000"},
		{100_000_000_000_000, "100000000.000000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSTX(value.NewUInt(tt.micro)))
	}
}

func TestCall_Public(t *testing.T) {
	out, err := execute(t, "call", counterContract, "count-up", "--sender", "wallet_1", "--format", "json")
	require.NoError(t, err)

	var result CallResult
	resp := decodeJSON(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "count-up", result.Function)
	assert.Equal(t, string(eval.StatusCommittedOk), result.Status)
	assert.Equal(t, "(ok true)", result.Result)
	require.NotNil(t, result.Receipt)
	assert.Len(t, result.Receipt["events"], 1)

	require.Len(t, result.Balances, 4)
	assert.Equal(t, "deployer", result.Balances[0].Account)
	assert.Equal(t, "100000000.000000", result.Balances[0].STX)
	assert.Equal(t, "100000000000000", result.Balances[0].MicroSTX)
}

func TestCall_ErrResultIsNotAFailure(t *testing.T) {
	out, err := execute(t, "call", counterContract, "count-down")
	require.NoError(t, err)
	assert.Contains(t, out, "status: "+string(eval.StatusRolledBackErr))
	assert.Contains(t, out, "result: (err u1)")
	assert.Contains(t, out, "Balances:")
}

func TestCall_ReadOnly(t *testing.T) {
	out, err := execute(t, "call", counterContract, "get-count", "wallet_1", "--read-only", "--format", "json")
	require.NoError(t, err)

	var result CallResult
	decodeJSON(t, out, &result)
	assert.Equal(t, "u0", result.Result)
	assert.Nil(t, result.Receipt)
}

func TestCall_Aborted(t *testing.T) {
	out, err := execute(t, "call", counterContract, "no-such-function", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result CallResult
	resp := decodeJSON(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCall, resp.Error.Code)
	assert.Equal(t, string(eval.StatusAborted), result.Status)
}

func TestCall_BadArgument(t *testing.T) {
	_, err := execute(t, "call", counterContract, "get-count", "(unclosed", "--read-only")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCall_UnknownSender(t *testing.T) {
	_, err := execute(t, "call", counterContract, "count-up", "--sender", "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
