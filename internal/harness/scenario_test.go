package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "counter.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "counter", scenario.Name)
	require.Len(t, scenario.Contracts, 1)
	assert.Contains(t, scenario.Contracts[0].Source, "(define-public (count-up)", "path contracts are read")
	require.Len(t, scenario.Steps, 6)
	assert.Equal(t, StepBlock, scenario.Steps[0].Kind())
	assert.Equal(t, StepReadOnly, scenario.Steps[3].Kind())
	assert.Equal(t, StepRollback, scenario.Steps[4].Kind())
	assert.Equal(t, uint64(1), *scenario.Steps[4].Rollback)
	require.NotNil(t, scenario.Steps[1].Block[1].Expect)
	assert.Equal(t, ExpectErr, scenario.Steps[1].Block[1].Expect.Status)
	assert.Len(t, scenario.Assertions, 3)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingContractFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: missing
description: "contract file is missing"
contracts:
  - name: counter
    path: nowhere.clar
steps:
  - mine_empty: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)

	var notFound *ContractNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "counter", notFound.Contract)
	assert.Equal(t, filepath.Join(dir, "nowhere.clar"), notFound.ResolvedPath)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps:\n  - mine_empty: 1\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps:\n  - mine_empty: 1\n",
			wantErr: "description is required",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nstep:\n  - mine_empty: 1\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "nothing to do",
			content: "name: n\ndescription: d\n",
			wantErr: "steps or assertions are required",
		},
		{
			name:    "two step kinds",
			content: "name: n\ndescription: d\nsteps:\n  - mine_empty: 1\n    rollback: 0\n",
			wantErr: "found 2",
		},
		{
			name:    "empty step",
			content: "name: n\ndescription: d\nsteps:\n  - {}\n",
			wantErr: "found 0",
		},
		{
			name:    "call without function",
			content: "name: n\ndescription: d\nsteps:\n  - block:\n      - sender: wallet_1\n        call: counter\n",
			wantErr: "not contract.function",
		},
		{
			name:    "call and transfer",
			content: "name: n\ndescription: d\nsteps:\n  - block:\n      - sender: wallet_1\n        call: c.f\n        transfer: {recipient: wallet_2, amount: 1}\n",
			wantErr: "exactly one of call and transfer",
		},
		{
			name:    "missing sender",
			content: "name: n\ndescription: d\nsteps:\n  - block:\n      - call: c.f\n",
			wantErr: "sender is required",
		},
		{
			name:    "unknown status",
			content: "name: n\ndescription: d\nsteps:\n  - block:\n      - sender: a\n        call: c.f\n        expect: {status: fine}\n",
			wantErr: "unknown status",
		},
		{
			name:    "check unknown contract",
			content: "name: n\ndescription: d\nsteps:\n  - check: {contract: nope}\n",
			wantErr: "unknown contract",
		},
		{
			name:    "contract with source and path",
			content: "name: n\ndescription: d\ncontracts:\n  - name: c\n    source: \"(ok true)\"\n    path: c.clar\nsteps:\n  - mine_empty: 1\n",
			wantErr: "exactly one of source and path",
		},
		{
			name:    "duplicate contract",
			content: "name: n\ndescription: d\ncontracts:\n  - {name: c, source: x}\n  - {name: c, source: y}\nsteps:\n  - mine_empty: 1\n",
			wantErr: "duplicate contract",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nassertions:\n  - {type: trace_contains, expect: x}\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "assertion without expect",
			content: "name: n\ndescription: d\nassertions:\n  - {type: block_height}\n",
			wantErr: "expect is required",
		},
		{
			name:    "data_var without name",
			content: "name: n\ndescription: d\nassertions:\n  - {type: data_var, contract: c, expect: u1}\n",
			wantErr: "contract and name are required",
		},
		{
			name:    "balance without owner",
			content: "name: n\ndescription: d\nassertions:\n  - {type: balance, asset: STX, expect: u1}\n",
			wantErr: "asset and owner are required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitCall(t *testing.T) {
	contract, function, err := splitCall("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.counter.count-up")
	require.NoError(t, err)
	assert.Equal(t, "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.counter", contract)
	assert.Equal(t, "count-up", function)

	for _, bad := range []string{"counter", ".f", "counter."} {
		_, _, err := splitCall(bad)
		assert.Error(t, err, bad)
	}
}

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "counter.yaml"),
		filepath.Join("testdata", "scenarios", "token.yaml"),
	}, paths)

	_, err = FindScenarios(filepath.Join("testdata", "missing"))
	assert.Error(t, err)
}
