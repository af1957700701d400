package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s *Scenario) *Result {
	t.Helper()
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	return result
}

func parse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func TestRun_Counter(t *testing.T) {
	result := run(t, load(t, "counter.yaml"))
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 7, "deployment plus six steps")
	assert.Equal(t, StepDeploy, result.Trace[0].Type)
	assert.Equal(t, -1, result.Trace[0].Step)
	assert.Equal(t, uint64(1), result.Trace[0].Height)

	assert.Equal(t, uint64(2), result.Trace[1].Height)
	require.Len(t, result.Trace[2].Receipts, 2)
	assert.Equal(t, "rolled_back_err", result.Trace[2].Receipts[1]["status"])

	assert.Equal(t, "u3", result.Trace[4].Value)
	assert.Equal(t, uint64(1), result.Trace[5].Height, "rollback")
	assert.Equal(t, "u0", result.Trace[6].Value)
	assert.NotEmpty(t, result.Digest)
}

func TestRun_Token(t *testing.T) {
	result := run(t, load(t, "token.yaml"))
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	check := result.Trace[3]
	assert.Equal(t, StepCheck, check.Type)
	require.Len(t, check.Diagnostics, 4)
	assert.Contains(t, check.Diagnostics[0], "[W100]")
}

func TestRun_ReportsExpectationFailures(t *testing.T) {
	s := parse(t, `
name: failing
description: "every expectation is wrong"
contracts:
  - name: counter
    source: |
      (define-data-var n uint u0)
      (define-public (bump) (begin (var-set n (+ (var-get n) u1)) (ok (var-get n))))
      (define-read-only (get-n) (var-get n))
steps:
  - block:
      - sender: wallet_1
        call: counter.bump
        expect: { status: err, result: "(ok u7)", events: 3 }
      - sender: wallet_1
        call: counter.missing
        expect: { status: aborted, fault: UNDEFINED_FUNCTION }
  - read_only:
      call: counter.get-n
      expect: u9
assertions:
  - { type: data_var, contract: counter, name: n, expect: u2 }
  - { type: block_height, expect: "7" }
  - { type: balance, asset: STX, owner: wallet_3, expect: u1 }
`)
	result := run(t, s)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "steps[0].block[0]: expected status err, got ok")
	assert.Contains(t, joined, "steps[0].block[0]: expected result (ok u7), got (ok u1)")
	assert.Contains(t, joined, "steps[0].block[0]: expected 3 events, got 0")
	assert.Contains(t, joined, "steps[0].block[1]: expected fault UNDEFINED_FUNCTION, got NO_SUCH_FUNCTION")
	assert.Contains(t, joined, "steps[1].read_only: counter.get-n: expected u9, got u1")
	assert.Contains(t, joined, "assertions[0]: Assertion failed: data_var counter.n")
	assert.Contains(t, joined, "assertions[1]")
	assert.Contains(t, joined, "assertions[2]")
	assert.Len(t, result.Errors, 8)
}

func TestRun_ReadOnlyFault(t *testing.T) {
	s := parse(t, `
name: faults
description: "read-only faults are expectations"
contracts:
  - name: math
    source: "(define-read-only (div (a uint) (b uint)) (/ a b))"
steps:
  - read_only:
      call: math.div
      args: [u1, u0]
      fault: DIVISION_BY_ZERO
  - read_only:
      call: math.div
      args: [u4, u2]
      expect: u2
`)
	result := run(t, s)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "DIVISION_BY_ZERO", result.Trace[1].Fault)
	assert.Equal(t, "u2", result.Trace[2].Value)
}

func TestRun_PrivateAndPrincipalArgs(t *testing.T) {
	s := parse(t, `
name: private
description: "private calls and principal arguments"
contracts:
  - name: registry
    deployer: wallet_1
    source: |
      (define-map names principal (string-ascii 16))
      (define-private (register (who principal) (name (string-ascii 16)))
        (ok (map-set names who name)))
steps:
  - block:
      - sender: wallet_1
        call: registry.register
        private: true
        args: [wallet_2, "\"bob\""]
        expect: { status: ok }
      - sender: wallet_1
        call: registry.register
        args: [wallet_2, "\"eve\""]
        expect: { status: aborted }
assertions:
  - { type: map_entry, contract: registry, name: names, key: wallet_2, expect: "(some \"bob\")" }
`)
	result := run(t, s)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DeployFailureStops(t *testing.T) {
	s := parse(t, `
name: broken
description: "a contract that fails to deploy"
contracts:
  - name: broken
    source: "(define-data-var x uint (/ u1 u0))"
steps:
  - mine_empty: 1
`)
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract broken")
}

func TestRun_UnknownAccount(t *testing.T) {
	s := parse(t, `
name: nobody
description: "sender is not an account"
steps:
  - block:
      - sender: mallory
        transfer: { recipient: wallet_1, amount: 1 }
`)
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown account "mallory"`)
}

func TestRun_DevnetConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "devnet.toml", `
[[accounts]]
name = "deployer"
balance = 10

[[accounts]]
name = "alice"
balance = 5
`)
	path := writeScenario(t, dir, `
name: devnet
description: "accounts come from the devnet file"
config: devnet.toml
steps:
  - block:
      - sender: deployer
        transfer: { recipient: alice, amount: 3 }
        expect: { status: ok }
assertions:
  - { type: balance, asset: STX, owner: alice, expect: u8 }
  - { type: balance, asset: STX, owner: deployer, expect: u7 }
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	result := run(t, s)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DeploysCalleesFirst(t *testing.T) {
	s := parse(t, `
name: ordering
description: "a caller declared before its callee still deploys"
contracts:
  - name: proxy
    source: |
      (define-public (forward (n uint))
        (contract-call? .adder add-one n))
  - name: adder
    source: |
      (define-public (add-one (n uint))
        (ok (+ n u1)))
steps:
  - block:
      - sender: wallet_1
        call: proxy.forward
        args: [u41]
        expect: { status: ok, result: "(ok u42)" }
`)
	result := run(t, s)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	deploy := result.Trace[0]
	require.Len(t, deploy.Receipts, 2)
	assert.True(t, strings.HasSuffix(deploy.Receipts[0]["result"].(string), ".adder"))
	assert.True(t, strings.HasSuffix(deploy.Receipts[1]["result"].(string), ".proxy"))
}

func TestRun_DependencyCycle(t *testing.T) {
	s := parse(t, `
name: cycle
description: "contracts that call each other cannot be ordered"
contracts:
  - name: ping
    source: "(define-public (f) (contract-call? .pong g))"
  - name: pong
    source: "(define-public (g) (contract-call? .ping f))"
steps:
  - mine_empty: 1
`)
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	var cycle *DependencyCycleError
	assert.ErrorAs(t, err, &cycle)
	assert.Contains(t, err.Error(), "ping → pong → ping")
}
