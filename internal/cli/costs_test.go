package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosts_Default(t *testing.T) {
	out, err := execute(t, "costs", "--op", "var-get", "--op", "map-set")
	require.NoError(t, err)

	assert.Contains(t, out, "Schedule: default")
	assert.Contains(t, out, "var-get")
	assert.Contains(t, out, "map-set")
	assert.NotContains(t, out, "stx-transfer?")
}

func TestCosts_File(t *testing.T) {
	out, err := execute(t, "costs", filepath.Join("testdata", "costs.cue"), "--op", "var-get", "--size", "8", "--format", "json")
	require.NoError(t, err)

	var result CostsResult
	resp := decodeJSON(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli-test", result.Name)
	assert.Equal(t, uint64(5000000), result.Limit.Runtime)
	require.Len(t, result.Entries, 1)
	at := result.Entries[0].At
	require.NotNil(t, at)
	assert.Equal(t, uint64(26), at.Runtime)
	assert.Equal(t, uint64(1), at.ReadCount)
	assert.Equal(t, uint64(8), at.ReadLength)
}

func TestCosts_Text(t *testing.T) {
	out, err := execute(t, "costs", filepath.Join("testdata", "costs.cue"), "--op", "var-get", "--size", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "runtime=2*n+10 read=1/1*n+0 write=0/0")
	assert.Contains(t, out, "n=8: runtime=26")
}

func TestCosts_Rejected(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(bad, []byte(`costs: "+": runtime: {kind: "quadratic"}`), 0644))

	out, err := execute(t, "costs", bad, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeJSON(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}
