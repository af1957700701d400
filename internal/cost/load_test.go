package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchedule = `
name: "costs-test"

limit: {
	runtime:      1000
	read_count:   10
	read_length:  500
	write_count:  10
	write_length: 500
}

costs: {
	"+": runtime: {kind: "linear", a: 2, b: 1}
	"var-get": {
		runtime:     {kind: "constant", a: 50}
		read_count:  {a: 1}
		read_length: {kind: "linear", a: 1}
	}
}
`

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("test.cue", []byte(sampleSchedule))
	require.NoError(t, err)

	assert.Equal(t, "costs-test", s.Name)
	assert.Equal(t, uint64(1000), s.Limit.Runtime)
	assert.Equal(t, LinearCost(2, 1), s.Entries["+"].Runtime)
	assert.Equal(t, ConstantCost(50), s.Entries["var-get"].Runtime)
	assert.Equal(t, ConstantCost(1), s.Entries["var-get"].ReadCount)

	c := s.Cost("var-get", 40)
	assert.Equal(t, uint64(50), c.Runtime)
	assert.Equal(t, uint64(1), c.ReadCount)
	assert.Equal(t, uint64(40), c.ReadLength)

	// Operations not listed keep their default pricing
	assert.Equal(t, DefaultSchedule().Entries["map-set"], s.Entries["map-set"])
}

func TestParseScheduleRejectsNegativeCoefficients(t *testing.T) {
	_, err := ParseSchedule("bad.cue", []byte(`costs: "+": runtime: {kind: "linear", a: -1}`))
	require.Error(t, err)
}

func TestParseScheduleRejectsUnknownKind(t *testing.T) {
	_, err := ParseSchedule("bad.cue", []byte(`costs: "+": runtime: {kind: "quadratic", a: 1}`))
	require.Error(t, err)
}

func TestParseScheduleRejectsUnknownDimension(t *testing.T) {
	_, err := ParseSchedule("bad.cue", []byte(`costs: "+": gas: {kind: "constant", a: 1}`))
	require.Error(t, err)
}

func TestLoadScheduleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.cue")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchedule), 0o644))

	s, err := LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, "costs-test", s.Name)

	_, err = LoadSchedule(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
