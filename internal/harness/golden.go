package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Digest       string       `json:"digest"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because value.MarshalCanonical only handles values and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":   event.Step,
			"type":   event.Type,
			"height": event.Height,
		}
		if event.Receipts != nil {
			receipts := make([]any, len(event.Receipts))
			for j, r := range event.Receipts {
				receipts[j] = r
			}
			eventMap["receipts"] = receipts
		}
		if event.Value != "" {
			eventMap["value"] = event.Value
		}
		if event.Fault != "" {
			eventMap["fault"] = event.Fault
		}
		if event.Diagnostics != nil {
			eventMap["diagnostics"] = event.Diagnostics
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"digest":        s.Digest,
	}
}

// Snapshot returns the canonical JSON trace of a result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Digest:       result.Digest,
	}
	return value.MarshalCanonical(snapshot.toCanonicalMap())
}

func newGoldie(t *testing.T, opts []goldie.Option) *goldie.Goldie {
	defaults := []goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}
	return goldie.New(t, append(defaults, opts...)...)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden unless
// opts say otherwise.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Expectation failures are
// reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result, opts...)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}
	newGoldie(t, opts).Assert(t, scenarioName, traceJSON)
	return nil
}
