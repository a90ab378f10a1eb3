package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relgraph/internal/ir"
)

// TraceSnapshot captures the event trace of a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Hooks        []any
}

// toCanonicalMap converts a TraceSnapshot to a map for canonical JSON
// serialization, which only handles records and plain values.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":       int64(event.Step),
			"op":         event.Op,
			"recordName": event.RecordName,
			"type":       string(event.Type),
		}
		if event.Record != nil {
			eventMap["record"] = event.Record
		}
		if event.OldRecord != nil {
			eventMap["oldRecord"] = event.OldRecord
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario": s.ScenarioName,
		"trace":    traceList,
	}
	if len(s.Hooks) > 0 {
		result["hooks"] = s.Hooks
	}
	return result
}

// MarshalTrace returns the canonical JSON of a result's trace, the content
// of golden files.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	for _, h := range result.Hooks {
		snapshot.Hooks = append(snapshot.Hooks, h.Result)
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass; golden mismatches fail t.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
