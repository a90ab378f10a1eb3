package harness

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/roach88/relgraph/internal/engine"
	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s\n", i+1, event.Step, event.Key())
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. final_state assertions query s.
func EvaluateAssertions(ctx context.Context, s *engine.Storage, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, a)
		case AssertEventCount:
			err = assertEventCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(ctx, s, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertEventOrder checks that the events appear in the given order.
// Intervening events are allowed.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Events {
		found := false
		for pos < len(trace) {
			key := trace[pos].Key()
			pos++
			if key == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   fmt.Sprintf("%s not found after the preceding events", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertEventCount checks that the event appears exactly Count times.
func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Key() == a.Event {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState queries the entity and checks the count and paths.
func assertFinalState(ctx context.Context, s *engine.Storage, a Assertion) error {
	match, err := queryir.ParseMatch(a.Where)
	if err != nil {
		return fmt.Errorf("where: %w", err)
	}
	attrs, err := queryir.ParseAttributes(a.Attributes)
	if err != nil {
		return fmt.Errorf("attributes: %w", err)
	}
	recs, err := s.Find(ctx, a.Entity, match, queryir.Viewport{}, attrs, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", a.Entity, err)
	}

	if a.Count != nil && len(recs) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d %s record(s) matching %v", *a.Count, a.Entity, a.Where),
			Actual:   fmt.Sprintf("%d record(s)", len(recs)),
		}
	}
	if failures := checkPaths(map[string]any{"records": toList(recs)}, a.Paths); len(failures) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s records satisfying paths", a.Entity),
			Actual:   strings.Join(failures, "; "),
		}
	}
	return nil
}

// checkPaths evaluates each JSONPath against doc and compares the result
// with the expected value. A path selecting one value compares that value;
// a path selecting several compares the list. Failures are returned in path
// order.
func checkPaths(doc map[string]any, paths map[string]any) []string {
	if len(paths) == 0 {
		return nil
	}
	data, err := plain(doc)
	if err != nil {
		return []string{err.Error()}
	}

	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var failures []string
	for _, path := range keys {
		x, err := jp.ParseString(path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("path %s: %v", path, err))
			continue
		}
		found := x.Get(data)
		var got any
		switch len(found) {
		case 0:
			failures = append(failures, fmt.Sprintf("path %s: no match", path))
			continue
		case 1:
			got = found[0]
		default:
			got = found
		}
		if !sameJSON(got, paths[path]) {
			failures = append(failures, fmt.Sprintf("path %s: expected %v, got %v", path, paths[path], got))
		}
	}
	return failures
}

// plain converts records and events into the generic values JSONPath
// expressions walk.
func plain(v any) (any, error) {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("encode trace data: %w", err)
	}
	return oj.Parse(b)
}

// sameJSON compares two values by canonical JSON.
func sameJSON(a, b any) bool {
	ca, errA := ir.MarshalCanonical(a)
	cb, errB := ir.MarshalCanonical(b)
	return errA == nil && errB == nil && bytes.Equal(ca, cb)
}
