package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/schema"
)

// MoneyType is the registered name of Money.
const MoneyType = "money"

// Money is a composite field type stored as amount and currency. Prepare
// accepts "12.50 EUR" strings, and "EUR" alone to match on currency only.
// Hook calls are recorded.
type Money struct {
	schema.BaseFieldType

	mu    sync.Mutex
	calls []string
}

var _ schema.CompositeFieldType = (*Money)(nil)

func (*Money) Name() string { return MoneyType }

func (*Money) Fields() []ir.Property {
	return []ir.Property{
		{Name: "amount", Type: ir.TypeNumber},
		{Name: "currency", Type: ir.TypeString},
	}
}

func (*Money) Prepare(value any) (map[string]any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, schema.ErrNoPrepare
	}
	amount, currency, found := strings.Cut(strings.TrimSpace(s), " ")
	if !found {
		return map[string]any{"currency": amount}, nil
	}
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return nil, fmt.Errorf("money amount %q: %w", amount, err)
	}
	return map[string]any{"amount": f, "currency": currency}, nil
}

func (m *Money) OnCreate(_ context.Context, call schema.HookCall) (any, error) {
	return m.record("create", call), nil
}

func (m *Money) OnUpdate(_ context.Context, call schema.HookCall) (any, error) {
	return m.record("update", call), nil
}

func (m *Money) record(kind string, call schema.HookCall) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := fmt.Sprintf("%s %s#%d.%s", kind, call.Node, call.ID, strings.Join(call.Path, "."))
	m.calls = append(m.calls, entry)
	return entry
}

// Calls returns the recorded hook calls in order.
func (m *Money) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
