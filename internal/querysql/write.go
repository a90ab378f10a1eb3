package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relgraph/internal/schema"
)

// Assignment sets one column. Value must already be in column form.
type Assignment struct {
	Column string
	Value  any
}

// Insert renders an INSERT of one row.
func (p *Planner) Insert(table string, values []Assignment) Statement {
	cols := make([]string, len(values))
	marks := make([]string, len(values))
	params := make([]any, len(values))
	for i, a := range values {
		cols[i] = p.dialect.Quote(a.Column)
		marks[i] = p.dialect.Placeholder(i + 1)
		params[i] = a.Value
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		p.dialect.Quote(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	return Statement{SQL: sql, Params: params}
}

// UpdateByID renders an UPDATE of the row with the given id.
func (p *Planner) UpdateByID(table string, values []Assignment, id int64) Statement {
	sets := make([]string, len(values))
	params := make([]any, 0, len(values)+1)
	for i, a := range values {
		params = append(params, a.Value)
		sets[i] = fmt.Sprintf("%s = %s", p.dialect.Quote(a.Column), p.dialect.Placeholder(i+1))
	}
	params = append(params, id)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		p.dialect.Quote(table), strings.Join(sets, ", "),
		p.dialect.Quote(schema.IDColumn), p.dialect.Placeholder(len(params)))
	return Statement{SQL: sql, Params: params}
}

// DeleteByID renders a DELETE of the row with the given id.
func (p *Planner) DeleteByID(table string, id int64) Statement {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		p.dialect.Quote(table), p.dialect.Quote(schema.IDColumn), p.dialect.Placeholder(1))
	return Statement{SQL: sql, Params: []any{id}}
}
