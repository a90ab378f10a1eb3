package schema

import (
	"fmt"
	"strings"
)

// Dialect is the part of a SQL dialect DDL rendering needs.
type Dialect interface {
	Quote(ident string) string
	ColumnType(logical string, collection bool) string
}

// Indexer is implemented by dialects that index foreign-key columns.
type Indexer interface {
	IndexStatement(table, column string) string
}

// DDL renders one CREATE TABLE statement per table, followed by index
// statements when the dialect supports them.
func (m *Model) DDL(d Dialect) []string {
	var stmts, indexes []string
	idx, hasIndexer := d.(Indexer)

	for _, t := range m.tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			def := d.Quote(c.Name) + " " + d.ColumnType(c.Type, false)
			if c.Key {
				def += " PRIMARY KEY"
			}
			cols = append(cols, def)
			if c.Index && hasIndexer {
				if stmt := idx.IndexStatement(t.Name, c.Name); stmt != "" {
					indexes = append(indexes, stmt)
				}
			}
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(t.Name), strings.Join(cols, ", ")))
	}
	return append(stmts, indexes...)
}

// Describe renders a stable text summary of tables and nodes.
func (m *Model) Describe() string {
	var b strings.Builder
	for _, t := range m.tables {
		fmt.Fprintf(&b, "table %s\n", t.Name)
		for _, c := range t.Columns {
			flags := ""
			switch {
			case c.Key:
				flags = " key"
			case c.Index:
				flags = " fk"
			}
			fmt.Fprintf(&b, "  %s %s%s <- %s\n", c.Name, c.Type, flags, c.Owner)
		}
	}
	for _, n := range m.nodes {
		kind := "entity"
		if n.IsRelation() {
			kind = "relation"
		}
		if n.Synthesized {
			kind += " synthesized"
		}
		fmt.Fprintf(&b, "%s %s table=%s\n", kind, n.Name, n.Table)
		if n.IsRelation() {
			r := n.Rel
			storage := "own table"
			if r.Merged() {
				storage = "merged into " + string(r.Host)
			}
			fmt.Fprintf(&b, "  %s %s -> %s, %s", r.Type, m.nodes[r.Source].Name, m.nodes[r.Target].Name, storage)
			if r.Reliance {
				b.WriteString(", reliance")
			}
			if r.Symmetric {
				b.WriteString(", symmetric")
			}
			b.WriteString("\n")
		}
		describeFields(&b, m, n.Root.Children)
	}
	return b.String()
}

func describeFields(b *strings.Builder, m *Model, fields []*Field) {
	for _, f := range fields {
		switch f.Kind {
		case KindComposite:
			describeFields(b, m, f.Children)
		case KindLink:
			l := f.Link
			card := "one"
			if l.ToMany {
				card = "many"
			}
			fmt.Fprintf(b, "  %s link %s via %s as %s (%s)\n",
				f.PathString(), m.nodes[l.Other].Name, m.nodes[l.Relation].Name, l.To, card)
		default:
			fmt.Fprintf(b, "  %s %s %s\n", f.PathString(), f.Kind, f.Column)
		}
	}
}
