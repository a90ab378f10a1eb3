// Package queryir holds the vocabulary of find calls: typed field paths,
// match expressions, attribute queries, ordering and viewports.
//
// Expression is a sealed interface using the marker method pattern. Only
// Atom, And, Or and Not implement it, so planners can switch exhaustively:
//
//	switch e := expr.(type) {
//	case *Atom:
//	case *And:
//	case *Or:
//	case *Not:
//	}
//
// Every type can be decoded from the generic values produced by
// encoding/json or gopkg.in/yaml.v3, which is how the CLI and scenario files
// supply them:
//
//	{"and": [{"key": "name", "value": ["=", "a1"]}, {"key": "teams.name", "value": ["like", "t%"]}]}
//	["name", ["teams", {"attributeQuery": ["name"]}]]
package queryir
