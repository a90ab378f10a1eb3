// Package querysql compiles attribute queries and match expressions against
// a compiled schema model into parameterized SQL.
//
// Aliases are field paths from the query root, not table names, so one
// entity reached through two different links gets two joins. Joins with the
// same table, alias and ON clause collapse into one, and INNER wins over
// LEFT when both were requested.
//
// To-one links are joined. To-many links are never joined in a projection;
// they become Deferred fetches that run one follow-up query per parent row,
// so multi-valued children cannot duplicate parent rows. Match expressions
// always inline their links, and a to-many hop makes the SELECT DISTINCT.
//
// All values are parameterized, never interpolated. Every SELECT ends its
// ORDER BY with the root id for deterministic results.
package querysql
