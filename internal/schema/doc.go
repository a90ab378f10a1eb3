// Package schema compiles entity and relation declarations into the model
// the planner and mutation engine work from.
//
// A Model is an arena of map nodes indexed by NodeID. Every entity, every
// relation and every sub-entity synthesized for a collection, unique or lazy
// property is a node. A node owns a tree of fields; each leaf field is either
// a column with a fixed {table, column} location or a link that hops to
// another node through a relation node. A field is never both.
//
// Build runs in passes:
//
//  1. Entities: properties are walked depth-first. Unmodified composites stay
//     inline; modified properties are promoted to a sub-entity plus a
//     relation back to the owner.
//  2. Relations: declared and synthesized relations become nodes carrying
//     id, source and target fields plus their own properties.
//  3. Links: every relation attaches a Link to the endpoint fields it
//     connects.
//  4. Merge: every relation that is not n:n picks the table that stores its
//     foreign key, unless told to keep its own table.
//  5. Tables: leaf columns are named by dot-joined field path and assigned to
//     tables. Two live fields claiming one column is an error.
//
// The model is immutable once Build returns.
package schema
