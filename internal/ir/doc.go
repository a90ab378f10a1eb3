// Package ir provides the declaration and record types shared by every layer of relgraph.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the declarations the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Declarations (Entity, Property, Relation) are plain data, loaded once
//   - Records are map-shaped: nested objects for composite and to-one fields,
//     slices for to-many fields
//   - Record ids are int64, allocated by the SQL executor
//   - MutationEvent JSON tags follow the consumer contract (recordName, oldRecord)
package ir
