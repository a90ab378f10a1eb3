// Package harness runs storage scenarios written in YAML against a fresh
// database and checks the mutation events and records they produce.
//
// # Scenario Format
//
//	name: user_teams
//	description: "Creating a user with teams links both sides"
//	schema: ../schema.yaml
//	steps:
//	  - op: create
//	    entity: User
//	    payload: { name: a1, teams: [{ name: t1 }, { name: t2 }] }
//	    expect:
//	      events:
//	        - { type: create, recordName: User }
//	        - { type: create, recordName: Team }
//	        - { type: create, recordName: teams }
//	  - op: find
//	    entity: User
//	    match: { name: a1 }
//	    attributes: [name, [teams, { attributeQuery: [name] }]]
//	    expect:
//	      count: 1
//	      paths:
//	        "$.records[0].teams[1].name": t2
//	assertions:
//	  - type: event_count
//	    event: create teams
//	    count: 2
//
// The schema path is resolved relative to the scenario file. It names a
// YAML declaration file, a .cue file or a directory of CUE files.
//
// # Operations
//
//   - create, update, delete, find, findOne on entities
//   - addRelation, removeRelation, updateRelation, findRelation on relations
//
// Relation steps name the relation in entity; addRelation takes source and
// target ids.
//
// # Expectations
//
// A step's expect clause may check the error code the step fails with, the
// exact event sequence, the number of records returned, and JSONPath
// expressions evaluated against {"records": [...], "events": [...]}.
//
// # Assertion Types
//
//   - event_order: the events appear in the given order, not necessarily
//     consecutively
//   - event_count: an event appears exactly count times
//   - final_state: a find on entity with where returns count records and
//     satisfies paths
//
// # Deterministic Testing
//
// Every run opens a private in-memory SQLite database and uses a fixed
// operation token, so identical scenarios produce identical traces and
// golden files compare byte for byte.
package harness
