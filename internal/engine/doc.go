// Package engine implements the mutation engine and record lookups on top of
// the query planner and an Executor.
//
// Every public operation runs with an explicit per-call op state: the
// operation token, the event list, the statement quota and the set of records
// already deleted. Nothing is shared between calls except the Storage
// configuration, so a Storage is safe for concurrent use when its Executor is.
//
// Create walks the payload in field dependency order. Each link value lands in
// one of three places:
//   - our own row holds the foreign key: the related record is resolved
//     (attached by id or looked up and created) before our INSERT
//   - the related row holds the foreign key: it is created or attached after
//     our INSERT, with our fresh id injected
//   - the relation has its own table: a join row is inserted after both
//     endpoints exist
//
// Update diffs plain fields against the stored record and emits an update
// event only for changed attributes. Link fields are diffed as member sets:
// members present before and after stay linked, removed members are detached
// before new members are created and attached.
//
// Delete removes relation rows first, then every record that relies on the
// deleted one, then the record itself. Relation events always carry both
// endpoints as {id} objects.
//
// Events are returned in the order their statements ran. The engine never
// opens transactions; callers wanting atomicity run an operation against the
// executor handed out by store.DB.WithTx.
package engine
