// Package registrar registers a driver with the configuration authority.
//
// Registration is an upsert keyed by service name, followed by a three-way
// reconciliation of the driver's declared attribute definitions against the
// ones the authority stores:
//
//	declared only  → created
//	both           → updated, keeping the stored id
//	stored only    → deleted, unless attribute values reference it
//
// A referenced stale definition aborts registration with ErrAttributeInUse;
// values are never orphaned. Register is idempotent and safe to retry.
package registrar
