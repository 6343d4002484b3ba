// Package store implements the authority repositories on SQLite.
//
// Uniqueness (driver service name, driver host:port, attribute name per
// driver) and references between records are enforced by the schema;
// violations surface as authority.ErrConflict. Deleting an attribute
// definition that still has values therefore fails at the database as well
// as in the registrar's reconciliation.
package store
