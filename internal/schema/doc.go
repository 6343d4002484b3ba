// Package schema mirrors a driver's attribute definitions so that attribute
// values can be resolved to (name, type) without calling the authority.
//
// The maps are loaded once per registration and replaced atomically; the
// polling path reads them continuously without locking.
package schema
