// Package authority defines the records and repository contracts of the
// configuration authority, the single source of truth for drivers, their
// attribute definitions, and the profile/device/point hierarchy they serve.
//
// # Architecture
//
//	┌──────────────────────────────┐        ┌──────────────────────────────┐
//	│        driver agent          │        │          authority           │
//	│                              │  HTTP  │                              │
//	│  registrar / cache ──▶ remote├───────▶│ api (chi) ──▶ store (SQLite) │
//	│        ▲                     │        │      │                       │
//	│        │ change events       │  MQTT  │      ▼                       │
//	│        └─────────────────────┤◀───────┤  event publisher             │
//	└──────────────────────────────┘        └──────────────────────────────┘
//
// Every implementation builds an *authority.Client (store.New,
// remote.Client.Authority, authoritytest.Authority.Client), so consumers
// never depend on the transport.
//
// # Errors
//
// Lookups of absent records return ErrNotFound. Failure envelopes received
// over HTTP become *EnvelopeError, which matches ErrRejected and the sentinel
// for its HTTP status.
package authority
