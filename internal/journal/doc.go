// Package journal records connection lifecycle events to PostgreSQL.
//
// The dashboard shows live state from memory; the journal exists for
// after-the-fact questions ("how often did we reconnect last night?").
// It is optional and strictly best effort.
package journal
