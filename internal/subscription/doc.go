// Package subscription implements the ref-counted subscription registry.
//
// The registry is the single source of truth for what the application
// currently wants to receive. Entries are deduplicated by a normalized
// (channel, params) key, so N consumers of the same stream share exactly
// one upstream subscription. After any reconnect the manager replays the
// registry, making connection loss transparent to consumers.
package subscription
