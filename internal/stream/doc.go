// Package stream exposes the streaming client consumed by dashboard
// collaborators.
//
// A single Client instance is constructed at application start and passed
// by reference to anything that needs live data; there is no global
// socket singleton. Collaborators use the typed SubscribeX helpers and
// hold only opaque unsubscribe handles, so delivery-callback lifetime is
// decoupled from any UI component lifecycle.
package stream
