// Package router implements the message router.
//
// The router parses inbound frames from the connection manager and
// dispatches them: control frames (pong, auth_response) go back to the
// manager, data frames fan out to the subscription registry's callbacks.
// Unparseable frames are logged and dropped; unknown types are ignored so
// server-added message types never crash older clients.
package router
