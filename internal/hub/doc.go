// Package hub serves dashboard browser sessions over WebSocket.
//
// Each session subscribes to channels with JSON commands; the hub maps
// those onto the shared streaming client's ref-counted registry, so any
// number of panels watching the same symbol share one upstream
// subscription. Session teardown releases its handles, which is the only
// cleanup the registry needs.
package hub
