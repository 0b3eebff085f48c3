// Package server exposes a store over HTTP and pushes state changes to
// websocket clients.
//
// Reads and writes are plain JSON endpoints:
//
//	GET  /state                 all values
//	GET  /state/{key}           one value
//	PUT  /state/{key}           write a value (body: JSON value)
//	POST /commit/{mutation}     run a mutation (body: JSON payload)
//	POST /dispatch/{action}     run an action (body: JSON payload)
//	GET  /getters/{name}        evaluate a getter
//	GET  /watch?keys=a,b        websocket session
//	GET  /metrics               Prometheus metrics
//	GET  /healthz               liveness
//
// A websocket session is a reactive.Subscriber. It reads its keys under its
// own evaluation context, so it is notified when any of them changes and
// then pushes a frame with the current values:
//
//	{"type":"state","seq":3,"values":{"count":2}}
//
// Clients may commit mutations over the same socket:
//
//	{"type":"commit","mutation":"increment","payload":{"key":"count"}}
//
// Notification never blocks the writer. When a session's send buffer is
// full the frame is dropped and the write reports ErrSlowConsumer through
// its aggregated notification error.
package server
