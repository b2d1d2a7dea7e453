// Package server exposes one scenario graph over HTTP and WebSocket.
//
// All graph access goes through a single mutex, since a reactive runtime is
// confined to one goroutine at a time. Every write is followed by a flush,
// which runs the watch effects and pushes changed node states to the
// connected WebSocket clients.
//
// # Routes
//
//	GET    /healthz               liveness and server counters
//	GET    /nodes                 state of every node, without evaluating
//	GET    /nodes/{name}          evaluates the node and returns its state
//	PUT    /nodes/{name}          {"value": 3} sets a source or writes a writable
//	DELETE /nodes/{name}          destroys a derived, writable or effect
//	GET    /watch                 WebSocket stream of node states
//	GET    /metrics               Prometheus metrics
//	GET    /snapshots             stored snapshot keys (with a Store)
//	POST   /snapshots/{key}       saves a snapshot of the graph
//	POST   /snapshots/{key}/restore restores a stored snapshot
//
// # Example Usage
//
//	g, _ := scenario.Build(rt, sc)
//	srv := server.New(g, &server.ServerConfig{Address: ":7070"})
//	srv.Run()
package server
