package server

import "sync/atomic"

// Stats is a point-in-time copy of the server counters.
type Stats struct {
	Requests       int64 `json:"requests"`
	Writes         int64 `json:"writes"`
	WatchClients   int64 `json:"watchClients"`
	MessagesSent   int64 `json:"messagesSent"`
	ClientsDropped int64 `json:"clientsDropped"`
}

// statsCollector holds the live counters.
type statsCollector struct {
	requests       atomic.Int64
	writes         atomic.Int64
	watchClients   atomic.Int64
	messagesSent   atomic.Int64
	clientsDropped atomic.Int64
}

// Snapshot returns the current counter values.
func (m *statsCollector) Snapshot() Stats {
	return Stats{
		Requests:       m.requests.Load(),
		Writes:         m.writes.Load(),
		WatchClients:   m.watchClients.Load(),
		MessagesSent:   m.messagesSent.Load(),
		ClientsDropped: m.clientsDropped.Load(),
	}
}
