// Package websocket streams job lifecycle events to clients.
//
// A client connects to /api/v1/analyses/:id/ws and receives a snapshot of
// the job followed by every event published for it. The connection is
// closed after the job reaches a terminal state.
package websocket
