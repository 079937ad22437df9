// Package domain defines the session continuity data model: game sessions
// with fixed participant slots, participant control status, transport
// connections, queued replay messages, and the outbound notice union.
//
// Participant identity is stable across reconnects and independent of the
// transient transport connection. Connections are owned by the connection
// registry; participants and sessions are owned by the session registry.
package domain
