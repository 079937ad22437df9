// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between boundaries and makes the
// durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second

// AgentDecision caps a single bot action computation. The takeover
// controller substitutes the safe default action once this elapses.
const AgentDecision = 3 * time.Second

// ReplayDelivery caps the wait for a reconnecting client to acknowledge
// its flushed replay batch before live events resume.
const ReplayDelivery = 10 * time.Second
