// Package server implements the local HTTP status API for the capture client.
// It exposes health, session status, latest result and Prometheus metrics
// endpoints for animation and UI consumers.
package server
