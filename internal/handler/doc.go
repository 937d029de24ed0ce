// Package handler implements the HTTP API of the monitor: the current
// board, manual scan triggers, snapshot history, the batch probe endpoint
// served to peer instances, and a websocket stream of board updates.
package handler
