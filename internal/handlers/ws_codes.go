// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby status watch.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidLobbyIDError = 3003 // The watched lobby does not exist, or no longer does.
)
