package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a websocket connection to the hub for one session's
// update stream. Blocks until the peer disconnects.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string) {
	client := &Client{Hub: hub, Conn: c, SessionID: sessionID, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
