package feed

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler attaches a websocket subscriber to the listing event feed.
// The socket is write-only from the server's perspective; incoming
// frames are drained and dropped.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.AddWS(ws)
		defer hub.RemoveWS(ws)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}
}
