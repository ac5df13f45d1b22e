package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bookring/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type incomingMessage struct {
	Text string `json:"text"`
}

// HistoryHandler serves a conversation's stored messages. The caller
// must be one of the two participants.
func HistoryHandler(repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		peer := strings.TrimSpace(c.Param("peer"))
		if peer == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "peer is required"})
			return
		}

		roomID := ConversationID(claims.UserID, peer)
		history, err := repo.History(c.Request.Context(), roomID, HistoryLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"room":  roomID,
			"items": history,
		})
	}
}

// WSHandler opens a conversation socket. Browsers cannot set an
// Authorization header on websocket dials, so the token rides in a
// query parameter instead.
func WSHandler(hub *Hub, repo *Repo, tokens auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		claims, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		peer := strings.TrimSpace(c.Query("peer"))
		if peer == "" || peer == claims.UserID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "peer is required"})
			return
		}

		roomID := ConversationID(claims.UserID, peer)

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		history, err := repo.History(c.Request.Context(), roomID, HistoryLimit)
		if err != nil {
			log.Printf("[chat] history load failed for %s: %v", roomID, err)
		}
		for _, msg := range history {
			_ = ws.WriteJSON(msg)
		}

		hub.Join(roomID, ws, claims.UserID)

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				break
			}

			text := ""
			var incoming incomingMessage
			if err := json.Unmarshal(payload, &incoming); err == nil {
				text = strings.TrimSpace(incoming.Text)
			} else {
				text = strings.TrimSpace(string(payload))
			}
			if text == "" {
				continue
			}

			msg := Message{
				Type:   "message",
				Room:   roomID,
				Sender: claims.UserID,
				Text:   text,
				At:     time.Now().UTC(),
			}

			if err := repo.Save(c.Request.Context(), msg); err != nil {
				log.Printf("[chat] save failed for %s: %v", roomID, err)
				continue
			}
			hub.Broadcast(msg)
		}

		hub.Leave(roomID, ws)
	}
}
