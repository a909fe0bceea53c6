package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tradectl/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams decisions and price ticks to the client until it
// disconnects or the bus closes the subscription.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	decisions, unsubDecisions := s.Bus.Subscribe(events.TopicDecision, 100)
	defer unsubDecisions()
	ticks, unsubTicks := s.Bus.Subscribe(events.TopicPriceTick, 100)
	defer unsubTicks()

	for {
		select {
		case msg, ok := <-decisions:
			if !ok {
				return
			}
			if err := conn.WriteJSON(gin.H{"type": "decision", "data": msg}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case msg, ok := <-ticks:
			if !ok {
				return
			}
			if err := conn.WriteJSON(gin.H{"type": "price_tick", "data": msg}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}
}
