package devtools

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kandev/hsm/internal/hsmlog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetupRoutes mounts the inspector's websocket endpoint and a client-count
// status route onto router, grounded on the reference host's gin
// route-group convention.
func SetupRoutes(router *gin.RouterGroup, hub *Hub, log *hsmlog.Logger) {
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"clients": hub.ClientCount()})
	})

	router.GET("/stream/:serviceId", func(c *gin.Context) {
		serviceID := c.Param("serviceId")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("devtools websocket upgrade failed")
			return
		}

		client := NewClient(uuid.New().String(), conn, hub, log)
		hub.Register(client)
		hub.Subscribe(client, serviceID)

		go client.WritePump()
	})
}
