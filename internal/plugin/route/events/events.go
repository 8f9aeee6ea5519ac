// Package events implements the WebSocket listener endpoint, upgrading
// a connection and registering it with the event hub for the duration
// of the socket's life.
package events

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// MountRoutes mounts the namespace WebSocket endpoint under /v1.
func MountRoutes(r *gin.Engine, a *app.App, auth gin.HandlerFunc) {
	r.GET("/v1/ws/:namespace", auth, func(c *gin.Context) { serveWS(c, a) })
}

func serveWS(c *gin.Context, a *app.App) {
	namespace := c.Param("namespace")
	if namespace == "" {
		namespace = security.DefaultNamespace
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	a.Hub.Connect(namespace, conn)
	defer a.Hub.Disconnect(namespace, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
