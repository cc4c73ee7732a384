package server

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	log "github.com/sirupsen/logrus"
)

func (s *FiberServer) RegisterFiberRoutes(origins string) {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type," + PrincipalHeader,
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	s.RegisterGameRoutes()

	if s.deps.Hub != nil {
		s.App.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		s.App.Get("/ws", websocket.New(s.eventsWebSocketHandler))
	}
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"status": "ok",
		"game": fiber.Map{
			"height": s.deps.Clock.Height(),
		},
	}
	if s.deps.Hub != nil {
		health["game"].(fiber.Map)["connected_clients"] = s.deps.Hub.ClientCount()
	}
	for name, checker := range s.deps.Health {
		health[name] = checker.Health()
	}
	return c.JSON(health)
}

// eventsWebSocketHandler streams committed events. ?player= narrows the
// stream to one player's events.
func (s *FiberServer) eventsWebSocketHandler(conn *websocket.Conn) {
	player := conn.Query("player", "")
	logger := s.logger.WithField("player", player)
	logger.Info("websocket connected")

	client := s.deps.Hub.Register(conn, player)
	defer s.deps.Hub.Unregister(client)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Debug("websocket read ended")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			if err := client.Write(pong); err != nil {
				logger.WithFields(log.Fields{"error": err}).Warn("pong failed")
				return
			}
		}
	}
}
