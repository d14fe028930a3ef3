package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/internal/profile"
	"github.com/hrygo/yougpt/plugin/markdown"
)

type APIV1Service struct {
	// Domain Services
	ConversationService *ConversationService
	SystemService       *SystemService
	EventService        *EventService

	// Shared Infra
	Profile *profile.Profile
	Chat    *chat.Service
}

func NewAPIV1Service(profile *profile.Profile, svc *chat.Service, bus *chat.EventBus) *APIV1Service {
	return &APIV1Service{
		Profile:             profile,
		Chat:                svc,
		ConversationService: NewConversationService(svc, markdown.NewRenderer()),
		SystemService:       &SystemService{Chat: svc, Profile: profile},
		EventService:        NewEventService(bus),
	}
}

// RegisterRoutes mounts the REST API on echoServer.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	corsHandler := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	})
	// The event stream must not be buffered by gzip.
	gzip := middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/v1/events"
		},
	})
	g := echoServer.Group("/api/v1", corsHandler, gzip)

	g.GET("/conversations", s.ConversationService.ListConversations)
	g.POST("/conversations", s.ConversationService.CreateConversation)
	g.GET("/conversations/:id", s.ConversationService.GetConversation)
	g.POST("/conversations/:id/select", s.ConversationService.SelectConversation)
	g.DELETE("/conversations/:id", s.ConversationService.DeleteConversation)
	g.POST("/conversations/:id/messages", s.ConversationService.SendMessage)

	g.GET("/health", s.SystemService.GetHealth)
	g.GET("/model", s.SystemService.GetModel)
	g.GET("/status", s.SystemService.GetStatus)

	if s.EventService.Bus != nil {
		g.GET("/events", s.EventService.StreamEvents)
	}
}
