package server

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ymatsuda/bookmates-backend/internal/fanout"
	"github.com/ymatsuda/bookmates-backend/internal/handler"
	appmw "github.com/ymatsuda/bookmates-backend/internal/middleware"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
	"github.com/ymatsuda/bookmates-backend/internal/service"
	"github.com/ymatsuda/bookmates-backend/internal/ws"
	"gorm.io/gorm"
)

type Server struct {
	e           *echo.Echo
	msgRepo     repository.MessageRepository
	blockRepo   repository.BlockRepository
	listingRepo repository.ListingRepository
	broker      *fanout.Broker
	unread      service.UnreadService
	sha         string
	build       string
}

func New(db *gorm.DB, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			host := u.Hostname()
			if strings.HasSuffix(host, "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	broker := fanout.NewBroker()
	go broker.Run()

	msgRepo := repository.NewMessageRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	listingRepo := repository.NewListingRepository(db)

	// Block policy: whether a relation refuses sends in both directions
	// or only from the blocked party.
	blockBoth := os.Getenv("BLOCK_BOTH_DIRECTIONS") != "false"

	blockSvc := service.NewBlockService(blockRepo, blockBoth)
	unreadSvc := service.NewUnreadService(msgRepo)
	go unreadSvc.Run(broker)
	msgSvc := service.NewMessageService(msgRepo, blockSvc, unreadSvc, broker)
	convSvc := service.NewConversationService(msgRepo, unreadSvc)
	listingSvc := service.NewListingService(listingRepo, blockSvc)

	gateway := ws.NewGateway(broker, msgSvc, unreadSvc)
	unreadSvc.SetBadgeNotifier(gateway)
	wsHandler := ws.NewHandler(gateway)

	convHandler := handler.NewConversationHandler(msgSvc, convSvc, unreadSvc)
	blockHandler := handler.NewBlockHandler(blockSvc)
	listingHandler := handler.NewListingHandler(listingSvc)

	authMw, err := appmw.NewAuthMiddleware(context.Background())
	if err != nil {
		e.Logger.Warnf("firebase auth unavailable, running unauthenticated: %v", err)
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api")
	if authMw != nil {
		api.GET("/conversations", convHandler.List, authMw.RequireAuth)
		api.GET("/conversations/:uid/messages", convHandler.History, authMw.RequireAuth)
		api.POST("/conversations/:uid/messages", convHandler.Send, authMw.RequireAuth)
		api.POST("/conversations/:uid/read", convHandler.MarkRead, authMw.RequireAuth)
		api.GET("/me/unread", convHandler.Unread, authMw.RequireAuth)
		api.POST("/blocks", blockHandler.Create, authMw.RequireAuth)
		api.GET("/blocks", blockHandler.List, authMw.RequireAuth)
		api.POST("/listings", listingHandler.Create, authMw.RequireAuth)
		api.POST("/listings/:id/status", listingHandler.UpdateStatus, authMw.RequireAuth)
		api.GET("/listings", listingHandler.List, authMw.OptionalAuth)
		e.GET("/ws", wsHandler.Serve, authMw.RequireAuth)
	} else {
		api.GET("/conversations", convHandler.List)
		api.GET("/conversations/:uid/messages", convHandler.History)
		api.POST("/conversations/:uid/messages", convHandler.Send)
		api.POST("/conversations/:uid/read", convHandler.MarkRead)
		api.GET("/me/unread", convHandler.Unread)
		api.POST("/blocks", blockHandler.Create)
		api.GET("/blocks", blockHandler.List)
		api.POST("/listings", listingHandler.Create)
		api.POST("/listings/:id/status", listingHandler.UpdateStatus)
		api.GET("/listings", listingHandler.List)
		e.GET("/ws", wsHandler.Serve)
	}
	api.GET("/listings/:id", listingHandler.Get)

	return &Server{
		e:           e,
		msgRepo:     msgRepo,
		blockRepo:   blockRepo,
		listingRepo: listingRepo,
		broker:      broker,
		unread:      unreadSvc,
		sha:         sha,
		build:       buildTime,
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// SetDB injects the connection once it is available; until then the
// repositories answer with store-not-ready.
func (s *Server) SetDB(db *gorm.DB) {
	if s.msgRepo != nil {
		s.msgRepo.SetDB(db)
	}
	if s.blockRepo != nil {
		s.blockRepo.SetDB(db)
	}
	if s.listingRepo != nil {
		s.listingRepo.SetDB(db)
	}
}

// Shutdown stops the fan-out machinery.
func (s *Server) Shutdown() {
	s.unread.Stop()
	s.broker.Stop()
}
