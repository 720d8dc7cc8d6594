package http

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"gopherai-chat/internal/bootstrap"
	"gopherai-chat/internal/transport/http/handler"
	"gopherai-chat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) http.Handler {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	sessionHandler := handler.NewSessionHandler(app.Conversations)
	fileHandler := handler.NewFileHandler(app.Files)
	chatHandler := handler.NewChatHandler(app.Chat)

	router.GET("/healthz", healthHandler.Check)

	api := router.Group(app.Config.App.APIPrefix)
	api.GET("/", healthHandler.Root)
	api.POST("/upload", fileHandler.Upload)
	api.GET("/files/:id", fileHandler.Download)
	api.POST("/chat/stream", chatHandler.Stream)
	api.GET("/sessions", sessionHandler.List)
	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions/:id/messages", sessionHandler.Messages)
	api.DELETE("/sessions/:id", sessionHandler.Delete)

	return cors.New(corsOptions(app.Config.CORS.Origins)).Handler(router)
}

// corsOptions allows credentials, so a "*" entry is answered by echoing the
// caller's origin; browsers reject a literal "*" on credentialed requests.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
	if slices.Contains(origins, "*") {
		opts.AllowOriginFunc = func(string) bool { return true }
		return opts
	}
	opts.AllowedOrigins = origins
	return opts
}
