package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/taksu/verifier"
)

// SetupRouter sets up the Gin router
func SetupRouter(svc *verifier.Service, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(log), gin.Recovery())

	// Create handlers
	handlers := NewVerifierHandlers(svc)

	router.GET("/healthz", handlers.Healthz)

	// Challenge routes
	mm := router.Group("/metamask")
	{
		mm.GET("/generatenonce", handlers.GenerateNonce)
		mm.GET("/verify/message", handlers.VerifyMessage)
	}

	return router
}
