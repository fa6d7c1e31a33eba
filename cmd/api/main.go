// Package main is the API server entry point.
package main

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/form-forge/internal/auth"
	"github.com/yourusername/form-forge/internal/config"
	"github.com/yourusername/form-forge/internal/logging"
	"github.com/yourusername/form-forge/internal/xfa"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.GetLogger().Fatalf("Failed to load config: %v", err)
	}

	if cfg.GinMode == gin.DebugMode {
		logging.Init(logrus.DebugLevel)
	} else {
		logging.Init(logrus.InfoLevel)
	}
	log := logging.GetLogger()

	gin.SetMode(cfg.GinMode)

	// Default middleware: Logger, Recovery
	router := gin.Default()

	if cfg.AuthEnabled() {
		store := cookie.NewStore([]byte(cfg.SessionSecret))
		store.Options(sessions.Options{
			Path:     "/",
			MaxAge:   auth.SessionMaxAgeSeconds(),
			HttpOnly: true,
			Secure:   cfg.GinMode == gin.ReleaseMode,
			SameSite: http.SameSiteStrictMode,
		})
		router.Use(sessions.Sessions(auth.SessionCookieName, store))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token",
	}
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token", "Content-Disposition", "X-Job-Id"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg)

	addr := ":" + cfg.Port
	log.Infof("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "form-forge-api",
		"version": "0.1.0",
	})
}

// setupRoutes wires the API groups, authentication and the job queue.
func setupRoutes(router *gin.Engine, cfg *config.Config) {
	log := logging.GetLogger()

	router.GET("/health", handleHealth)

	xfaService := xfa.NewService(cfg)

	opts := xfa.HandlerOptions{
		AsyncThresholdBytes: cfg.AsyncThresholdBytes,
		AsyncThresholdPages: cfg.AsyncThresholdPages,
		MaxUploadBytes:      cfg.MaxUploadBytes,
	}

	jobManager, err := setupJobs(cfg, xfaService)
	if err != nil {
		// No queue means every request runs inline; the sync contract is
		// unaffected, so start anyway.
		log.Warnf("job queue disabled: %v", err)
	} else {
		jobManager.StartWorkers()
		opts.Scheduler = &formJobScheduler{manager: jobManager}
	}

	authManager := auth.NewManager(cfg)

	api := router.Group("/api")
	{
		if cfg.AuthEnabled() {
			authRoutes := api.Group("/auth")
			{
				// No session exists yet at login, so no CSRF check there.
				authRoutes.POST("/login", authManager.Login)
				authRoutes.POST("/logout",
					authManager.RequireLogin(),
					authManager.VerifyCSRF(),
					authManager.Logout,
				)
			}
		}

		protected := api.Group("")
		if cfg.AuthEnabled() {
			protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		}
		{
			protected.POST("/xfa/fields", xfa.AnalyzeHandler(xfaService, opts))
			protected.POST("/xfa/fill", xfa.FillHandler(xfaService, opts))
			protected.POST("/xfa/inspect", xfa.InspectHandler(xfaService, opts))

			if jobManager != nil {
				protected.GET("/jobs/:id", jobStatusHandler(jobManager))
				protected.GET("/jobs/:id/download", jobDownloadHandler(xfaService))
			}
		}
	}
}
