package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/mlukic/sprintsync-api/internal/config"
	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/mlukic/sprintsync-api/internal/handlers"
	authmw "github.com/mlukic/sprintsync-api/internal/middleware"
	"github.com/mlukic/sprintsync-api/internal/services"
	"github.com/mlukic/sprintsync-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userService := services.NewUserService(db)
	identityService := services.NewIdentityService(db)
	authService := services.NewAuthService(userService, jwtService)
	authzService := services.NewAuthzService(db)
	visibilityService := services.NewVisibilityService(db)
	projectService := services.NewProjectService(db, authzService)
	taskService := services.NewTaskService(db, authzService)
	aiService := services.NewAIService(cfg.OpenAI, projectService)

	authHandler := handlers.NewAuthHandler(authService, userService)
	userHandler := handlers.NewUserHandler(userService, authzService)
	projectHandler := handlers.NewProjectHandler(projectService, visibilityService)
	memberHandler := handlers.NewMemberHandler(projectService)
	taskHandler := handlers.NewTaskHandler(taskService, visibilityService)
	aiHandler := handlers.NewAIHandler(aiService)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(authmw.Auth(jwtService, identityService))

	protected.Get("/users", userHandler.List)
	protected.Get("/users/me", authHandler.Me)

	protected.Get("/projects", projectHandler.List)
	protected.Post("/projects", projectHandler.Create)
	protected.Get("/projects/:id", projectHandler.Get)
	protected.Patch("/projects/:id", projectHandler.Update)
	protected.Delete("/projects/:id", projectHandler.Delete)
	protected.Get("/projects/:id/members", memberHandler.List)
	protected.Post("/projects/:id/members", memberHandler.Add)
	protected.Patch("/projects/:id/members/:userId", memberHandler.UpdateRole)
	protected.Delete("/projects/:id/members/:userId", memberHandler.Remove)
	protected.Get("/projects/:id/tasks", taskHandler.ListForProject)

	protected.Get("/tasks", taskHandler.List)
	protected.Post("/tasks", taskHandler.Create)
	protected.Get("/tasks/assigned", taskHandler.ListAssigned)
	protected.Get("/tasks/:id", taskHandler.Get)
	protected.Patch("/tasks/:id", taskHandler.Update)
	protected.Delete("/tasks/:id", taskHandler.Delete)
	protected.Post("/tasks/:id/assign", taskHandler.Assign)
	protected.Patch("/tasks/:id/status", taskHandler.UpdateStatus)
	protected.Post("/tasks/:id/time", taskHandler.LogTime)

	protected.Get("/ai/status", aiHandler.Status)
	protected.Post("/ai/suggest/task-description", aiHandler.SuggestDescription)
	protected.Post("/ai/suggest/task-title", aiHandler.SuggestTitles)
	protected.Post("/ai/suggest/assignee", aiHandler.SuggestAssignee)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Msg("Server starting")
		if err := app.Run(addr); err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server")
}
