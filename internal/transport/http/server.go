package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"lumina-research/internal/bootstrap"
	"lumina-research/internal/transport/http/handler"
	"lumina-research/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, dependencyChecks(app))
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	libraryHandler := handler.NewLibraryHandler(app.Workspace)
	researchHandler := handler.NewResearchHandler(app.Research)
	generationHandler := handler.NewGenerationHandler(app.Generator)

	v1 := router.Group("/api/v1")

	// Service-to-service contract consumed by ai.RemoteGenerator.
	generation := v1.Group("/generation")
	generation.POST("/analyze", generationHandler.Analyze)
	generation.POST("/research", generationHandler.Research)
	generation.POST("/synthesize", generationHandler.Synthesize)

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/session", authHandler.Session)
	authGroup.POST("/logout", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Logout)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	api := v1.Group("")
	api.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	RegisterLibraryRoutes(api, libraryHandler, researchHandler)

	return router
}

// RegisterLibraryRoutes mounts the library and research endpoints on group.
func RegisterLibraryRoutes(group *gin.RouterGroup, lib *handler.LibraryHandler, research *handler.ResearchHandler) {
	group.GET("/workspace", lib.State)
	group.POST("/workspace/navigate", lib.Navigate)
	group.POST("/workspace/folder", lib.SelectFolder)

	group.GET("/folders", lib.ListFolders)
	group.POST("/folders", lib.CreateFolder)
	group.GET("/folders/:id/synthesis", lib.SynthesisStatus)
	group.POST("/folders/:id/synthesis/refresh", lib.RefreshSynthesis)

	group.GET("/documents", lib.ListDocuments)
	group.POST("/documents", lib.AddDocument)
	group.POST("/documents/close", lib.CloseDocument)
	group.GET("/documents/:id", lib.GetDocument)
	group.PATCH("/documents/:id", lib.RenameDocument)
	group.DELETE("/documents/:id", lib.DeleteDocument)
	group.POST("/documents/:id/move", lib.MoveDocument)
	group.POST("/documents/:id/analyze", lib.AnalyzeDocument)
	group.POST("/documents/:id/open", lib.OpenDocument)
	group.PUT("/documents/:id/notes", lib.EditNotes)
	group.POST("/documents/:id/notes/save", lib.SaveNotes)
	group.POST("/documents/:id/notes/enter", lib.EnterNotes)
	group.POST("/documents/:id/notes/leave", lib.LeaveNotes)

	group.POST("/citations/export", lib.ExportCitations)

	group.POST("/research", research.Stream)
	group.POST("/research/saved", research.Saved)
}

func dependencyChecks(app *bootstrap.App) map[string]handler.DependencyCheck {
	checks := make(map[string]handler.DependencyCheck)
	if app.MySQL != nil {
		checks["mysql"] = func(ctx context.Context) error {
			sqlDB, err := app.MySQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}
	if app.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if app.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}
