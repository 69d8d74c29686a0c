package router

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/config"
	"github.com/casehub/casehub/database"
	"github.com/casehub/casehub/handlers"
	auth_handlers "github.com/casehub/casehub/handlers/auth"
	class_handlers "github.com/casehub/casehub/handlers/class"
	conversation_handlers "github.com/casehub/casehub/handlers/conversation"
	document_handlers "github.com/casehub/casehub/handlers/document"
	search_handlers "github.com/casehub/casehub/handlers/search"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/services/ragflow"
	"github.com/casehub/casehub/services/storage"
	"github.com/casehub/casehub/utils/cache"
)

// SetupRoutes wires services and handlers onto the Fiber app.
func SetupRoutes(app *fiber.App, store *database.GORMStore, cfg *config.Config) error {
	db := store.DB()

	objectStore, err := storage.NewClient(storage.Config{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Region:        cfg.MinioRegion,
		BucketPending: cfg.MinioBucketPending,
		BucketKB:      cfg.MinioBucketKB,
	})
	if err != nil {
		return err
	}

	ragClient := ragflow.NewClient(ragflow.Config{
		BaseURL:    cfg.RagflowBaseURL,
		APIKey:     cfg.RagflowAPIKey,
		HostHeader: cfg.RagflowHostHeader,
	})

	// Redis is optional: without it chunk previews just skip the cache.
	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Chunk preview caching disabled.", err)
			redisCache = nil
		}
	}

	// Services
	authService := services.NewAuthService(db, cfg.AllowPlaintextPasswords)
	scopeService := services.NewScopeService(db)
	classService := services.NewClassService(db, ragClient)
	documentService := services.NewDocumentService(db, scopeService, objectStore, ragClient)
	auditService := services.NewAuditService(db, scopeService, objectStore)
	embeddingService := services.NewEmbeddingService(db, scopeService, objectStore, ragClient)
	searchService := services.NewSearchService(db, scopeService, ragClient, redisCache)
	conversationService := services.NewConversationService(db, scopeService, ragClient)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(authService, classService)
	classHandler := class_handlers.NewClassHandler(authService, classService)
	documentHandler := document_handlers.NewDocumentHandler(authService, documentService, auditService, embeddingService)
	searchHandler := search_handlers.NewSearchHandler(authService, searchService)
	conversationHandler := conversation_handlers.NewConversationHandler(authService, conversationService)

	// Health check endpoint (public)
	app.Get("/health", handlers.HandleCheckHealth(store, cfg))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/register", authHandler.Register)

	// Classes
	classes := api.Group("/classes")
	classes.Get("/", classHandler.ListClasses)
	classes.Post("/", classHandler.CreateClass) // Admin only
	api.Get("/teachers/:teacher_id/classes", classHandler.TeacherClasses)

	// Documents
	documents := api.Group("/documents")
	documents.Get("/", documentHandler.List)
	documents.Post("/", documentHandler.Upload)
	documents.Get("/pending", documentHandler.ListPending) // Admin only
	documents.Get("/search", documentHandler.Search)
	documents.Get("/:id", documentHandler.Get)
	documents.Get("/:id/content", documentHandler.Content)
	documents.Put("/:id/name", documentHandler.Rename)
	documents.Delete("/:id", documentHandler.Delete)
	documents.Post("/:id/decision", documentHandler.Decide) // Admin only
	documents.Get("/:id/audits", documentHandler.AuditHistory)
	documents.Post("/:id/embed", documentHandler.Embed)
	documents.Get("/:id/embedding-tasks", documentHandler.EmbeddingTasks)
	documents.Get("/:id/chunks/:chunk_id", searchHandler.ChunkPreview)

	// Review decisions (admin only)
	audits := api.Group("/audits")
	audits.Get("/", documentHandler.ListDecided)
	audits.Get("/:audit_id", documentHandler.AuditDetail)

	// Search
	searchGroup := api.Group("/search")
	searchGroup.Post("/", searchHandler.Search)
	searchGroup.Get("/logs", searchHandler.Logs)
	searchGroup.Get("/stats", searchHandler.Stats) // Admin only

	// Conversations
	conversations := api.Group("/conversations")
	conversations.Post("/", conversationHandler.Create)
	conversations.Get("/", conversationHandler.List)
	conversations.Get("/:id", conversationHandler.Get)
	conversations.Post("/:id/messages", conversationHandler.SendMessage)
	conversations.Put("/:id/settings", conversationHandler.UpdateSettings)
	conversations.Put("/:id/name", conversationHandler.Rename)
	conversations.Post("/:id/clear", conversationHandler.Clear)
	conversations.Delete("/:id", conversationHandler.Delete)

	return nil
}
