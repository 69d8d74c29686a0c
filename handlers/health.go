package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/config"
	"github.com/casehub/casehub/database"
)

// HandleCheckHealth reports liveness, database reachability and whether the
// external services are configured.
func HandleCheckHealth(store *database.GORMStore, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "ok"
		dbStatus := "ok"
		if err := store.HealthCheck(); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
		}
		ragStatus := "configured"
		if cfg.RagflowBaseURL == "" || cfg.RagflowAPIKey == "" {
			ragStatus = "unconfigured"
		}
		storageStatus := "configured"
		if cfg.MinioEndpoint == "" {
			storageStatus = "unconfigured"
		}
		return c.JSON(fiber.Map{
			"status":   status,
			"database": dbStatus,
			"ragflow":  ragStatus,
			"storage":  storageStatus,
		})
	}
}
