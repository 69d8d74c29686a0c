package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/casehub/casehub/api"
	"github.com/casehub/casehub/config"
	"github.com/casehub/casehub/database"
	"github.com/casehub/casehub/router"
	"github.com/casehub/casehub/services/cron"
	"github.com/casehub/casehub/services/storage"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Make sure the document buckets exist before serving uploads
	objectStore, err := storage.NewClient(storage.Config{
		Endpoint:      getEnv.MinioEndpoint,
		AccessKey:     getEnv.MinioAccessKey,
		SecretKey:     getEnv.MinioSecretKey,
		Region:        getEnv.MinioRegion,
		BucketPending: getEnv.MinioBucketPending,
		BucketKB:      getEnv.MinioBucketKB,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		log.Printf("Warning: failed to ensure storage buckets: %v", err)
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.DB())
		if err := cronManager.Start(); err != nil {
			log.Printf("Warning: Failed to start cron jobs: %v", err)
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.Port))
	app := server.GetEngine()

	// Attach Middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Setup Routes
	if err := router.SetupRoutes(app, store, getEnv); err != nil {
		return err
	}

	// Get the PORT & Start the Server
	return server.Run()

}
