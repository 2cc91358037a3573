package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	config "github.com/sociantra/sociantra/configs"
	"github.com/sociantra/sociantra/internal/api/handlers"
	"github.com/sociantra/sociantra/internal/api/middleware"
	job "github.com/sociantra/sociantra/internal/jobs"
	"github.com/sociantra/sociantra/internal/queue"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/service"
	"github.com/sociantra/sociantra/internal/tenant"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone %q: %v", cfg.SchedulerTimezone, err)
	}

	registry := tenant.NewRegistry(cfg.TenantPostgresURI, tenant.OpenPostgres)
	defer registry.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	connectedAccountRepo := repository.NewConnectedAccountRepository(db)
	settingsRepository := repository.NewSettingsRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	tenantStores := service.NewTenantStores(userRepo, registry)

	authService := service.NewAuthService(*cfg, userRepo, settingsRepository, registry)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	aiService := service.NewAIService(*cfg)
	linkedinService := service.NewLinkedinService(*cfg, connectedAccountRepo)
	whatsappService := service.NewWhatsappService(*cfg)
	instagramService := service.NewInstagramService(*cfg, connectedAccountRepo)
	platformService := service.NewPlatformService(*cfg, connectedAccountRepo)
	settingsService := service.NewSettingsService(settingsRepository)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)
	publishService := service.NewPublishService(connectedAccountRepo, settingsRepository,
		aiService, linkedinService, whatsappService, instagramService, r2Service, tenantStores)
	scheduleService := service.NewScheduleService(tenantStores, loc)
	postService := service.NewPostService(connectedAccountRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)
	tenantMiddleware := middleware.NewTenantMiddleware(userRepo, registry)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", auth.Logout)

	platform := handlers.NewPlatformHandler(platformService, linkedinService, instagramService, *cfg)
	app.Get("/auth/:platform", platform.ConnectAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	webhook := handlers.NewWebhookHandler(whatsappService)
	app.Get("/webhook/whatsapp", webhook.VerifyWhatsapp)
	app.Post("/webhook/whatsapp", webhook.ReceiveWhatsapp)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())
	api.Use(tenantMiddleware.TenantMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Post("/user/remove", user.RemoveUser)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	schedule := handlers.NewScheduleHandler(scheduleService)
	api.Post("/schedules/create", schedule.CreateSchedule)
	api.Get("/schedules", schedule.ListSchedules)
	api.Post("/schedules/activate", schedule.ActivateSchedule)
	api.Post("/schedules/deactivate", schedule.DeactivateSchedule)
	api.Post("/schedules/remove", schedule.DeleteSchedule)
	api.Get("/history", schedule.ListHistory)

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)

	// connected accounts api routes
	api.Get("/accounts", platform.ListAccounts)
	api.Post("/accounts/remove", platform.DeleteAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(connectedAccountRepo, linkedinService, instagramService)
	scheduleRunner := job.NewScheduleRunner(userRepo, connectedAccountRepo, tenantStores, publishService, loc)

	//queue
	queueW := queue.NewQueue(publishService)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", scheduleRunner.Run)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db, registry)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, registry *tenant.Registry) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	registry.Close()
	closeDB(db)
	log.Println("Server shutdown complete.")
}
