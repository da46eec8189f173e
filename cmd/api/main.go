package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admissions-api/config"
	"admissions-api/controllers"
	"admissions-api/middleware"
	"admissions-api/monitor"
	"admissions-api/routes"
	"admissions-api/services"
	"admissions-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	closeLog := config.InitLogging("logs")
	defer closeLog()

	settings := config.LoadSettings()

	db, err := config.InitDB(settings)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := config.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	codec, err := utils.NewIDCodec(settings.ProgramCode, settings.AdmissionYear, settings.IDSecret)
	if err != nil {
		log.Fatalf("id codec: %v", err)
	}

	blobs, err := newBlobStore(settings)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	var notifier services.Notifier = services.LogNotifier{}
	if mailer := config.LoadMailerSettings(); mailer.Configured() {
		notifier = services.NewSMTPNotifier(mailer)
	} else {
		log.Printf("SMTP is not configured; notifications will only be logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notices := services.NewNotices(codec, settings.AdminNotifyEmail, settings.AppBaseURL)
	dispatcher := services.NewDispatcher(db, notifier, settings.OutboxPollInterval)
	ledger := services.NewPaymentLedgerService(db, blobs, notices)
	auth := services.NewAuthService(db, settings.JWTSecret)
	handlers := &controllers.Handlers{
		Apps:      services.NewApplicationService(db, codec, notices, ledger),
		Ledger:    ledger,
		Docs:      services.NewDocumentService(db, blobs, notices),
		Auth:      auth,
		Broadcast: services.NewBroadcastService(db, notifier, settings.BroadcastWorkers),
		Reminders: services.NewEMIReminderJob(db, notices, dispatcher),
		Dashboard: services.NewDashboardService(db),
		Outbox:    dispatcher,
		Monitor:   monitor.New(db, config.LogPath),
	}

	if err := auth.EnsureAdmin(ctx, "", settings.AdminBootstrapEmail, settings.AdminBootstrapPassword); err != nil {
		log.Printf("Warning: failed to create bootstrap admin: %v", err)
	}

	go dispatcher.Run(ctx)

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(settings.EMIReminderCron, func() {
		if _, err := handlers.Reminders.Run(ctx); err != nil {
			log.Printf("scheduled emi reminder sweep: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid EMI_REMINDER_CRON %q: %v", settings.EMIReminderCron, err)
	}
	scheduler.Start()
	log.Printf("EMI reminder sweep scheduled (%s)", settings.EMIReminderCron)

	if settings.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter

	router := gin.New()
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})
	router.Use(middleware.CORSMiddleware(settings.CORSOrigins))

	routes.SetupRoutes(router, handlers)

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server starting on port %s (environment=%s, db=%s, blobs=%s)",
			settings.Port, settings.Environment, settings.DBDriver, settings.BlobBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	handlers.Broadcast.Wait()
}

func newBlobStore(settings config.Settings) (services.BlobStore, error) {
	switch settings.BlobBackend {
	case "cloudinary":
		store, err := services.NewCloudinaryBlobStore(settings.CloudinaryURL, "admissions")
		if err != nil {
			return nil, err
		}
		return store, nil
	case "", "local":
		store, err := services.NewLocalBlobStore(settings.UploadPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.New("unknown BLOB_BACKEND " + settings.BlobBackend)
	}
}
