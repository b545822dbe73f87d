package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront-backend-go/internal/api"
	"storefront-backend-go/internal/catalog"
	"storefront-backend-go/internal/config"
	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/crypto"
	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/events"
	"storefront-backend-go/internal/firebase"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/mailer"
	"storefront-backend-go/internal/metrics"
	"storefront-backend-go/internal/middleware"
	"storefront-backend-go/internal/mirror"
	"storefront-backend-go/internal/storage"
)

const sessionSweepInterval = time.Minute

func main() {
	// --- 1. Load .env (optional in production) ---
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	var zapLogger *zap.Logger
	var err error
	if strings.ToLower(os.Getenv("GIN_MODE")) == "release" {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 3. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 4. Initialize Firebase (Auth, Firestore, Storage, Identity Toolkit) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	fbApp, err := firebase.Init(initCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase", zap.Error(err))
	}

	// --- 5. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(fbApp.Firestore)
	testimonialRepo := db.NewFirestoreTestimonialRepository(fbApp.Firestore)
	orderRepo := db.NewFirestoreOrderRepository(fbApp.Firestore)

	// --- 6. Device mirror store ---
	var mirrorStore mirror.Store
	var redisStore *mirror.RedisStore
	if appConfig.RedisAddr != "" {
		redisStore, err = mirror.NewRedisStore(initCtx, mirror.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect mirror store", zap.Error(err))
		}
		mirrorStore = redisStore
		zapLogger.Info("Device mirror backed by Redis", zap.String("addr", appConfig.RedisAddr))
	} else {
		mirrorStore = mirror.NewMemoryStore()
		zapLogger.Warn("REDIS_ADDR not set; device mirror is kept in memory and lost on restart")
	}

	mirrorOpts := []mirror.Option{mirror.WithTTL(appConfig.MirrorTTL), mirror.WithLogger(zapLogger)}
	if appConfig.MirrorEncryptionKey != "" {
		sealer, err := crypto.NewSealerFromBase64(appConfig.MirrorEncryptionKey)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Invalid MIRROR_ENCRYPTION_KEY", zap.Error(err))
		}
		mirrorOpts = append(mirrorOpts, mirror.WithSealer(sealer))
	}
	mirrors := func(deviceID string) *mirror.Mirror {
		return mirror.New(mirrorStore, deviceID, mirrorOpts...)
	}

	// --- 7. Event publisher ---
	var publisher events.Publisher = events.NewNoop()
	if appConfig.RabbitMQURL != "" {
		rabbit, err := events.NewRabbit(appConfig.RabbitMQURL, appConfig.EventsExchange)
		if err != nil {
			zapLogger.Error("RabbitMQ unavailable, auth events will not be published", zap.Error(err))
		} else {
			publisher = rabbit
			zapLogger.Info("Publishing auth events", zap.String("exchange", appConfig.EventsExchange))
		}
	}

	// --- 8. Identity provider and catalogue ---
	var linkMailer identity.LinkMailer
	if appConfig.MailEnabled() {
		linkMailer = mailer.New(mailer.Config{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			Username: appConfig.SMTPUser,
			Password: appConfig.SMTPPass,
			Sender:   appConfig.MailSender,
		})
		zapLogger.Info("Action links are delivered through SMTP", zap.String("host", appConfig.SMTPHost))
	}
	provider := identity.NewFirebaseProvider(fbApp.Toolkit, fbApp.Auth, linkMailer, zapLogger)

	productCatalog, err := catalog.Load(appConfig.CatalogFile)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load product catalogue", zap.Error(err))
	}

	// --- 9. Initialize Services ---
	syncer := core.NewProfileSynchronizer(userRepo, provider, zapLogger)
	credentialService := core.NewCredentialService(provider, userRepo, publisher, zapLogger)

	var avatars core.AvatarUploader
	if fbApp.Bucket != nil {
		avatars = storage.NewAvatarStore(fbApp.Bucket, appConfig.FirebaseStorageBucket)
	} else {
		zapLogger.Warn("FIREBASE_STORAGE_BUCKET not set; avatar uploads are disabled")
	}
	profileService := core.NewProfileService(testimonialRepo, orderRepo, avatars, zapLogger)
	testimonialFeed := core.NewTestimonialFeed(testimonialRepo, productCatalog, appConfig.PublicTestimonialsLimit)

	sessionManager := core.NewSessionManager(provider, syncer, userRepo, testimonialRepo, mirrors,
		[]byte(appConfig.SessionSecret), appConfig.SessionTTL, zapLogger)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sessionManager.Run(sweepCtx, sessionSweepInterval)
	zapLogger.Info("Core services initialized successfully.")

	// --- 10. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	metrics.MustRegister()

	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))
	router.Use(middleware.Metrics())

	var google api.GoogleFlow
	if appConfig.GoogleOAuthEnabled() {
		google = identity.NewGoogleOAuth(appConfig.GoogleClientID, appConfig.GoogleClientSecret,
			appConfig.GoogleRedirectURL, appConfig.SessionSecret)
		zapLogger.Info("Google redirect sign-in enabled")
	}

	api.SetupRoutes(
		router,
		zapLogger,
		sessionManager,
		credentialService,
		profileService,
		testimonialFeed,
		google,
		primaryOrigin(appConfig.ClientURL),
		gin.Mode() == gin.ReleaseMode,
	)

	// --- 11. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 12. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Open event streams keep Shutdown waiting until shutdownCtx expires.
	stopSweeper()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		zapLogger.Warn("Failed to close event publisher", zap.Error(err))
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			zapLogger.Warn("Failed to close Redis", zap.Error(err))
		}
	}
	if err := firebase.Teardown(); err != nil {
		zapLogger.Warn("Failed to close Firebase clients", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}

// primaryOrigin is the first CLIENT_URL entry; OAuth redirects go back there.
func primaryOrigin(clientURL string) string {
	first, _, _ := strings.Cut(clientURL, ",")
	return strings.TrimRight(strings.TrimSpace(first), "/")
}
