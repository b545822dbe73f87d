// Package firebase owns the process-wide Firebase app and the clients derived from it.
//
// Init is idempotent: the first successful call builds the app, later calls return the same
// instance until Teardown resets it. Every other package receives the clients it needs from
// the returned App rather than reaching for globals.
package firebase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"storefront-backend-go/internal/config"
)

// App bundles the initialised Firebase clients.
type App struct {
	Auth      *auth.Client
	Firestore *firestore.Client
	Bucket    *gcs.BucketHandle // nil when no storage bucket is configured
	Toolkit   *identitytoolkit.Service
}

var (
	mu      sync.Mutex
	current *App
)

// ErrNotInitialized is returned by Current before Init succeeded.
var ErrNotInitialized = errors.New("firebase: not initialized")

// Init initialises the Firebase Admin SDK and the Identity Toolkit client.
// Calling it again after a successful call returns the existing App.
func Init(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*App, error) {
	if appConfig == nil {
		return nil, errors.New("firebase.Init: appConfig cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		logger.Debug("Firebase already initialized, reusing app")
		return current, nil
	}

	credsOption, err := credentialsOption(appConfig, logger)
	if err != nil {
		return nil, err
	}

	fbConfig := &firebase.Config{
		ProjectID:     appConfig.FirebaseProjectID,
		StorageBucket: appConfig.FirebaseStorageBucket,
	}

	var fbApp *firebase.App
	if credsOption != nil {
		fbApp, err = firebase.NewApp(ctx, fbConfig, credsOption)
	} else {
		fbApp, err = firebase.NewApp(ctx, fbConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fsClient, err := fbApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}

	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		fsClient.Close()
		return nil, fmt.Errorf("app.Auth: %w", err)
	}

	var bucket *gcs.BucketHandle
	if appConfig.FirebaseStorageBucket != "" {
		storageClient, err := fbApp.Storage(ctx)
		if err != nil {
			fsClient.Close()
			return nil, fmt.Errorf("app.Storage: %w", err)
		}
		bucket, err = storageClient.DefaultBucket()
		if err != nil {
			fsClient.Close()
			return nil, fmt.Errorf("storage.DefaultBucket: %w", err)
		}
	} else {
		logger.Warn("FIREBASE_STORAGE_BUCKET not set, avatar uploads are disabled")
	}

	// The toolkit endpoints used here are authorised by the web API key alone.
	var toolkit *identitytoolkit.Service
	if appConfig.FirebaseWebAPIKey != "" {
		toolkit, err = identitytoolkit.NewService(ctx, option.WithAPIKey(appConfig.FirebaseWebAPIKey))
		if err != nil {
			fsClient.Close()
			return nil, fmt.Errorf("identitytoolkit.NewService: %w", err)
		}
	} else {
		logger.Warn("FIREBASE_WEB_API_KEY not set, password sign-in is unavailable")
	}

	current = &App{
		Auth:      authClient,
		Firestore: fsClient,
		Bucket:    bucket,
		Toolkit:   toolkit,
	}
	logger.Info("Firebase initialized",
		zap.String("projectID", appConfig.FirebaseProjectID),
		zap.Bool("storage", bucket != nil),
	)
	return current, nil
}

func credentialsOption(appConfig *config.Config, logger *zap.Logger) (option.ClientOption, error) {
	switch {
	case appConfig.GoogleApplicationCredentials != "":
		if _, err := os.Stat(appConfig.GoogleApplicationCredentials); os.IsNotExist(err) {
			logger.Warn("credentials file does not exist, the SDK may still fall back to ADC",
				zap.String("path", appConfig.GoogleApplicationCredentials))
		}
		return option.WithCredentialsFile(appConfig.GoogleApplicationCredentials), nil
	case appConfig.FirebaseServiceAccountJSONBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIREBASE_SERVICE_ACCOUNT_JSON_BASE64: %w", err)
		}
		return option.WithCredentialsJSON(decoded), nil
	default:
		logger.Info("using Application Default Credentials")
		return nil, nil
	}
}

// Current returns the initialised App.
func Current() (*App, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, ErrNotInitialized
	}
	return current, nil
}

// Initialized reports whether Init has succeeded and Teardown has not run since.
func Initialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return current != nil
}

// Teardown closes the clients and clears the initialised flag so Init can run again.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	var err error
	if current.Firestore != nil {
		err = current.Firestore.Close()
	}
	current = nil
	return err
}
