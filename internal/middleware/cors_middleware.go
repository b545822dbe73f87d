package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront-backend-go/internal/config"
)

// DeviceHeader identifies the browser a session is opened from.
const DeviceHeader = "X-Device-ID"

// CORSMiddleware allows the storefront origins listed in CLIENT_URL (comma separated).
func CORSMiddleware(appConfig *config.Config) gin.HandlerFunc {
	if appConfig == nil || appConfig.ClientURL == "" {
		panic("ClientURL for CORS is not configured")
	}

	var origins []string
	for _, o := range strings.Split(appConfig.ClientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", SessionHeader, DeviceHeader},
		ExposeHeaders:    []string{"Content-Length", SessionHeader, DeviceHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
