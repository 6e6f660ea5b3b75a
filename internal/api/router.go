package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attend/internal/api/handlers"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/auth"
)

// Store is the slice of storage the HTTP layer reads from.
type Store interface {
	handlers.AttendanceStore
	handlers.StudentStore
	handlers.NotificationStore
}

type RouterConfig struct {
	APIKey      string
	MaxUploadMB int

	Store      Store
	Recognizer handlers.Recognizer
	Enroller   handlers.Enroller
	Ledger     handlers.Marker
	Cache      handlers.SignatureCache
	Policies   attendance.Policies
	Hub        *ws.Hub
	// Checks are reported by /readyz.
	Checks map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())
	if cfg.MaxUploadMB > 0 {
		r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	}

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Recognition
	recH := handlers.NewRecognizeHandler(cfg.Recognizer, cfg.Policies)
	v1.POST("/recognize", recH.Routine)
	v1.POST("/recognize/strict", recH.Strict)

	// Enrollment
	enrollH := handlers.NewEnrollHandler(cfg.Enroller)
	v1.POST("/enroll", enrollH.Enroll)

	// Attendance
	attH := handlers.NewAttendanceHandler(cfg.Ledger, cfg.Store, cfg.Policies)
	v1.POST("/attendance", attH.Mark)
	v1.GET("/attendance", attH.List)

	// Students & signatures
	studentH := handlers.NewStudentHandler(cfg.Store, cfg.Cache)
	v1.GET("/students", studentH.List)
	v1.GET("/students/search", studentH.Search)
	v1.GET("/signatures", studentH.Signatures)
	v1.POST("/signatures/reload", studentH.ReloadSignatures)

	// Notifications
	noteH := handlers.NewNotificationHandler(cfg.Store)
	v1.GET("/notifications", noteH.List)
	v1.POST("/notifications/:id/read", noteH.MarkRead)
	v1.POST("/notifications/read-all", noteH.MarkAllRead)

	return r
}
