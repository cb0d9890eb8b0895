package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yusufmusharrafm/attend-snap-track-now/internal/auth"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/config"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/directory"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/httpmiddleware"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/metrics"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/netprobe"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/qrimage"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/queue"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/record"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/scan"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/session"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/store"
	"github.com/yusufmusharrafm/attend-snap-track-now/internal/trust"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// sinkStore is what the API needs from its attendance sink.
type sinkStore interface {
	record.Sink
	record.Lister
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var (
		sink sinkStore
		db   *store.DB
	)
	switch cfg.SinkBackend {
	case "postgres":
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := record.NewPostgresSink(db.Client)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = pg
	default:
		sink = record.NewMemory()
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:records")
	} else {
		q = queue.NewInMemory(64)
	}

	users := directory.NewMemory(directory.SeedUsers()...)
	catalog := directory.NewCatalog(directory.SeedDepartments(), directory.SeedSubjects())

	probe := netprobe.New(cfg.NetProbeURL, cfg.NetProbeSkip)
	if err := probe.Health(ctx); err != nil {
		log.Printf("warning: network controller not reachable: %v", err)
	}

	signer := session.NewSigner(cfg.TokenSalt)
	gen := session.NewGenerator(signer, cfg.SessionValidity)
	defer gen.Close()

	gate := &trust.Gate{
		Probe:     probe,
		Directory: users,
		Bounds: trust.Bounds{
			MinLat: cfg.CampusMinLat, MaxLat: cfg.CampusMaxLat,
			MinLng: cfg.CampusMinLng, MaxLng: cfg.CampusMaxLng,
		},
	}
	validator := &scan.Validator{
		Signer:   signer,
		Sessions: gen,
		Gate:     gate,
		Sink:     sink,
		Policy:   scan.ParsePolicy(cfg.ScanPolicy),
	}
	debouncer := scan.NewDebouncer(cfg.DebounceWindow)

	// Janitor: terminal sessions only matter for replay checks while their
	// tokens could still be in the wild.
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gen.Prune(10 * time.Minute)
			case <-janitorCtx.Done():
				return
			}
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if cfg.QueueBackend == "redis" && !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy})
	})

	// Demo login: directory lookup only, no password. Real authentication is
	// an external concern.
	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := users.Lookup(c.Request.Context(), req.UserID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}
		tokens, err := auth.Issue(u.ID, u.Role.String(), cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"role":          u.Role.String(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.ClaimsFrom(c)
		if err := users.BindDevice(c.Request.Context(), claims.Subject, req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user_id": claims.Subject, "device_id": req.DeviceID, "verified": true})
	})

	issuerOnly := authGroup.Group("", auth.RequireRole("faculty", "admin"))

	issuerOnly.POST("/sessions", func(c *gin.Context) {
		var req struct {
			SubjectID       string `json:"subject_id" binding:"required"`
			Period          int    `json:"period" binding:"required"`
			ValiditySeconds int    `json:"validity_seconds"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, ok := catalog.Subject(req.SubjectID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown subject"})
			return
		}
		if !catalog.ValidPeriod(req.Period) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period out of range"})
			return
		}
		claims := auth.ClaimsFrom(c)
		p, err := gen.Create(req.SubjectID, req.Period, claims.Subject, time.Duration(req.ValiditySeconds)*time.Second)
		if err != nil {
			// Entropy failure blocks the display entirely; no insecure
			// fallback token.
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondSession(c, p)
	})

	issuerOnly.POST("/sessions/:id/regenerate", func(c *gin.Context) {
		p, err := gen.Regenerate(c.Param("id"))
		if err != nil {
			if errors.Is(err, session.ErrUnknownSession) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondSession(c, p)
	})

	authGroup.POST("/scans", auth.RequireRole("student"), func(c *gin.Context) {
		var req struct {
			Payload string   `json:"payload" binding:"required"`
			Lat     *float64 `json:"lat"`
			Lng     *float64 `json:"lng"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.ClaimsFrom(c)

		if debouncer.Duplicate(claims.Subject, req.Payload) {
			metrics.ScansDebounced.Inc()
			c.JSON(http.StatusAccepted, gin.H{"status": "duplicate_frame"})
			return
		}

		// Missing coordinates fail the location check closed.
		var loc trust.CoordinateSource
		if req.Lat != nil && req.Lng != nil {
			loc = trust.Fixed{Lat: *req.Lat, Lng: *req.Lng}
		}

		res, err := validator.ValidateAndAccept(c.Request.Context(), req.Payload, claims.Subject, loc)
		metrics.ScansTotal.WithLabelValues(res.Outcome.String()).Inc()
		if err != nil {
			log.Printf("record delivery failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance recorded but not stored, contact support"})
			return
		}

		body := gin.H{
			"outcome": res.Outcome.String(),
			"reason":  res.Reason,
			"trust":   res.Trust,
		}
		if res.Outcome != scan.OutcomeAccepted {
			c.JSON(statusForOutcome(res.Outcome), body)
			return
		}
		body["partial"] = res.Partial
		body["record"] = res.Record
		if b, err := json.Marshal(res.Record); err == nil {
			if perr := q.Publish(ctx, queue.Message{Type: "record", Body: b}); perr != nil {
				log.Printf("queue publish failed: %v", perr)
			}
		}
		c.JSON(http.StatusCreated, body)
	})

	authGroup.GET("/records", func(c *gin.Context) {
		f := record.Filter{
			StudentID: c.Query("student_id"),
			SubjectID: c.Query("subject_id"),
			Date:      c.Query("date"),
		}
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				f.Limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				f.Offset = parsed
			}
		}
		claims := auth.ClaimsFrom(c)
		if claims.Role == "student" {
			f.StudentID = claims.Subject
		}
		recs, err := sink.List(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	summary := record.NewRedisSummary(redisClient.Client)
	authGroup.GET("/summary", auth.RequireRole("faculty", "admin"), func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		counts, err := summary.Snapshot(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "present": counts})
	})

	authGroup.GET("/catalog/departments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"departments": catalog.Departments()})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func respondSession(c *gin.Context, p session.Payload) {
	text, err := session.Encode(p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token encode failed"})
		return
	}
	dataURL, err := qrimage.DataURL(text, qrimage.DefaultSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
		return
	}
	metrics.SessionsIssued.Inc()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": p.SessionID,
		"token":      text,
		"qr_image":   dataURL,
		"issued_at":  p.IssuedAt,
		"expires_at": p.ExpiresAt,
	})
}

func statusForOutcome(o scan.Outcome) int {
	switch o {
	case scan.OutcomeMalformedPayload, scan.OutcomeInvalidSignature:
		return http.StatusBadRequest
	case scan.OutcomeExpired:
		return http.StatusGone
	case scan.OutcomeAlreadyUsed:
		return http.StatusConflict
	case scan.OutcomeDeviceNotVerified, scan.OutcomeNetworkCheckFailed, scan.OutcomeLocationCheckFailed:
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
