package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shortvid-saver/internal/auth"
	"shortvid-saver/internal/downloader"
	"shortvid-saver/internal/export"
	"shortvid-saver/internal/extract"
	"shortvid-saver/internal/message"
	"shortvid-saver/internal/monitor"
	"shortvid-saver/internal/ratelimit"
	"shortvid-saver/internal/registry"
	"shortvid-saver/internal/resolver"
	"shortvid-saver/internal/utils"
	"shortvid-saver/pkg/models"
)

// Server represents the API server
type Server struct {
	config       *models.Config
	storage      models.Storage
	engine       *extract.Engine
	resolver     *resolver.Resolver
	downloader   *downloader.Manager
	tracker      *downloader.Tracker
	monitor      *monitor.Monitor
	authService  *auth.Service
	rateLimitMgr *ratelimit.Manager
	httpServer   *http.Server
	logger       zerolog.Logger
	stopPump     chan struct{}

	// platform by download id, so terminal download events can be
	// attributed after the record link is long gone
	platformMu        sync.Mutex
	downloadPlatforms map[int64]models.Platform
}

// NewServer creates a new API server
func NewServer(cfg *models.Config, storage models.Storage) *Server {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	reg := registry.NewRegistry()
	if err := reg.RegisterDefaults(cfg); err != nil {
		log.Fatal().Err(err).Msg("Error registering platforms")
	}
	if len(reg.Descriptors()) == 0 {
		log.Fatal().Msg("No platforms enabled in configuration")
	}

	engine := extract.NewEngine(logger.With().Str("component", "engine").Logger(), reg.Descriptors()...)

	proxyURL := ""
	if cfg.Proxy.Enabled {
		proxyURL = cfg.Proxy.URL
	}
	res := resolver.New(engine, resolver.Options{
		Timeout:  time.Duration(cfg.Download.Timeout) * time.Second,
		ProxyURL: proxyURL,
		Cookies: map[models.Platform]string{
			models.PlatformDouyin: cfg.Platforms.Douyin.Cookie,
			models.PlatformTikTok: cfg.Platforms.TikTok.Cookie,
		},
	})

	dm := downloader.NewManager(cfg)
	if err := dm.Start(); err != nil {
		log.Fatal().Err(err).Msg("Error starting download manager")
	}

	mon := monitor.NewMonitor()
	mon.Start()

	authSvc := auth.NewService(storage, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if cfg.Auth.Enabled {
		if err := authSvc.EnsureAdminUser(cfg.Auth.AdminPassword); err != nil {
			log.Warn().Err(err).Msg("Failed to create admin user")
		}
	}

	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		config:       cfg,
		storage:      storage,
		engine:       engine,
		resolver:     res,
		downloader:   dm,
		tracker:      downloader.NewTracker(),
		monitor:      mon,
		authService:  authSvc,
		rateLimitMgr: ratelimit.NewManager(cfg),
		logger:       logger,
		stopPump:     make(chan struct{}),

		downloadPlatforms: make(map[int64]models.Platform),
	}
}

// Start starts the API server
func (s *Server) Start() error {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())
	router.Use(s.metricsMiddleware())

	s.setupRoutes(router)

	go s.pumpDownloadEvents()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(s.stopPump)
	s.monitor.Stop()

	if err := s.downloader.Stop(); err != nil {
		s.logger.Error().Err(err).Msg("Error stopping download manager")
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down server")
		return err
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// Run runs the server until SIGINT/SIGTERM
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	return s.Stop()
}

// pumpDownloadEvents mirrors download state changes into history records
func (s *Server) pumpDownloadEvents() {
	for {
		select {
		case <-s.stopPump:
			return
		case ev := <-s.downloader.Events():
			patch := map[string]interface{}{
				"status":         ev.State,
				"bytes_received": ev.BytesReceived,
				"total_bytes":    ev.TotalBytes,
				"percent":        ev.Percent,
			}
			if ev.Filename != "" {
				patch["filename"] = ev.Filename
			}
			if ev.Error != "" {
				patch["last_error"] = ev.Error
			}
			if err := s.storage.PatchRecordByDownloadID(ev.DownloadID, patch); err != nil {
				s.logger.Error().Err(err).
					Int64("download_id", ev.DownloadID).
					Msg("Error patching record")
			}
			switch ev.State {
			case models.DownloadComplete:
				s.monitor.RecordDownloadDone(s.takeDownloadPlatform(ev.DownloadID), ev.BytesReceived, nil)
			case models.DownloadInterrupted:
				s.monitor.RecordDownloadDone(s.takeDownloadPlatform(ev.DownloadID), ev.BytesReceived, classifyDownloadError(ev.Error))
			}
		}
	}
}

// takeDownloadPlatform removes and returns the platform a download was
// started for. Unknown ids map to the empty platform label.
func (s *Server) takeDownloadPlatform(id int64) models.Platform {
	s.platformMu.Lock()
	defer s.platformMu.Unlock()
	p := s.downloadPlatforms[id]
	delete(s.downloadPlatforms, id)
	return p
}

// classifyDownloadError turns a terminal download error string into the
// error kind the failure counters are labelled with
func classifyDownloadError(msg string) error {
	if strings.Contains(msg, "403") {
		return models.NewError(models.KindDownload403, msg)
	}
	return models.NewError(models.KindInterrupted, msg)
}

// setupRoutes sets up the API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	authMiddleware := auth.NewMiddleware(s.authService, s.config.Auth.Enabled)

	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(s.rateLimitMgr.Middleware())

	v1 := api.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authLimiter := ratelimit.NewRateLimiter()
			authGroup.Use(authLimiter.Middleware(5, 10))

			authGroup.POST("/login", s.login)
			authGroup.POST("/logout", authMiddleware.Required(), s.logout)
		}

		// Extraction entry points
		v1.POST("/resolve", s.resolveClip)
		v1.POST("/extract", s.extractPage)

		protected := v1.Group("")
		protected.Use(authMiddleware.Required())
		{
			downloads := protected.Group("/downloads")
			{
				downloadLimiter := ratelimit.NewRateLimiter()
				downloads.Use(downloadLimiter.Middleware(2, 5))

				downloads.POST("", s.beginDownload)
				downloads.DELETE("/:id", s.cancelDownload)
			}

			records := protected.Group("/records")
			{
				records.GET("", s.listRecords)
				records.GET("/export", s.exportRecords)
				records.GET("/:id", s.getRecord)
				records.DELETE("/:id", s.deleteRecord)
				records.DELETE("", s.clearRecords)
			}

			protected.GET("/stats", s.getStats)
			protected.GET("/stats/system", s.getSystemStats)
		}
	}

	router.Static("/files", s.config.Download.SavePath)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

// resolveClip handles the clipboard flow: pasted text in, extraction
// result out, wrapped in the messaging envelope
func (s *Server) resolveClip(c *gin.Context) {
	env, req, ok := s.bindEnvelope(c)
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := env.DecodePayload(&body); err != nil || body.Text == "" {
		c.JSON(http.StatusBadRequest, message.NewErrorResponse(req, string(models.KindParseError), "payload must carry non-empty text"))
		return
	}

	start := time.Now()
	result, err := s.resolver.Resolve(c.Request.Context(), body.Text)
	platform := models.Platform("")
	if result != nil {
		platform = result.Platform
	}
	s.monitor.RecordExtraction(platform, result, err, time.Since(start))
	stage := ""
	if err == nil {
		stage = string(result.Source.Kind)
	}
	s.monitor.RecordResolution(platform, stage)

	if err != nil {
		s.respondExtractError(c, req, err)
		return
	}

	recordID := s.recordResult(result, "resolve")
	s.respondResult(c, req, result, recordID)
}

// extractPage runs the extraction pipeline over a client-supplied page
// snapshot: the page URL, its HTML, and optional recent resource URLs
func (s *Server) extractPage(c *gin.Context) {
	env, req, ok := s.bindEnvelope(c)
	if !ok {
		return
	}

	var body struct {
		URL       string   `json:"url"`
		HTML      string   `json:"html"`
		Resources []string `json:"resources"`
	}
	if err := env.DecodePayload(&body); err != nil || body.URL == "" || body.HTML == "" {
		c.JSON(http.StatusBadRequest, message.NewErrorResponse(req, string(models.KindParseError), "payload must carry url and html"))
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body.HTML))
	if err != nil {
		c.JSON(http.StatusBadRequest, message.NewErrorResponse(req, string(models.KindParseError), "could not parse html"))
		return
	}

	start := time.Now()
	result, err := s.engine.ExtractPage(&extract.Page{
		URL:       body.URL,
		Doc:       doc,
		Resources: body.Resources,
	})
	platform := models.Platform("")
	if result != nil {
		platform = result.Platform
	}
	s.monitor.RecordExtraction(platform, result, err, time.Since(start))

	if err != nil {
		s.respondExtractError(c, req, err)
		return
	}

	recordID := s.recordResult(result, "extract")
	s.respondResult(c, req, result, recordID)
}

// recordResult persists a fresh history record for a successful
// extraction and arms the fallback tracker for fallback-sourced URLs
func (s *Server) recordResult(result *models.ExtractionResult, method string) string {
	recordID := uuid.NewString()
	record := &models.HistoryRecord{
		RecordID: recordID,
		VideoID:  result.Video.ID,
		Platform: result.Platform,
		Title:    result.Video.Title,
		Author:   result.Video.Author,
		URL:      result.Video.BestURL,
		PageURL:  result.PageURL,
		Status:   models.DownloadPending,
		Method:   method,
	}
	if err := s.storage.UpsertRecord(record); err != nil {
		s.logger.Error().Err(err).Msg("Error saving history record")
	}

	if result.Source.Kind == models.SourceDOMFallback {
		s.tracker.Arm(result.Video.BestURL, recordID)
	}

	return recordID
}

func (s *Server) respondResult(c *gin.Context, req *message.Envelope, result *models.ExtractionResult, recordID string) {
	resp, err := message.NewResponse(req, gin.H{
		"record_id": recordID,
		"result":    result,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) respondExtractError(c *gin.Context, req *message.Envelope, err error) {
	kind := models.KindOf(err)
	status := http.StatusUnprocessableEntity
	switch kind {
	case models.KindNetworkFailure:
		status = http.StatusBadGateway
	case models.KindBlocked:
		status = http.StatusForbidden
	case "":
		kind = models.KindParseError
	}
	c.JSON(status, message.NewErrorResponse(req, string(kind), err.Error()))
}

// bindEnvelope parses and validates the request envelope
func (s *Server) bindEnvelope(c *gin.Context) (*message.Envelope, *message.Envelope, bool) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return nil, nil, false
	}

	env, err := message.Parse(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}

	return env, env, true
}

// beginDownload starts a download for a resolved record
func (s *Server) beginDownload(c *gin.Context) {
	var req struct {
		RecordID string `json:"record_id"`
		URL      string `json:"url" binding:"required"`
		Filename string `json:"filename"`
		SaveAs   bool   `json:"save_as"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recordID := req.RecordID
	if recordID == "" {
		// Fallback-sourced downloads arrive without a record id
		recordID = s.tracker.Claim(req.URL)
	}

	record, err := s.storage.GetRecord(recordID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := req.Filename
	if filename == "" && record != nil {
		filename = utils.BuildFilename(record.Author, record.VideoID, models.Format(utils.ExtensionFromURL(req.URL)))
	}

	id, err := s.downloader.Begin(c.Request.Context(), req.URL, filename, req.SaveAs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	platform := models.Platform("")
	if record != nil {
		platform = record.Platform
		if err := s.storage.PatchRecord(record.RecordID, map[string]interface{}{
			"download_id": id,
			"status":      models.DownloadPending,
		}); err != nil {
			s.logger.Error().Err(err).Msg("Error linking record to download")
		}
	}
	s.monitor.RecordDownloadStart(platform)
	s.platformMu.Lock()
	s.downloadPlatforms[id] = platform
	s.platformMu.Unlock()

	c.JSON(http.StatusAccepted, gin.H{
		"download_id": id,
		"record_id":   recordID,
	})
}

// cancelDownload cancels an active download
func (s *Server) cancelDownload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid download id"})
		return
	}

	if err := s.downloader.Cancel(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Download cancelled"})
}

// listRecords lists history records, most-recent-first
func (s *Server) listRecords(c *gin.Context) {
	limit := models.MaxHistoryRecords
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	records, err := s.storage.ListRecords(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
	})
}

func (s *Server) getRecord(c *gin.Context) {
	record, err := s.storage.GetRecord(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) deleteRecord(c *gin.Context) {
	if err := s.storage.DeleteRecord(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted"})
}

func (s *Server) clearRecords(c *gin.Context) {
	if err := s.storage.ClearRecords(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "History cleared"})
}

// exportRecords writes the history to a file and returns its path
func (s *Server) exportRecords(c *gin.Context) {
	format := export.ExportFormat(c.DefaultQuery("format", "csv"))

	records, err := s.storage.ListRecords(models.MaxHistoryRecords)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filePath := fmt.Sprintf("%s/history_%s.%s",
		s.config.Download.SavePath, time.Now().Format("20060102_150405"), format)

	cfg := export.ExportConfig{Format: format, FilePath: filePath}
	if err := export.ValidateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := export.NewExporter(cfg).ExportRecords(records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file":  filePath,
		"count": len(records),
	})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.storage.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.HealthCheck())
}

// login authenticates and returns a JWT
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := s.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (s *Server) logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")

	if err := s.authService.Logout(token); err != nil {
		s.logger.Error().Err(err).Msg("Error invalidating session")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// corsMiddleware allows cross-origin API access
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// metricsMiddleware records per-request metrics
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.monitor.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
