// Package stubserver is a self-contained development stand-in for the
// storybook-generation backend. It serves the same HTTP surface the wizard
// client consumes and simulates the generation phases so the client can be
// exercised end to end without the real service.
package stubserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config tunes the stub.
type Config struct {
	// StepDelay is the pause between simulated generation steps. Zero makes
	// phases complete instantly, which tests rely on.
	StepDelay time.Duration
	// DraftTTL is how long an unfinalized draft survives.
	DraftTTL time.Duration
	// SweepEvery is the cron spec for the expired-draft sweeper. Empty
	// disables sweeping.
	SweepEvery string
	Logger     zerolog.Logger
}

// Server is the stub backend.
type Server struct {
	store     Store
	log       zerolog.Logger
	stepDelay time.Duration
	draftTTL  time.Duration

	// mu serializes job mutations: handler writes and simulator steps
	// read-modify-write whole records.
	mu sync.Mutex

	engine *gin.Engine
	cron   *cron.Cron
	http   *http.Server
}

// New builds a server over the given store.
func New(store Store, cfg Config) *Server {
	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = 24 * time.Hour
	}
	s := &Server{
		store:     store,
		log:       cfg.Logger,
		stepDelay: cfg.StepDelay,
		draftTTL:  cfg.DraftTTL,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/drafts", s.handleCreateDraft)
		api.PUT("/drafts/:jobID", s.handleUpdateDraft)
		api.POST("/drafts/:jobID/resume", s.handleResumeDraft)

		api.GET("/jobs/:jobID", s.handleGetJob)
		api.POST("/jobs/:jobID/style", s.handleSaveStyle)
		api.POST("/jobs/:jobID/characters", s.handleExtractCharacters)
		api.POST("/jobs/:jobID/characters/:name/avatar", s.handleGenerateAvatar)
		api.POST("/jobs/:jobID/pages", s.handleGeneratePages)
		api.POST("/jobs/:jobID/pages/:pageNumber/regenerate", s.handleRegeneratePage)
		api.POST("/jobs/:jobID/cover/regenerate", s.handleRegenerateCover)
		api.POST("/jobs/:jobID/finalize", s.handleFinalize)

		api.GET("/stories", s.handleListStories)
		api.GET("/stories/:storyID", s.handleGetStory)
		api.POST("/stories/:storyID/edit", s.handleEditStory)
	}
	s.engine = r

	if cfg.SweepEvery != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.SweepEvery, s.sweepExpiredDrafts); err != nil {
			s.log.Error().Err(err).Str("spec", cfg.SweepEvery).Msg("invalid sweep schedule, sweeper disabled")
			s.cron = nil
		}
	}

	return s
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP listener and the draft sweeper, blocking until the
// listener stops.
func (s *Server) Run(addr string) error {
	if s.cron != nil {
		s.cron.Start()
	}
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	s.log.Info().Str("addr", addr).Msg("stub backend listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stub server: %w", err)
	}
	return nil
}

// Shutdown stops the listener, the sweeper and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.store.Close()
}

// sweepExpiredDrafts deletes unfinalized jobs past their TTL.
func (s *Server) sweepExpiredDrafts() {
	ctx := context.Background()
	ids, err := s.store.JobIDs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: listing jobs failed")
		return
	}

	now := time.Now()
	swept := 0
	for _, id := range ids {
		rec, err := s.store.GetJob(ctx, id)
		if err != nil {
			continue
		}
		if rec.Finalized || rec.ExpiresAt.After(now) {
			continue
		}
		if err := s.store.DeleteJob(ctx, id); err != nil {
			s.log.Error().Err(err).Str("jobId", id).Msg("sweep: delete failed")
			continue
		}
		swept++
	}
	if swept > 0 {
		s.log.Info().Int("swept", swept).Msg("expired drafts purged")
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
