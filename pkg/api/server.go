package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/smith3v/mathquiz/pkg/account"
	"github.com/smith3v/mathquiz/pkg/config"
	"github.com/smith3v/mathquiz/pkg/logger"
	"github.com/smith3v/mathquiz/pkg/questions"
	"github.com/smith3v/mathquiz/pkg/sessions"
	"github.com/smith3v/mathquiz/pkg/statistics"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	accounts  *account.Repository
	stats     *statistics.Repository
	questions *questions.Repository
	sessions  *sessions.Repository
	tokens    *TokenIssuer
	cfg       config.ServerConfig
}

func NewServer(gdb *gorm.DB, cfg config.Config) (*Server, error) {
	tokens, err := NewTokenIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	return &Server{
		accounts:  account.NewRepository(gdb),
		stats:     statistics.NewRepository(gdb),
		questions: questions.NewRepository(gdb),
		sessions:  sessions.NewRepository(gdb, cfg.TokenTTLDuration()),
		tokens:    tokens,
		cfg:       cfg.Server,
	}, nil
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	{
		api.POST("/signup", s.signup)
		api.POST("/login", s.login)
	}

	authed := api.Group("")
	authed.Use(s.RequireAuth())
	{
		authed.POST("/logout", s.logout)

		authed.GET("/me", s.me)
		authed.DELETE("/me", s.deleteMe)
		authed.PATCH("/me/name", s.updateName)
		authed.PATCH("/me/email", s.updateEmail)
		authed.PATCH("/me/password", s.updatePassword)
		authed.POST("/me/focus-areas", s.addFocusArea)
		authed.GET("/me/stats", s.myStats)
		authed.POST("/me/attempts", s.recordAttempt)
		authed.POST("/me/highscore", s.submitHighScore)

		authed.GET("/questions", s.listQuestions)
		authed.POST("/questions", s.RequireTeacher(), s.addQuestion)
		authed.POST("/questions/:id/answer", s.checkAnswer)
		authed.POST("/sessions/flag", s.flagQuestion)
	}
	return r
}

// Run serves until ctx is cancelled, pruning expired sessions in the
// background, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.sessions.StartCleanup(ctx, sessions.DefaultCleanupInterval)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", "addr", s.cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down http server")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return server.Shutdown(shutdownCtx)
}
