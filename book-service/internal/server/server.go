package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/azaliaz/bookcatalog/book-service/internal/auth"
	"github.com/azaliaz/bookcatalog/book-service/internal/config"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
	"github.com/azaliaz/bookcatalog/book-service/internal/logger"
	"github.com/azaliaz/bookcatalog/book-service/internal/metrics"
)

//go:generate mockgen -source=server.go -destination=./mocks/catalog_mock.go -package=mocks

type Catalog interface {
	ListAll(ctx context.Context) ([]models.Book, error)
	GetDetails(ctx context.Context, title string) (string, error)
	Create(ctx context.Context, book models.Book) (models.Book, error)
	Update(ctx context.Context, title string, patch models.BookPatch) (models.Book, error)
	Delete(ctx context.Context, title string, principal models.Principal) error
	ListPaged(ctx context.Context, q models.PageQuery) ([]models.Book, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	serv         *http.Server
	Catalog      Catalog
	Store        Pinger
	Directory    *auth.Directory
	Issuer       *auth.Issuer
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	TokenLimiter *RateLimiter
}

func New(cfg config.Config, catalog Catalog, store Pinger, dir *auth.Directory, issuer *auth.Issuer) *Server {
	server := http.Server{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return &Server{
		serv:         &server,
		Catalog:      catalog,
		Store:        store,
		Directory:    dir,
		Issuer:       issuer,
		TokenLimiter: NewRateLimiter(consts.TokenRequestsPerSecond, consts.TokenBurst),
	}
}

// WithMetrics enables request metrics and serves reg on /metrics.
func (s *Server) WithMetrics(m *metrics.Metrics, reg prometheus.Gatherer) *Server {
	s.Metrics = m
	s.Gatherer = reg
	return s
}

func (s *Server) ShutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.serv.Shutdown(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	log := logger.Get()
	s.serv.Handler = s.Router()
	if s.TokenLimiter != nil {
		go s.TokenLimiter.Cleanup(ctx)
	}

	log.Info().Str("host", s.serv.Addr).Msg("server started")
	if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router wires middleware and routes. GET routes are open to anonymous
// callers; mutations require an authenticated principal.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	if s.Metrics != nil {
		router.Use(s.Metrics.Middleware())
	}

	router.GET("/healthz", s.Healthz)
	router.GET("/readyz", s.Readyz)
	if s.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	authenticate := auth.Middleware(s.Directory, s.Issuer)
	router.POST("/auth/token", s.limitTokens(), authenticate, s.IssueToken)

	books := router.Group("/books", authenticate)
	{
		books.GET("", s.AllBooks)
		books.GET("/details/:title", s.BookDetails)
		books.GET("/pages", s.BooksPage)
		books.POST("", auth.RequireAuthenticated(), s.AddBook)
		books.PATCH("/update/:title", auth.RequireAuthenticated(), s.UpdateBook)
		books.DELETE("/delete/:title", auth.RequireAuthenticated(), s.RemoveBook)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		log := logger.Get()
		status := ctx.Writer.Status()
		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) limitTokens() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if s.TokenLimiter == nil || s.TokenLimiter.Allow(ctx.ClientIP()) {
			ctx.Next()
			return
		}
		if s.Metrics != nil {
			s.Metrics.TokenThrottled.Inc()
		}
		ctx.Header("Retry-After", "1")
		ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   consts.CategoryRateLimited,
			"message": consts.MsgRateLimited,
		})
	}
}
