package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/limbo/campusflow/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	mx               *chi.Mux
	surveyService    service.SurveyServiceI
	occupancyService service.OccupancyServiceI
	userService      service.UserServiceI
	habitsService    service.HabitsServiceI
	db               Pinger
}

type ServicesList struct {
	SurveyService    service.SurveyServiceI
	OccupancyService service.OccupancyServiceI
	UserService      service.UserServiceI
	HabitsService    service.HabitsServiceI
	DB               Pinger
}

type Options struct {
	CORSAllowedOrigins []string
	// Requests per window for a single client IP. Zero disables limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		CORSAllowedOrigins: []string{"*"},
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

func New(servicesOptions *ServicesList, opts *Options) *Server {
	if opts == nil {
		opts = DefaultOptions()
	}
	s := &Server{
		mx:               chi.NewMux(),
		surveyService:    servicesOptions.SurveyService,
		occupancyService: servicesOptions.OccupancyService,
		userService:      servicesOptions.UserService,
		habitsService:    servicesOptions.HabitsService,
		db:               servicesOptions.DB,
	}
	s.routes(opts)
	return s
}

func (s *Server) routes(opts *Options) {
	s.mx.Use(
		middleware.Recoverer,
		s.RequestIDMiddleware,
		s.SettingUpLoggerMiddleware,
		s.MetricsMiddleware,
		cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
	)
	if opts.RateLimitRequests > 0 {
		s.mx.Use(httprate.Limit(
			opts.RateLimitRequests,
			opts.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "too many requests")
			}),
		))
	}

	s.mx.Post("/survey", s.SubmitSurvey)
	s.mx.Post("/submit-survey", s.SubmitSurvey)
	s.mx.Get("/occupancy", s.QueryOccupancy)
	s.mx.Get("/query-occupancy", s.QueryOccupancy)
	s.mx.Get("/habits", s.GetHabits)
	s.mx.Get("/ranking", s.GetRanking)
	s.mx.Get("/users/nearby", s.GetNearbyUsers)
	s.mx.Get("/users/{id}", s.GetUser)
	s.mx.Get("/healthz", s.Health)
	s.mx.Handle("/metrics", promhttp.Handler())
	s.mx.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mx.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.mx,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", slog.String("address", address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting server down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
