// Package api provides the admin HTTP surface of the birthday bot: a chi
// router with request ID, logging, panic recovery and bcrypt bearer
// authentication in front of operator endpoints for test celebrations,
// birthday registration and race-condition reporting.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"birthdaybot/internal/celebration"
	"birthdaybot/internal/types"
)

// requestTimeout is the soft deadline applied to every request context. Test
// celebrations generate text and images, so it is generous.
const requestTimeout = 3 * time.Minute

// Celebrator runs the posting pipeline.
type Celebrator interface {
	Celebrate(ctx context.Context, candidates []types.BirthdayPerson, opts celebration.Options) types.PipelineResult
}

// BirthdayStore is the subset of db.BirthdayRepository used by the handlers.
type BirthdayStore interface {
	Get(ctx context.Context, userID string) (*types.BirthdayRecord, error)
	Upsert(ctx context.Context, rec types.BirthdayRecord) error
	Delete(ctx context.Context, userID string) error
}

// ImmediateDecider decides whether a newly registered birthday is celebrated
// straight away.
type ImmediateDecider interface {
	Decide(ctx context.Context, userID string, date types.BirthdayDate, ref time.Time) (celebration.ImmediateResult, error)
}

// RaceSummarizer aggregates persisted race reports.
type RaceSummarizer interface {
	Summary(ctx context.Context, since time.Time) (celebration.RaceSummary, error)
}

// ServerDeps wires a Server. Probes and Version are optional.
type ServerDeps struct {
	Celebrations Celebrator
	Birthdays    BirthdayStore
	Immediate    ImmediateDecider
	Races        RaceSummarizer
	Probes       []HealthProbe

	// TokenHash is the bcrypt hash of the admin bearer token.
	TokenHash string
	// DefaultChannel receives test celebrations that do not name a channel.
	DefaultChannel string
	// Generation holds the default generation options for test celebrations.
	Generation types.GenerationOptions
	Version    string
	Clock      types.Clock
	Logger     *slog.Logger
}

// Server holds the admin API dependencies and router.
type Server struct {
	celebrations   Celebrator
	birthdays      BirthdayStore
	immediate      ImmediateDecider
	races          RaceSummarizer
	probes         []HealthProbe
	tokenHash      string
	defaultChannel string
	generation     types.GenerationOptions
	version        string
	clock          types.Clock
	logger         *slog.Logger
	validator      *Validator
	router         *chi.Mux
}

// NewServer validates deps, builds the router and mounts every route.
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Celebrations == nil || deps.Birthdays == nil || deps.Immediate == nil || deps.Races == nil {
		return nil, fmt.Errorf("celebrations, birthdays, immediate and races dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		celebrations:   deps.Celebrations,
		birthdays:      deps.Birthdays,
		immediate:      deps.Immediate,
		races:          deps.Races,
		probes:         deps.Probes,
		tokenHash:      deps.TokenHash,
		defaultChannel: deps.DefaultChannel,
		generation:     deps.Generation,
		version:        deps.Version,
		clock:          deps.Clock,
		logger:         deps.Logger,
		validator:      NewValidator(),
		router:         chi.NewRouter(),
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the router for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes registers the middleware chain and routes. Order matters:
// Recoverer is outermost so it sees every panic, and auth runs last so that
// rejected requests are still logged with their request ID.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(contextTimeout(requestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(s.AuthMiddleware)

	s.router.Get("/health", s.HandleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/celebrations/test", s.handleTestCelebration)
		r.Get("/race-conditions/summary", s.handleRaceSummary)

		r.Route("/birthdays/{user_id}", func(r chi.Router) {
			r.Get("/", s.handleGetBirthday)
			r.Put("/", s.handlePutBirthday)
			r.Delete("/", s.handleDeleteBirthday)
			r.Post("/immediate-check", s.handleImmediateCheck)
		})
	})
}

func contextTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
