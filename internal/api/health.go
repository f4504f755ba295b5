package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds all health probes together.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one critical dependency.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProbe reports the database as healthy when it answers a ping.
type DatabaseProbe struct {
	DB Pinger
}

func (DatabaseProbe) Name() string { return "database" }

func (p DatabaseProbe) Check(ctx context.Context) error { return p.DB.Ping(ctx) }

// TokenVerifier is satisfied by *external.SlackClient.
type TokenVerifier interface {
	AuthTest(ctx context.Context) error
}

// SlackProbe reports Slack as healthy when the bot token is accepted.
type SlackProbe struct {
	Slack TokenVerifier
}

func (SlackProbe) Name() string { return "slack" }

func (p SlackProbe) Check(ctx context.Context) error { return p.Slack.AuthTest(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently under a 2 second deadline.
// It answers 200 when all probes pass and 503 otherwise. GET /health is
// public.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		components = make(map[string]componentStatus, len(s.probes))
		g          errgroup.Group
	)
	for _, probe := range s.probes {
		g.Go(func() (err error) {
			defer func() {
				if rvr := recover(); rvr != nil {
					err = fmt.Errorf("probe panicked: %v", rvr)
				}
				status := componentStatus{Status: "healthy"}
				if err != nil {
					status = componentStatus{Status: "unhealthy", Message: err.Error()}
				}
				mu.Lock()
				components[probe.Name()] = status
				mu.Unlock()
			}()
			return probe.Check(ctx)
		})
	}
	healthy := g.Wait() == nil

	resp := healthResponse{Status: "healthy", Version: s.version}
	if len(components) > 0 {
		resp.Components = components
	}
	if !healthy {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}
