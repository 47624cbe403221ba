package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// extractionClient is what handlers need from the gateway; tests substitute
// a stub.
type extractionClient interface {
	Extract(ctx context.Context, url string) (*ExtractInfo, error)
	Version(ctx context.Context) (string, error)
}

// Server owns all cross-request state. Nothing here is package-level: the
// admission controller, the stats record and the gateway are injected so
// each can be exercised in isolation.
type Server struct {
	cfg       Config
	log       *slog.Logger
	stats     *ServiceStats
	admission *AdmissionController
	extractor extractionClient
	selector  *Selector
	resolver  *FragmentResolver
	limiter   *rate.Limiter
	start     time.Time
}

func NewServer(cfg Config, log *slog.Logger) *Server {
	stats := NewServiceStats(cfg.MaxConcurrentExtractions)
	client := newHTTPClient(cfg.PlaylistFetchTimeout())

	return &Server{
		cfg:       cfg,
		log:       log,
		stats:     stats,
		admission: NewAdmissionController(cfg.MaxConcurrentExtractions, cfg.QueueTimeout(), stats),
		extractor: NewExtractor(cfg.YtdlpPath, cfg.CookiesPath, cfg.ExtractionTimeout(), log),
		selector:  NewSelector(cfg.VideoExtPreference, cfg.AudioExtPreference),
		resolver:  NewFragmentResolver(client, cfg.PlaylistFetchTimeout(), log),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		start:     time.Now(),
	}
}

// routes wires the HTTP surface behind the rate limiter.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return s.rateLimit(mux)
}
