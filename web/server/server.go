package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-sphere-tracer/pkg/logging"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

const (
	// DefaultTileSize is the tile edge used for streamed renders
	DefaultTileSize = 64

	minWidth, maxWidth   = 16, 2000
	maxSamplesLimit      = 10000
	maxPassesLimit       = 1000
	maxDepthLimit        = 500
	thumbnailSize        = 160
	shutdownTimeout      = 5 * time.Second
	readHeaderTimeout    = 10 * time.Second
	defaultPreviewPasses = 7
)

// Options configures a Server
type Options struct {
	ScenesDir string // Directory scanned for *.json scene files
	StaticDir string // Optional directory served at /
	Workers   int    // Render workers per request (0 = CPU count)
	Seed      int64  // Seed used when a request does not give one
	Logger    *logging.Logger
}

// Server handles web requests for the sphere tracer preview
type Server struct {
	opts     Options
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new web server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	return &Server{
		opts:   opts,
		logger: logger.With(logging.String("component", "web")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene               string  `json:"scene"`
	Width               int     `json:"width"`
	MaxSamples          int     `json:"maxSamples"`
	MaxPasses           int     `json:"maxPasses"`
	MaxDepth            *int    `json:"maxDepth,omitempty"` // nil keeps the scene depth
	Seed                int64   `json:"seed"`
	AdaptiveMinFraction float64 `json:"adaptiveMinFraction"` // Fraction of the target samples taken before a pixel may stop
	AdaptiveThreshold   float64 `json:"adaptiveThreshold"`
	TileUpdates         bool    `json:"tileUpdates"`
	ImageFormat         string  `json:"imageFormat"`
}

// Stats represents render statistics
type Stats struct {
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	MaxSamples     int     `json:"maxSamples"`
	MinSamples     int     `json:"minSamples"`
	MaxSamplesUsed int     `json:"maxSamplesUsed"`
}

func statsFrom(s renderer.RenderStats) Stats {
	return Stats{
		TotalPixels:    s.TotalPixels,
		TotalSamples:   s.TotalSamples,
		AverageSamples: s.AverageSamples,
		MaxSamples:     s.MaxSamples,
		MinSamples:     s.MinSamples,
		MaxSamplesUsed: s.MaxSamplesUsed,
	}
}

// Handler returns the HTTP handler with all routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/scene-config", s.handleSceneConfig)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	mux.HandleFunc("/api/render", s.handleRender)
	return logging.HTTPMiddleware(s.logger)(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", logging.String("addr", addr))
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists built-in and file scenes grouped for the scene picker
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response, err := scene.ListAllScenes(s.opts.ScenesDir)
	if err != nil {
		// Partial listings are still useful
		logging.LoggerFromContext(r.Context()).Warn("scene listing incomplete", logging.Error(err))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSceneConfig returns the camera defaults of a scene plus the request limits
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	sceneName := r.URL.Query().Get("scene")
	if sceneName == "" {
		sceneName = scene.DefaultSceneName
	}

	sceneObj, err := s.resolveScene(sceneName, s.opts.Seed)
	if err != nil {
		writeError(w, sceneErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scene":       sceneName,
		"description": sceneObj.Description,
		"spheres":     sceneObj.SphereCount(),
		"camera":      sceneObj.CameraConfig,
		"limits": map[string]interface{}{
			"width":             map[string]int{"min": minWidth, "max": maxWidth},
			"maxSamples":        map[string]int{"min": 1, "max": maxSamplesLimit},
			"maxPasses":         map[string]int{"min": 1, "max": maxPassesLimit},
			"maxDepth":          map[string]int{"min": 1, "max": maxDepthLimit},
			"adaptiveThreshold": map[string]float64{"min": 0, "max": 0.5},
		},
	})
}

func (s *Server) resolveScene(name string, seed int64) (*scene.Scene, error) {
	return scene.Resolve(name, s.opts.ScenesDir, seed)
}

func sceneErrorStatus(err error) int {
	if errors.Is(err, scene.ErrUnknownScene) || errors.Is(err, fs.ErrNotExist) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// parseRenderRequest parses request parameters; zero values and a missing maxDepth keep the scene's setting
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	query := r.URL.Query()
	req := &RenderRequest{Scene: query.Get("scene")}
	if req.Scene == "" {
		req.Scene = scene.DefaultSceneName
	}

	var err error
	if req.Width, err = parseIntParam(query, "width", 0, minWidth, maxWidth); err != nil {
		return nil, err
	}
	if req.MaxSamples, err = parseIntParam(query, "maxSamples", 0, 1, maxSamplesLimit); err != nil {
		return nil, err
	}
	if req.MaxPasses, err = parseIntParam(query, "maxPasses", defaultPreviewPasses, 1, maxPassesLimit); err != nil {
		return nil, err
	}
	depth, err := parseIntParam(query, "maxDepth", -1, 0, maxDepthLimit)
	if err != nil {
		return nil, err
	}
	if depth >= 0 {
		req.MaxDepth = &depth
	}
	if req.AdaptiveMinFraction, err = parseFloatParam(query, "adaptiveMinFraction", 0, 0, 1); err != nil {
		return nil, err
	}
	if req.AdaptiveThreshold, err = parseFloatParam(query, "adaptiveThreshold", 0, 0, 0.5); err != nil {
		return nil, err
	}

	req.Seed = s.opts.Seed
	if raw := query.Get("seed"); raw != "" {
		if req.Seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid seed: %s", raw)
		}
	}

	if raw := query.Get("tileUpdates"); raw != "" {
		if req.TileUpdates, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("invalid tileUpdates: %s", raw)
		}
	}

	req.ImageFormat = query.Get("imageFormat")
	if req.ImageFormat == "" {
		req.ImageFormat = "png"
	}
	if _, ok := previewFormats[req.ImageFormat]; !ok {
		return nil, fmt.Errorf("imageFormat must be png or webp, got: %s", req.ImageFormat)
	}

	return req, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %g and %g, got: %g", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
