package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/logging"
	"github.com/df07/go-sphere-tracer/pkg/output"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

const (
	eventConsole  = "console"
	eventTile     = "tile"
	eventPass     = "passComplete"
	eventError    = "error"
	eventComplete = "complete"

	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var previewFormats = map[string]output.Format{
	"png":  output.FormatPNG,
	"webp": output.FormatWebP,
}

var previewMimeTypes = map[output.Format]string{
	output.FormatPNG:  "image/png",
	output.FormatWebP: "image/webp",
}

// StreamEvent is one JSON message on the render websocket
type StreamEvent struct {
	Type string      `json:"type"` // "console", "tile", "passComplete", "error", "complete"
	Data interface{} `json:"data,omitempty"`
}

// TileUpdate represents a single finished tile
type TileUpdate struct {
	TileX       int    `json:"tileX"`
	TileY       int    `json:"tileY"`
	ImageData   string `json:"imageData"` // Base64 encoded image of just this tile
	MimeType    string `json:"mimeType"`
	PassNumber  int    `json:"passNumber"`
	TileNumber  int    `json:"tileNumber"`
	TotalTiles  int    `json:"totalTiles"`
	TotalPasses int    `json:"totalPasses"`
}

// PassUpdate represents a finished pass with the full frame
type PassUpdate struct {
	PassNumber  int    `json:"passNumber"`
	TotalPasses int    `json:"totalPasses"`
	ElapsedMs   int64  `json:"elapsedMs"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageData   string `json:"imageData"`
	Thumbnail   string `json:"thumbnail"`
	MimeType    string `json:"mimeType"`
	Spheres     int    `json:"spheres"`
	IsLast      bool   `json:"isLast"`
	Stats       Stats  `json:"stats"`
}

// RenderingPipeline contains the configured scene and raytracer
type RenderingPipeline struct {
	Scene     *scene.Scene
	Raytracer *renderer.ProgressiveRaytracer
	Format    output.Format
}

// handleRender validates the request, upgrades to a websocket and streams the render
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	logger := logging.LoggerFromContext(r.Context())

	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	sceneObj, err := s.resolveScene(req.Scene, req.Seed)
	if err != nil {
		writeError(w, sceneErrorStatus(err), err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan StreamEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeEvents(ctx, conn, events)
	}()
	go readUntilClosed(conn, cancel)

	consoleChan, webLogger := s.setupConsoleLogging(logger)
	go streamConsoleMessages(ctx, consoleChan, events)

	pipeline, err := s.setupRenderingPipeline(sceneObj, req, webLogger)
	if err != nil {
		sendEvent(ctx, events, StreamEvent{Type: eventError, Data: err.Error()})
	} else {
		logger.Info("render started",
			logging.String("scene", req.Scene),
			logging.Int("passes", req.MaxPasses),
			logging.Int("spheres", sceneObj.SphereCount()))

		startTime := time.Now()
		passChan, tileChan, errChan := pipeline.Raytracer.RenderProgressive(ctx, renderer.RenderOptions{TileUpdates: req.TileUpdates})
		s.handleRenderingEvents(ctx, events, passChan, tileChan, errChan, pipeline, req, startTime)

		logger.Info("render finished", logging.Duration("elapsed", time.Since(startTime)))
	}

	select {
	case <-writerDone:
	case <-ctx.Done():
	}
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging(logger *logging.Logger) (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	return consoleChan, NewWebLogger(renderID, consoleChan, logger)
}

// writeEvents is the only goroutine writing to conn. It stops after a terminal event.
func (s *Server) writeEvents(ctx context.Context, conn *websocket.Conn, events <-chan StreamEvent) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			if event.Type == eventComplete || event.Type == eventError {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, event.Type))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readUntilClosed drains client frames so control messages are processed and
// cancels the render once the client goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// streamConsoleMessages forwards renderer log lines to the client
func streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, events chan<- StreamEvent) {
	for {
		select {
		case msg := <-consoleChan:
			select {
			case events <- StreamEvent{Type: eventConsole, Data: msg}:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message to avoid blocking
			}
		case <-ctx.Done():
			return
		}
	}
}

func sendEvent(ctx context.Context, events chan<- StreamEvent, event StreamEvent) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

// setupRenderingPipeline applies request overrides and builds the raytracer
func (s *Server) setupRenderingPipeline(sceneObj *scene.Scene, req *RenderRequest, logger core.Logger) (*RenderingPipeline, error) {
	sceneObj.ApplyOverrides(scene.CameraOverrides{
		ImageWidth:      req.Width,
		SamplesPerPixel: req.MaxSamples,
		MaxDepth:        req.MaxDepth,
	})

	raytracer, err := sceneObj.NewRaytracer(logger)
	if err != nil {
		return nil, err
	}

	config := renderer.ProgressiveConfig{
		TileSize:           DefaultTileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: sceneObj.CameraConfig.SamplesPerPixel,
		MaxPasses:          req.MaxPasses,
		NumWorkers:         s.opts.Workers,
		Seed:               req.Seed,
		Adaptive: renderer.AdaptiveConfig{
			MinSamples: req.AdaptiveMinFraction,
			Threshold:  req.AdaptiveThreshold,
		},
	}

	return &RenderingPipeline{
		Scene:     sceneObj,
		Raytracer: renderer.NewProgressiveRaytracer(raytracer, config, logger),
		Format:    previewFormats[req.ImageFormat],
	}, nil
}

// handleRenderingEvents processes the main rendering event loop
func (s *Server) handleRenderingEvents(ctx context.Context, events chan<- StreamEvent,
	passChan <-chan renderer.PassResult, tileChan <-chan renderer.TileCompletionResult, errChan <-chan error,
	pipeline *RenderingPipeline, req *RenderRequest, startTime time.Time) {

	for passChan != nil || tileChan != nil {
		select {
		case passResult, ok := <-passChan:
			if !ok {
				passChan = nil
				continue
			}
			s.handlePassComplete(ctx, events, passResult, pipeline, req, startTime)

		case tileResult, ok := <-tileChan:
			if !ok {
				tileChan = nil
				continue
			}
			s.handleTileUpdate(ctx, events, tileResult, pipeline.Format)

		case <-ctx.Done():
			return
		}
	}

	if err := <-errChan; err != nil {
		sendEvent(ctx, events, StreamEvent{Type: eventError, Data: fmt.Sprintf("Rendering failed: %v", err)})
		return
	}
	sendEvent(ctx, events, StreamEvent{Type: eventComplete, Data: "Rendering completed"})
}

// handlePassComplete encodes the pass frame and thumbnail and sends them
func (s *Server) handlePassComplete(ctx context.Context, events chan<- StreamEvent, passResult renderer.PassResult,
	pipeline *RenderingPipeline, req *RenderRequest, startTime time.Time) {

	imageData, err := encodeBase64(passResult.Image, pipeline.Format)
	if err != nil {
		logging.LoggerFromContext(ctx).Error("encode pass image", logging.Int("pass", passResult.PassNumber), logging.Error(err))
		return
	}
	thumbnail, err := encodeBase64(output.Thumbnail(passResult.Image, thumbnailSize), pipeline.Format)
	if err != nil {
		logging.LoggerFromContext(ctx).Error("encode thumbnail", logging.Int("pass", passResult.PassNumber), logging.Error(err))
		return
	}

	bounds := passResult.Image.Bounds()
	sendEvent(ctx, events, StreamEvent{Type: eventPass, Data: PassUpdate{
		PassNumber:  passResult.PassNumber,
		TotalPasses: req.MaxPasses,
		ElapsedMs:   time.Since(startTime).Milliseconds(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageData:   imageData,
		Thumbnail:   thumbnail,
		MimeType:    previewMimeTypes[pipeline.Format],
		Spheres:     pipeline.Scene.SphereCount(),
		IsLast:      passResult.IsLast,
		Stats:       statsFrom(passResult.Stats),
	}})
}

// handleTileUpdate encodes and sends a finished tile
func (s *Server) handleTileUpdate(ctx context.Context, events chan<- StreamEvent, tileResult renderer.TileCompletionResult, format output.Format) {
	tileData, err := encodeBase64(tileResult.TileImage, format)
	if err != nil {
		logging.LoggerFromContext(ctx).Error("encode tile image",
			logging.Int("tile_x", tileResult.TileX), logging.Int("tile_y", tileResult.TileY), logging.Error(err))
		return
	}

	sendEvent(ctx, events, StreamEvent{Type: eventTile, Data: TileUpdate{
		TileX:       tileResult.TileX,
		TileY:       tileResult.TileY,
		ImageData:   tileData,
		MimeType:    previewMimeTypes[format],
		PassNumber:  tileResult.PassNumber,
		TileNumber:  tileResult.TileNumber,
		TotalTiles:  tileResult.TotalTiles,
		TotalPasses: tileResult.TotalPasses,
	}})
}

// encodeBase64 encodes img in the preview format and base64-encodes the bytes
func encodeBase64(img image.Image, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.Encode(&buf, img, format); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
