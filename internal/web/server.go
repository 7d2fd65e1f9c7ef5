// Package web implements the HTTP server and datastar-backed page for
// pixelwar. It serves the game canvas, streams game views and journal
// history over SSE, streams the message feed over a websocket and mounts
// the JSON API.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/api"
	"pixelwar.app/pxw/internal/docs"
	"pixelwar.app/pxw/internal/game"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/logger"
	"pixelwar.app/pxw/internal/types"
)

// GameSource is the controller surface the page needs.
type GameSource interface {
	api.Game
	Subscribe() (<-chan game.View, func())
}

// HistorySource is the journal surface the page needs.
type HistorySource interface {
	api.History
	Updates() <-chan struct{}
}

// TemplateData holds the data to be passed to the HTML templates.
type TemplateData struct {
	View           game.View
	Transactions   []journal.TxRecord
	Games          []journal.GameRecord
	CurrentVersion string
	BuildTime      string
	DocList        []string
	DocContent     template.HTML
	CurrentDoc     string
}

// sseBroker fans rendered fragments out to SSE clients.
type sseBroker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func newSSEBroker() *sseBroker {
	return &sseBroker{
		clients: make(map[chan []byte]struct{}),
	}
}

func (b *sseBroker) register(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

func (b *sseBroker) unregister(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client)
}

func (b *sseBroker) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- data:
		default:
			// Client is slow/blocked, skip
		}
	}
}

// Server is the web server for the game page and API.
type Server struct {
	game       GameSource
	history    HistorySource
	port       int
	templates  *template.Template
	feed       *logger.Logger
	log        *zap.Logger
	gameSSE    *sseBroker
	historySSE *sseBroker
	apiService *api.Service
	docService *docs.Service
}

// Options configures a Server.
type Options struct {
	Port    int
	Network string
	Backups int
	Feed    *logger.Logger
	Logger  *zap.Logger
}

// NewServer creates a new web server.
func NewServer(g GameSource, history HistorySource, opts Options) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.Feed == nil {
		opts.Feed = logger.New(200)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		game:       g,
		history:    history,
		port:       opts.Port,
		templates:  templates,
		feed:       opts.Feed,
		log:        opts.Logger.Named("web"),
		gameSSE:    newSSEBroker(),
		historySSE: newSSEBroker(),
		apiService: api.NewService(g, history, opts.Feed, opts.Logger, opts.Network, opts.Backups),
		docService: docs.NewService(nil),
	}
	return s, nil
}

// Feed returns the server's message feed.
func (s *Server) Feed() *logger.Logger {
	return s.feed
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Page routes
	r.Get("/", s.handlePageLoad)
	r.Get("/views/game", s.handleGameView)
	r.Get("/views/history", s.handleHistoryView)
	r.Get("/views/api", s.handleAPIView)
	r.Get("/views/help", s.handleDocsView)

	// Streams
	r.Get("/api/game/stream", s.handleStream(s.gameSSE, s.renderGameFragment))
	r.Get("/api/history/stream", s.handleStream(s.historySSE, s.renderHistoryFragment))
	r.Get("/ws/status", s.handleStatusWS)

	// API routes (delegated to apiService)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.apiService.HandleHealth)
		r.Get("/version", s.apiService.HandleVersion)
		r.Get("/game", s.apiService.HandleGame)
		r.Post("/game/refresh", s.apiService.HandleRefresh)
		r.Get("/history", s.apiService.HandleHistory)
		r.Get("/messages", s.apiService.HandleMessages)
		r.Post("/journal/backup", s.apiService.HandleBackup)
		r.Post("/wallet/connect", s.apiService.HandleConnect)
		r.Post("/wallet/disconnect", s.apiService.HandleDisconnect)
		r.Post("/team/join", s.apiService.HandleJoin)
		r.Post("/pixels/paint", s.apiService.HandlePaint)
		r.Post("/powerups/speed-boost", s.apiService.HandleSpeedBoost)
		r.Post("/reward/claim", s.apiService.HandleClaim)
		r.Post("/errors/dismiss", s.apiService.HandleDismiss)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully. It also
// drives the SSE brokers from the controller and the journal.
func (s *Server) Run(ctx context.Context) error {
	go s.watchGame(ctx)
	go s.watchHistory(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving game page", zap.String("url", fmt.Sprintf("http://localhost:%d", s.port)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchGame renders every controller view and broadcasts it to SSE clients.
func (s *Server) watchGame(ctx context.Context) {
	views, cancel := s.game.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			if data := s.renderGameEvent(v); data != nil {
				s.gameSSE.broadcast(data)
			}
		}
	}
}

// watchHistory re-renders the history table whenever the journal changes.
func (s *Server) watchHistory(ctx context.Context) {
	updates := s.history.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if data := s.renderHistoryFragment(ctx); data != nil {
				s.historySSE.broadcast(data)
			}
		}
	}
}

func (s *Server) handlePageLoad(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.setCacheHeaders(w)

	view, _ := s.game.View()
	err := s.templates.ExecuteTemplate(w, "layout.html", TemplateData{
		View:           view,
		CurrentVersion: types.Version,
		BuildTime:      types.BuildTime,
	})
	if err != nil {
		s.log.Error("failed to execute layout template", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (s *Server) handleGameView(w http.ResponseWriter, r *http.Request) {
	v, err := s.game.View()
	if err != nil {
		http.Error(w, "Game is not running", http.StatusServiceUnavailable)
		return
	}
	s.writeView(w, "game-view.html", TemplateData{View: v})
}

func (s *Server) handleHistoryView(w http.ResponseWriter, r *http.Request) {
	data, err := s.historyData(r.Context())
	if err != nil {
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	s.writeView(w, "history-view.html", data)
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	s.writeView(w, "api-view.html", TemplateData{
		CurrentVersion: types.Version,
		BuildTime:      types.BuildTime,
	})
}

func (s *Server) handleDocsView(w http.ResponseWriter, r *http.Request) {
	docName := r.URL.Query().Get("doc")
	if docName == "" {
		docName = docs.HowToPlay
	}
	docList, _ := s.docService.ListDocs()

	content, err := s.docService.GetDoc(r.Context(), docName)
	if err != nil {
		s.log.Warn("failed to load doc", zap.String("doc", docName), zap.Error(err))
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	s.writeView(w, "docs-view.html", TemplateData{
		DocList:    docList,
		DocContent: template.HTML(content),
		CurrentDoc: docName,
	})
}

// writeView renders name into the content area as a datastar fragment
// event.
func (s *Server) writeView(w http.ResponseWriter, name string, data TemplateData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("failed to execute view template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Failed to render view", http.StatusInternalServerError)
		return
	}

	s.setCacheHeaders(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Write(formatSSEEvent("<div id=\"content-area\">" + buf.String() + "</div>"))
}

// handleStream establishes an SSE connection fed by broker. The first
// event is rendered fresh so a new client never waits for a change.
func (s *Server) handleStream(broker *sseBroker, initial func(context.Context) []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		clientChan := make(chan []byte, 10)
		broker.register(clientChan)
		defer broker.unregister(clientChan)

		if data := initial(r.Context()); data != nil {
			w.Write(data)
			flusher.Flush()
		}

		keepAlive := time.NewTicker(30 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-clientChan:
				w.Write(data)
				flusher.Flush()
			case <-keepAlive.C:
				fmt.Fprintf(w, ": keep-alive\n\n")
				flusher.Flush()
			}
		}
	}
}

func (s *Server) renderGameFragment(context.Context) []byte {
	v, err := s.game.View()
	if err != nil {
		return nil
	}
	return s.renderGameEvent(v)
}

func (s *Server) renderGameEvent(v game.View) []byte {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "game-content", TemplateData{View: v}); err != nil {
		s.log.Error("failed to render game fragment", zap.Error(err))
		return nil
	}
	return formatSSEEvent(buf.String())
}

func (s *Server) historyData(ctx context.Context) (TemplateData, error) {
	txs, err := s.history.RecentTx(ctx, 20)
	if err != nil {
		return TemplateData{}, err
	}
	games, err := s.history.Games(ctx, 10)
	if err != nil {
		return TemplateData{}, err
	}
	return TemplateData{Transactions: txs, Games: games}, nil
}

func (s *Server) renderHistoryFragment(ctx context.Context) []byte {
	data, err := s.historyData(ctx)
	if err != nil {
		s.log.Warn("failed to read history", zap.Error(err))
		return nil
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "history-content", data); err != nil {
		s.log.Error("failed to render history fragment", zap.Error(err))
		return nil
	}
	return formatSSEEvent(buf.String())
}

// formatSSEEvent wraps an HTML element as a datastar merge-fragments
// event. The element's id selects the target.
func formatSSEEvent(htmlContent string) []byte {
	var buf bytes.Buffer
	buf.WriteString("event: datastar-merge-fragments\n")
	for _, line := range strings.Split(htmlContent, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintf(&buf, "data: fragments %s\n", line)
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

// setCacheHeaders sets cache-busting headers to prevent browser caching.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
