package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/leofalp/explainer/core/channel"
	"github.com/leofalp/explainer/core/classify"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/core/settings"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

const (
	maxMessageSize  = 1 << 20
	openReadTimeout = 30 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second

	// SessionHeader carries the channel id on the WebSocket handshake.
	SessionHeader = "X-Explainer-Session"
)

// Backend is what the server needs from the orchestrator.
type Backend interface {
	channel.Handler
	ValidateProvider(id string) error
	TestConnection(ctx context.Context, providerID, apiKey string) error
	Models(ctx context.Context, providerID, apiKey string, forceRefresh bool) ([]ai.ModelDescriptor, error)
}

type Server struct {
	backend  Backend
	store    settings.Store
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
	origins  []string
}

type Option func(*Server)

// WithAllowedOrigins restricts CORS and WebSocket origins. "*" allows all.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(backend Backend, store settings.Store, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		store:   store,
		router:  mux.NewRouter(),
		logger:  slog.Default(),
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", SessionHeader},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/message", s.handleMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/channel", s.handleChannel).Methods(http.MethodGet)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/message", preflight).Methods(http.MethodOptions)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", slog.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.Contains(s.origins, origin)
}

// --- ONE-SHOT MESSAGES ---

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var message Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&message); err != nil {
		s.writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "malformed message: " + err.Error()})
		return
	}

	ctx := r.Context()
	s.logger.DebugContext(ctx, "Message received", slog.String("type", string(message.Type)), slog.String("provider", message.Provider))

	switch message.Type {
	case MessageGetSettings:
		current, err := s.store.Load(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Loading settings failed", slog.String("error", err.Error()))
			s.writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "could not load settings"})
			return
		}
		s.writeJSON(w, settingsResponse{Settings: current})

	case MessageSaveSettings:
		s.writeJSON(w, s.saveSettings(ctx, message.Settings))

	case MessageTestConnection:
		if err := s.backend.TestConnection(ctx, message.Provider, message.APIKey); err != nil {
			s.writeJSON(w, successResponse{Success: false, Error: errorText(err)})
			return
		}
		s.writeJSON(w, successResponse{Success: true})

	case MessageGetModels, MessageRefreshModels:
		forceRefresh := message.Type == MessageRefreshModels
		models, err := s.backend.Models(ctx, message.Provider, message.APIKey, forceRefresh)
		if models == nil {
			models = []ai.ModelDescriptor{}
		}
		response := modelsResponse{Models: models}
		if err != nil {
			response.Error = errorText(err)
		}
		s.writeJSON(w, response)

	default:
		s.writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown message type %q", message.Type)})
	}
}

func (s *Server) saveSettings(ctx context.Context, next *settings.Settings) successResponse {
	if next == nil {
		return successResponse{Error: "settings are required"}
	}
	if err := s.backend.ValidateProvider(next.Provider); err != nil {
		return successResponse{Error: errorText(err)}
	}
	if err := s.store.Save(ctx, *next); err != nil {
		s.logger.ErrorContext(ctx, "Saving settings failed", slog.String("error", err.Error()))
		return successResponse{Error: "could not save settings"}
	}
	return successResponse{Success: true}
}

// errorText renders err as "Cause: message".
func errorText(err error) string {
	classified := classify.Classify(err)
	return classified.Cause + ": " + classified.Message
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Writing response failed", slog.String("error", err.Error()))
	}
}

// --- STREAMING CHANNEL ---

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	ch := channel.New(context.WithoutCancel(r.Context()), s.backend)
	defer ch.Close()

	header := http.Header{}
	header.Set(SessionHeader, ch.ID())
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	logger := s.logger.With(slog.String(observability.AttrSessionID, ch.ID()))

	_ = conn.SetReadDeadline(time.Now().Add(openReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Warn("Channel closed before open message", slog.String("error", err.Error()))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	message, err := request.DecodeOpenMessage(data)
	if err != nil {
		s.writeEvent(conn, channel.ErrorEvent(classify.DetailFor(ai.NewError(ai.KindProtocol, "", err.Error(), err))))
		s.closeNormal(conn)
		return
	}
	if err := ch.Send(message); err != nil {
		s.writeEvent(conn, channel.ErrorEvent(classify.DetailFor(err)))
		s.closeNormal(conn)
		return
	}
	logger.Debug("Channel opened",
		slog.String(observability.AttrRequestType, string(message.Type)),
		slog.String(observability.AttrRequestMode, string(message.Payload.Mode)),
	)

	// the reader only detects disconnects; a channel carries one request
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				_ = ch.Close()
				return
			}
			logger.Warn("Ignoring extra message on busy channel")
		}
	}()

	for event := range ch.Events() {
		if err := s.writeEvent(conn, event); err != nil {
			logger.Warn("Channel write failed", slog.String("error", err.Error()))
			_ = ch.Close()
			return
		}
	}
	s.closeNormal(conn)
}

func (s *Server) writeEvent(conn *websocket.Conn, event channel.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(event)
}

func (s *Server) closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}
