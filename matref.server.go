package matref

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ServerConfig configures the material store HTTP server.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":5030"
	Addr string `yaml:"addr"`

	// PathPrefix is prepended to every route.
	// Default: "/api"
	PathPrefix string `yaml:"path_prefix"`

	// APIKey, when set, must be sent as X-API-Key on every material route.
	APIKey string `yaml:"api_key"`

	// MaxBodyBytes caps the size of request bodies.
	// Default: 1 MiB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// writeEnvelope is the JSON wrapper the server writes
type writeEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// materialCreateBody is the body of a create request
type materialCreateBody struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Content     json.RawMessage `json:"content"`
	Tags        []string        `json:"tags"`
	Description string          `json:"description"`
}

// Server exposes a Service over the JSON API.
type Server struct {
	service *Service
	config  ServerConfig
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer creates a server for service.
func NewServer(service *Service, config ServerConfig, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, &StorageError{Message: ErrMsgNilStorage}
	}
	if config.Addr == "" {
		config.Addr = DefaultServerAddr
	}
	if config.PathPrefix == "" {
		config.PathPrefix = DefaultPathPrefix
	}
	config.PathPrefix = "/" + strings.Trim(config.PathPrefix, "/")
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		service: service,
		config:  config,
		logger:  logger,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix(s.config.PathPrefix).Subrouter()
	api.Use(s.logRequests, s.requireAPIKey)

	api.HandleFunc(RouteHealth, s.handleHealth).Methods(http.MethodGet)

	// Fixed paths before {id}
	api.HandleFunc(RouteMaterialsBatch, s.handleBatch).Methods(http.MethodPost)
	api.HandleFunc(RouteMaterialsTags, s.handleTags).Methods(http.MethodGet)
	api.HandleFunc(RouteProcessReferences, s.handleProcessReferences).Methods(http.MethodPost)

	api.HandleFunc(RouteMaterials, s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc(RouteMaterials, s.handleList).Methods(http.MethodGet)
	api.HandleFunc(RouteMaterial, s.handleGet).Methods(http.MethodGet)
	api.HandleFunc(RouteMaterial, s.handleUpdate).Methods(http.MethodPut)
	api.HandleFunc(RouteMaterial, s.handleDelete).Methods(http.MethodDelete)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: ServerReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(LogMsgServerListening, zap.String(LogFieldAddr, s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ServerShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		<-errCh
		s.logger.Info(LogMsgServerStopped, zap.String(LogFieldAddr, s.config.Addr))
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Message: MsgHealthy})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body materialCreateBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	switch {
	case strings.TrimSpace(body.Name) == "":
		s.writeError(w, r, NewMissingFieldError("name"))
		return
	case body.Type == "":
		s.writeError(w, r, NewMissingFieldError("type"))
		return
	case len(body.Content) == 0 || isJSONNull(body.Content):
		s.writeError(w, r, NewMissingFieldError("content"))
		return
	}

	materialType, err := ParseMaterialType(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	content, err := DecodeContent(materialType, body.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.service.CreateMaterial(r.Context(), &Material{
		Name:        body.Name,
		Type:        materialType,
		Category:    body.Category,
		Content:     content,
		Tags:        uniqueStrings(body.Tags),
		Description: body.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, writeEnvelope{
		Success: true,
		Data:    createdBody{MaterialID: id},
		Message: MsgMaterialCreated,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if keyword := strings.TrimSpace(q.Get(QueryParamKeyword)); keyword != "" {
		page, err := s.service.SearchMaterials(r.Context(), keyword)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: page})
		return
	}

	opts := ListOptions{
		Tags:     splitTags(q.Get(QueryParamTags)),
		Page:     queryInt(q.Get(QueryParamPage), DefaultPage),
		PageSize: queryInt(q.Get(QueryParamPageSize), DefaultPageSize),
	}
	if typeName := q.Get(QueryParamType); typeName != "" {
		materialType, err := ParseMaterialType(typeName)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		opts.Type = materialType
	}

	page, err := s.service.ListMaterials(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: page})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.service.GetMaterial(r.Context(), mux.Vars(r)[RouteVarID])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: m})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)[RouteVarID]

	var body materialUpdateBody
	if !s.decodeBody(w, r, &body) {
		return
	}

	update := MaterialUpdate{
		Name:        body.Name,
		Category:    body.Category,
		Description: body.Description,
	}
	if body.Tags != nil {
		update.Tags = uniqueStrings(*body.Tags)
	}
	if len(body.Content) > 0 && !isJSONNull(body.Content) {
		existing, err := s.service.GetMaterial(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		content, err := DecodeContent(existing.Type, body.Content)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		update.Content = content
	}

	m, err := s.service.UpdateMaterial(r.Context(), id, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: m, Message: MsgMaterialUpdated})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteMaterial(r.Context(), mux.Vars(r)[RouteVarID]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Message: MsgMaterialDeleted})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body materialIDsBody
	if !s.decodeBody(w, r, &body) {
		return
	}
	materials, err := s.service.GetMaterialsByIDs(r.Context(), body.MaterialIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: materials})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.service.Tags(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: tags})
}

func (s *Server) handleProcessReferences(w http.ResponseWriter, r *http.Request) {
	var req ResolutionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	data, err := s.service.ProcessReferences(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, writeEnvelope{Success: true, Data: data})
}

// decodeBody decodes the JSON request body into v, answering 413 when the
// body exceeds MaxBodyBytes and 400 on any other failure
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.logger.Debug(LogMsgServerError,
			zap.String(LogFieldPath, r.URL.Path),
			zap.Error(err),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, writeEnvelope{Error: ErrMsgRequestTooLarge})
			return false
		}
		writeJSON(w, http.StatusBadRequest, writeEnvelope{Error: ErrMsgInvalidRequestBody})
		return false
	}
	return true
}

// writeError maps err to a status code and writes the error envelope.
// Internal failures are logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := ErrMsgInternal
	switch {
	case IsNotFound(err):
		status = http.StatusNotFound
		msg = err.Error()
	case IsValidation(err):
		status = http.StatusBadRequest
		msg = err.Error()
	default:
		s.logger.Error(LogMsgServerError,
			zap.String(LogFieldMethod, r.Method),
			zap.String(LogFieldPath, r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, writeEnvelope{Error: msg})
}

// requireAPIKey rejects material routes without the configured key
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	healthPath := s.config.PathPrefix + RouteHealth
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" && r.URL.Path != healthPath &&
			r.Header.Get(HeaderAPIKey) != s.config.APIKey {
			writeJSON(w, http.StatusUnauthorized, writeEnvelope{Error: ErrMsgUnauthorized})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests logs every request with its status and duration
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info(LogMsgServerRequest,
			zap.String(LogFieldMethod, r.Method),
			zap.String(LogFieldPath, r.URL.Path),
			zap.Int(LogFieldStatus, rec.status),
			zap.Duration(LogFieldDuration, time.Since(start)),
		)
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, body writeEnvelope) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// splitTags parses a comma separated tag filter
func splitTags(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, QueryTagsSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return uniqueStrings(parts)
}

// queryInt parses an integer query parameter, falling back to def
func queryInt(value string, def int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}
