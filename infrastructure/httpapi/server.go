package httpapi

import (
	stderrors "errors"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"chathub/auth"
	"chathub/domain"
	"chathub/errors"
	"chathub/runtime"
	"chathub/services"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Server exposes the REST side of the platform: account lifecycle, room
// management and archive reads. Live traffic goes over the websocket.
type Server struct {
	authService services.IAuthService
	chatService *services.ChatService
	orch        *runtime.Orchestrator
	secret      []byte
	log         *slog.Logger
}

func NewServer(authService services.IAuthService, chatService *services.ChatService, orch *runtime.Orchestrator, secret []byte, log *slog.Logger) *Server {
	return &Server{
		authService: authService,
		chatService: chatService,
		orch:        orch,
		secret:      secret,
		log:         log,
	}
}

// Register mounts the REST routes on the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("GET /rooms", s.authenticated(s.handleListRooms))
	mux.Handle("POST /rooms", s.authenticated(s.handleCreateRoom))
	mux.Handle("GET /rooms/{id}/messages", s.authenticated(s.handleHistory))
	mux.Handle("GET /rooms/{id}/search", s.authenticated(s.handleSearch))
	mux.Handle("GET /notifications", s.authenticated(s.handleNotifications))
	mux.Handle("POST /notifications/{id}/read", s.authenticated(s.handleNotificationRead))
	mux.Handle("GET /users/{id}/status", s.authenticated(s.handleUserStatus))
}

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed request body")
		return
	}
	token, err := s.authService.Register(req.Email, req.DisplayName, req.Password)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserAlreadyExists) {
			writeError(w, http.StatusConflict, "UserAlreadyExists", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed request body")
		return
	}
	token, err := s.authService.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AuthenticationError", "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
}

type createRoomRequest struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed request body")
		return
	}
	kind := domain.RoomKind(req.Kind)
	switch kind {
	case domain.RoomKindDirect, domain.RoomKindGroup, domain.RoomKindOpen:
	default:
		writeError(w, http.StatusBadRequest, "ValidationError", "unknown room kind")
		return
	}

	members := make([]domain.UserID, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, domain.UserID(m))
	}
	room, err := s.chatService.CreateRoom(kind, req.Name, identity.UserID, members)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	rooms, err := s.chatService.RoomsForUser(identity.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

type historyResponse struct {
	Messages []domain.Message `json:"messages"`
	Next     *string          `json:"next,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	roomID := domain.RoomID(r.PathValue("id"))

	var cursor *string
	if before := r.URL.Query().Get("before"); before != "" {
		cursor = &before
	}
	limit := pageLimit(r)

	messages, next, err := s.chatService.History(r.Context(), identity.UserID, roomID, cursor, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages, Next: next})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	roomID := domain.RoomID(r.PathValue("id"))

	terms := r.URL.Query().Get("q")
	if terms == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing q parameter")
		return
	}
	hits, err := s.chatService.Search(r.Context(), identity.UserID, roomID, terms, pageLimit(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	notifications, err := s.chatService.Notifications(identity.UserID, pageLimit(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := s.orch.MarkNotificationRead(r.Context(), r.PathValue("id"), identity.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

func (s *Server) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := domain.UserID(r.PathValue("id"))
	writeJSON(w, http.StatusOK, statusResponse{
		UserID: string(userID),
		Online: s.orch.StatusOf(userID),
	})
}

// authenticated checks the Bearer token and stores the resolved identity in
// the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "AuthenticationError", "missing bearer token")
			return
		}
		identity, err := auth.ValidateToken(header[len(prefix):], s.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "AuthenticationError", "invalid token")
			return
		}
		next(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	reason := errors.Reason(err)
	status := http.StatusInternalServerError
	switch reason {
	case "AuthenticationError":
		status = http.StatusUnauthorized
	case "AccessDenied", "NotInRoom":
		status = http.StatusForbidden
	case "NotFound":
		status = http.StatusNotFound
	case "ValidationError":
		status = http.StatusBadRequest
	case "PersistenceFailure":
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		s.log.Error("Request failed", "reason", reason, "error", err)
	}
	writeError(w, status, reason, err.Error())
}

func pageLimit(r *http.Request) int {
	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit
}

type errorResponse struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, reason, detail string) {
	writeJSON(w, status, errorResponse{Reason: reason, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
