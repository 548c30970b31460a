// Package httpapi exposes the sync protocol over HTTP. Every request is
// independently authenticated by the X-API-Key header; there is no session
// state beyond the two stores.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/adri6412/cloud-saves-server/internal/savestore"
	"github.com/adri6412/cloud-saves-server/internal/userstore"
)

const (
	HeaderAPIKey   = "X-API-Key"
	HeaderModified = "X-Save-Modified"
)

// Emulator ids double as storage path segments, so keep them boring.
var emulatorName = regexp.MustCompile(`^[a-z0-9_-]+$`)

type Server struct {
	users *userstore.Store
	saves *savestore.Store
	log   zerolog.Logger
}

func NewServer(users *userstore.Store, saves *savestore.Store, log zerolog.Logger) *Server {
	return &Server{users: users, saves: saves, log: log}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /validate", s.handleValidate)
	mux.HandleFunc("POST /saves/{emulator}", s.handleUpload)
	mux.HandleFunc("GET /saves/{emulator}", s.handleDownload)
	mux.HandleFunc("GET /saves/{emulator}/info", s.handleInfo)

	return s.logRequests(mux)
}

type registerRequest struct {
	Nickname string `json:"nickname"`
}

type registerResponse struct {
	Nickname string `json:"nickname"`
	APIKey   string `json:"api_key"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Nickname == "" {
		writeError(w, http.StatusBadRequest, "nickname required")
		return
	}

	key, err := s.users.Register(req.Nickname)
	if err != nil {
		if errors.Is(err, userstore.ErrNicknameTaken) {
			writeError(w, http.StatusBadRequest, "nickname already exists")
			return
		}
		s.log.Error().Err(err).Str("nickname", req.Nickname).Msg("register failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{Nickname: req.Nickname, APIKey: key})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	emulator, ok := emulatorParam(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	modified, err := s.saves.Put(r.Context(), user.Nickname, emulator, file, header.Size)
	if err != nil {
		s.log.Error().Err(err).Str("user", user.Nickname).Str("emulator", emulator).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info().Str("user", user.Nickname).Str("emulator", emulator).Int64("size", header.Size).Time("modified", modified).Msg("save uploaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	emulator, ok := emulatorParam(w, r)
	if !ok {
		return
	}

	modified, err := s.saves.Info(r.Context(), user.Nickname, emulator)
	if err != nil {
		s.notFoundOrInternal(w, err, user.Nickname, emulator)
		return
	}
	blob, err := s.saves.Get(r.Context(), user.Nickname, emulator)
	if err != nil {
		s.notFoundOrInternal(w, err, user.Nickname, emulator)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set(HeaderModified, strconv.FormatInt(modified.Unix(), 10))
	if _, err := io.Copy(w, blob); err != nil {
		s.log.Warn().Err(err).Str("user", user.Nickname).Str("emulator", emulator).Msg("download interrupted")
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	emulator, ok := emulatorParam(w, r)
	if !ok {
		return
	}

	modified, err := s.saves.Info(r.Context(), user.Nickname, emulator)
	if err != nil {
		s.notFoundOrInternal(w, err, user.Nickname, emulator)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"modified": modified.Unix()})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (userstore.User, bool) {
	key := r.Header.Get(HeaderAPIKey)
	if key == "" {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return userstore.User{}, false
	}
	user, ok := s.users.Resolve(key)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return userstore.User{}, false
	}
	return user, true
}

func (s *Server) notFoundOrInternal(w http.ResponseWriter, err error, nickname, emulator string) {
	if errors.Is(err, savestore.ErrNoSave) {
		writeError(w, http.StatusNotFound, "save not found")
		return
	}
	s.log.Error().Err(err).Str("user", nickname).Str("emulator", emulator).Msg("save lookup failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func emulatorParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	emulator := r.PathValue("emulator")
	if !emulatorName.MatchString(emulator) {
		writeError(w, http.StatusBadRequest, "invalid emulator id")
		return "", false
	}
	return emulator, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
