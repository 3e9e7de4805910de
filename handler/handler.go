// Package handler provides the HTTP handlers for the dashboard state server.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/stevemurr/dashstate/app"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	state   *app.State
	logger  *zap.Logger
	metrics http.Handler
	mux     *http.ServeMux
}

// New creates a Handler and wires up all routes. metrics may be nil, in
// which case GET /metrics is not served.
func New(st *app.State, logger *zap.Logger, metrics http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{state: st, logger: logger, metrics: metrics, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}

	// --- Raw collections ---
	h.mux.HandleFunc("GET /collections", h.listCollections)
	h.mux.HandleFunc("GET /collections/{name}", h.getCollection)
	h.mux.HandleFunc("PUT /collections/{name}", h.putCollection)
	h.mux.HandleFunc("GET /collections/{name}/inspect", h.inspectCollection)

	// --- Dashboard operations ---
	h.mux.HandleFunc("POST /activity", h.logActivity)
	h.mux.HandleFunc("POST /announcements", h.postAnnouncement)
	h.mux.HandleFunc("POST /updates", h.publishUpdate)
	h.mux.HandleFunc("POST /users", h.addUser)
	h.mux.HandleFunc("DELETE /users/{id}", h.removeUser)
	h.mux.HandleFunc("POST /threads", h.openThread)
	h.mux.HandleFunc("PUT /preferences/{user}", h.setPreference)
	h.mux.HandleFunc("POST /counters/{name}/next", h.nextCounter)

	// --- Session ---
	h.mux.HandleFunc("POST /session/login", h.login)
	h.mux.HandleFunc("POST /session/logout", h.logout)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// fail maps an app error to a status code.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrUnknownCollection),
		errors.Is(err, app.ErrUnknownCounter),
		errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "dashstate",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- raw collections ----------

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Names())
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	v, err := h.state.Snapshot(r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) putCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var incoming any
	if err := readJSON(r, &incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.state.Replace(name, incoming); err != nil {
		h.fail(w, err)
		return
	}
	v, err := h.state.Snapshot(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) inspectCollection(w http.ResponseWriter, r *http.Request) {
	in, err := h.state.Inspect(r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// ---------- dashboard operations ----------

func (h *Handler) logActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Activity string `json:"activity"`
		User     string `json:"user"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	entry, err := h.state.LogActivity(req.Activity, req.User)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) postAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	a, err := h.state.PostAnnouncement(req.Title, req.Content, req.Author)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) publishUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version string `json:"version"`
		Summary string `json:"summary"`
		By      string `json:"by"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	u, err := h.state.PublishUpdate(req.Version, req.Summary, req.By)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string     `json:"name"`
		Email  string     `json:"email"`
		Role   app.Role   `json:"role"`
		Status app.Status `json:"status"`
		By     string     `json:"by"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	u, err := h.state.AddUser(req.Name, req.Email, req.Role, req.Status, req.By)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) removeUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.state.RemoveUser(id, r.URL.Query().Get("by")); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (h *Handler) openThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	t, err := h.state.OpenThread(req.Title, req.Author)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) setPreference(w http.ResponseWriter, r *http.Request) {
	var p app.Preference
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.state.SetPreference(r.PathValue("user"), p); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) nextCounter(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	n, err := h.state.NextCounter(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counter": name, "value": n})
}

// ---------- session ----------

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User  string `json:"user"`
		Token string `json:"token"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.state.Login(req.User, req.Token); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loggedIn": true})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	// An empty body is a logout by nobody in particular.
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	if err := h.state.Logout(req.User); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
}
