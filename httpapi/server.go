package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/wheelhouse/core"
	"pkt.systems/wheelhouse/internal/logx"
	"pkt.systems/wheelhouse/schema"
)

// VisibilityCoordinator receives window visibility transitions.
type VisibilityCoordinator interface {
	Hidden(ctx context.Context)
	Shown(ctx context.Context)
}

// Server serves the HTTP control API for the tab engine.
type Server struct {
	cfg        Config
	service    core.Service
	visibility VisibilityCoordinator
	hub        *Hub
}

// NewServer constructs an HTTP server. visibility may be nil when no
// suspend-on-hide coordinator is wired.
func NewServer(cfg Config, service core.Service, visibility VisibilityCoordinator, hub *Hub) *Server {
	return &Server{
		cfg:        cfg,
		service:    service,
		visibility: visibility,
		hub:        hub,
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tabs", s.handleTabs)
	mux.HandleFunc("/api/tabs/register", s.handleRegister)
	mux.HandleFunc("/api/tabs/activate", s.handleActivate)
	mux.HandleFunc("/api/tabs/load", s.handleLoad)
	mux.HandleFunc("/api/tabs/unload", s.handleUnload)
	mux.HandleFunc("/api/tabs/close", s.handleClose)
	mux.HandleFunc("/api/tabs/reorder", s.handleReorder)
	mux.HandleFunc("/api/tabs/pin", s.handlePin)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/window", s.handleWindow)
	mux.HandleFunc("/api/window/hidden", s.handleHidden)
	mux.HandleFunc("/api/window/shown", s.handleShown)
	mux.HandleFunc("/api/session/save", s.handleSessionSave)
	mux.HandleFunc("/api/session/restore", s.handleSessionRestore)
	mux.HandleFunc("/api/events", s.handleEvents)
	if s.cfg.DisableAccessLog {
		return mux
	}
	return withRequestLogging(mux)
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		log := logx.Ctx(r.Context())
		resp, err := s.service.ListTabs(r.Context(), schema.ListTabsRequest{
			Profile: schema.ProfileID(r.URL.Query().Get("profile")),
		})
		if err != nil {
			log.Warn("http tabs list failed", "err", err)
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http tabs list ok", "tabs", len(resp.Tabs))
	case http.MethodPost:
		log := logx.Ctx(r.Context())
		var payload struct {
			TabID       string `json:"tab_id"`
			Profile     string `json:"profile"`
			URL         string `json:"url"`
			InsertAfter string `json:"insert_after"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http tab create decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.CreateTab(r.Context(), schema.CreateTabRequest{
			TabID:       schema.TabID(payload.TabID),
			Profile:     schema.ProfileID(payload.Profile),
			URL:         payload.URL,
			InsertAfter: schema.TabID(payload.InsertAfter),
		})
		if err != nil {
			log.Warn("http tab create failed", "err", err)
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http tab create ok", "tab", resp.Tab.ID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		TabID   string `json:"tab_id"`
		Profile string `json:"profile"`
		URL     string `json:"url"`
		Title   string `json:"title"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http tab register decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.RegisterTab(r.Context(), schema.RegisterTabRequest{
		TabID:   schema.TabID(payload.TabID),
		Profile: schema.ProfileID(payload.Profile),
		URL:     payload.URL,
		Title:   payload.Title,
	})
	if err != nil {
		log.Warn("http tab register failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http tab register ok", "tab", resp.Tab.ID, "existing", resp.Existing)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	tabID, ok := s.decodeTabID(w, r)
	if !ok {
		return
	}
	log := logx.WithTab(r.Context(), tabID)
	resp, err := s.service.SwitchTab(r.Context(), schema.SwitchTabRequest{TabID: tabID})
	if err != nil {
		log.Warn("http tab activate failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http tab activate ok")
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	tabID, ok := s.decodeTabID(w, r)
	if !ok {
		return
	}
	log := logx.WithTab(r.Context(), tabID)
	resp, err := s.service.LoadTab(r.Context(), schema.LoadTabRequest{TabID: tabID})
	if err != nil {
		log.Warn("http tab load failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http tab load ok")
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	tabID, ok := s.decodeTabID(w, r)
	if !ok {
		return
	}
	log := logx.WithTab(r.Context(), tabID)
	resp, err := s.service.UnloadTab(r.Context(), schema.UnloadTabRequest{TabID: tabID})
	if err != nil {
		log.Warn("http tab unload failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http tab unload ok")
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	tabID, ok := s.decodeTabID(w, r)
	if !ok {
		return
	}
	log := logx.WithTab(r.Context(), tabID)
	// The shell never shows an empty tab strip; closing the last tab is
	// refused here rather than in the engine.
	list, err := s.service.ListTabs(r.Context(), schema.ListTabsRequest{})
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	if len(list.Tabs) == 1 && list.Tabs[0].ID == tabID {
		log.Warn("http tab close refused", "reason", "last tab")
		writeError(w, http.StatusConflict, fmt.Errorf("%w: cannot close the last tab", schema.ErrNoTabs))
		return
	}
	resp, err := s.service.CloseTab(r.Context(), schema.CloseTabRequest{TabID: tabID})
	if err != nil {
		log.Warn("http tab close failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http tab close ok")
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		Order []string `json:"order"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http reorder decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order := make([]schema.TabID, 0, len(payload.Order))
	for _, id := range payload.Order {
		order = append(order, schema.TabID(id))
	}
	resp, err := s.service.ReorderTabs(r.Context(), schema.ReorderTabsRequest{Order: order})
	if err != nil {
		log.Warn("http reorder failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http reorder ok", "count", len(resp.Order))
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		TabID  string `json:"tab_id"`
		Pinned bool   `json:"pinned"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http pin decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.SetPinned(r.Context(), schema.SetPinnedRequest{
		TabID:  schema.TabID(payload.TabID),
		Pinned: payload.Pinned,
	})
	if err != nil {
		log.Warn("http pin failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http pin ok", "tab", resp.Tab.ID, "pinned", resp.Tab.Pinned)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.service.LoadStats(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload schema.WindowGeometry
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http window decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.SetWindow(r.Context(), schema.SetWindowRequest{Window: payload}); err != nil {
		log.Warn("http window failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Trace("http window ok")
}

func (s *Server) handleHidden(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.visibility != nil {
		s.visibility.Hidden(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	logx.Ctx(r.Context()).Debug("http window hidden")
}

func (s *Server) handleShown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.visibility != nil {
		s.visibility.Shown(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	logx.Ctx(r.Context()).Debug("http window shown")
}

func (s *Server) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	if err := s.service.SaveSession(r.Context()); err != nil {
		log.Warn("http session save failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http session save ok")
}

func (s *Server) handleSessionRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		Strategy string `json:"strategy"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("http session restore decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.RestoreSession(r.Context(), schema.RestoreSessionRequest{
		Strategy: schema.LoadStrategy(payload.Strategy),
	})
	if err != nil {
		log.Warn("http session restore failed", "err", err)
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http session restore ok", "restored", resp.Restored)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	snapshot := s.buildSnapshot(r.Context())
	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
		flusher.Flush()
	}

	ch, unsubscribe, _ := s.hub.Subscribe()
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http events stream opened", "last_id", lastID, "replay", replayCount, "tabs", len(snapshot.Tabs))
	for {
		select {
		case <-notify:
			log.Info("http events stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(ctx context.Context) SnapshotPayload {
	resp, err := s.service.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		return SnapshotPayload{}
	}
	stats, _ := s.service.LoadStats(ctx)
	return SnapshotPayload{
		Tabs:      resp.Tabs,
		ActiveTab: resp.ActiveTab,
		Order:     resp.Order,
		Stats:     stats,
	}
}

// decodeTabID handles the common POST {"tab_id": ...} body shape.
func (s *Server) decodeTabID(w http.ResponseWriter, r *http.Request) (schema.TabID, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", false
	}
	var payload struct {
		TabID string `json:"tab_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	if strings.TrimSpace(payload.TabID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("tab_id is required"))
		return "", false
	}
	return schema.TabID(payload.TabID), true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrTabNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrTabExists), errors.Is(err, schema.ErrNoTabs):
		return http.StatusConflict
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidProfile),
		errors.Is(err, schema.ErrInvalidURL),
		errors.Is(err, schema.ErrInvalidStrategy):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrSurfaceUnavailable), errors.Is(err, schema.ErrSurfaceFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
