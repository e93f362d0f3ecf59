package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/siamesedream/apiserver/internal/services"
	"github.com/siamesedream/apiserver/internal/storage"
	"github.com/siamesedream/apiserver/internal/store"
	"github.com/siamesedream/apiserver/types"
)

const (
	defaultSearchLimit = 50
	dateLayout         = "2006-01-02"
	maxAttachmentBytes = 16 << 20
)

// DreamHandler provides HTTP handlers for dreams.
type DreamHandler struct {
	dreamService *services.DreamService
	attachments  *storage.AttachmentStore
}

// NewDreamHandler constructs a handler with the provided dependencies.
// attachments may be nil when no object storage is configured.
func NewDreamHandler(dreamService *services.DreamService, attachments *storage.AttachmentStore) *DreamHandler {
	return &DreamHandler{
		dreamService: dreamService,
		attachments:  attachments,
	}
}

// DreamRouter registers dream routes on the given router. All routes
// require authentication; the acting user comes from the bearer token.
func DreamRouter(r chi.Router, handler *DreamHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Get("/", handler.ListDreams)
	r.Post("/", handler.CreateDream)
	r.Get("/search", handler.SearchDreams)
	r.Route("/{dreamID}", func(r chi.Router) {
		r.Get("/", handler.GetDream)
		r.Delete("/", handler.DeleteDream)
		r.Post("/attachments", handler.UploadAttachment)
		r.Get("/attachments/{filename}", handler.DownloadAttachment)
		r.Delete("/attachments/{filename}", handler.RemoveAttachment)
	})
}

func (h *DreamHandler) ListDreams(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	dreams, err := h.dreamService.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch dreams")
		return
	}

	writeJSON(w, http.StatusOK, dreams)
}

// CreateDreamRequest is the JSON payload for recording a dream.
type CreateDreamRequest struct {
	Content          string   `json:"content"`
	Summary          string   `json:"summary"`
	IsLucid          bool     `json:"is_lucid"`
	MoodScore        *int     `json:"mood_score"`
	DreamDate        string   `json:"dream_date"`
	SleepDuration    *float64 `json:"sleep_duration"`
	SleepQuality     *int     `json:"sleep_quality"`
	Bedtime          *string  `json:"bedtime"`
	SleepDisruptions []string `json:"sleep_disruptions"`
	Symbols          []string `json:"symbols"`
}

// CreateDreamResponse echoes the new dream's id.
type CreateDreamResponse struct {
	Message string `json:"message"`
	DreamID int    `json:"dreamId"`
}

func (h *DreamHandler) CreateDream(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateDreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	dreamDate, err := time.Parse(dateLayout, req.DreamDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dream_date, expected YYYY-MM-DD")
		return
	}
	if req.MoodScore != nil && (*req.MoodScore < 1 || *req.MoodScore > 10) {
		writeError(w, http.StatusBadRequest, "mood_score must be between 1 and 10")
		return
	}
	if req.SleepQuality != nil && (*req.SleepQuality < 1 || *req.SleepQuality > 10) {
		writeError(w, http.StatusBadRequest, "sleep_quality must be between 1 and 10")
		return
	}

	dreamID, err := h.dreamService.Create(r.Context(), types.Dream{
		UserID:           userID,
		Title:            strings.TrimSpace(req.Summary),
		Content:          req.Content,
		DreamDate:        dreamDate,
		IsLucid:          req.IsLucid,
		MoodScore:        req.MoodScore,
		SleepDuration:    req.SleepDuration,
		SleepQuality:     req.SleepQuality,
		Bedtime:          req.Bedtime,
		SleepDisruptions: req.SleepDisruptions,
		Symbols:          req.Symbols,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to submit dream")
		return
	}

	writeJSON(w, http.StatusCreated, CreateDreamResponse{
		Message: "Dream and symbols saved",
		DreamID: dreamID,
	})
}

// SearchDreamsResponse is one page of results plus paging metadata.
type SearchDreamsResponse struct {
	Dreams  []types.Dream `json:"dreams"`
	Total   int           `json:"total"`
	HasMore bool          `json:"hasMore"`
}

func (h *DreamHandler) SearchDreams(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter, err := parseDreamFilter(r, userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset, err := parseLimitOffset(r, defaultSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dreams, total, err := h.dreamService.Search(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search dreams")
		return
	}

	writeJSON(w, http.StatusOK, SearchDreamsResponse{
		Dreams:  dreams,
		Total:   total,
		HasMore: offset+len(dreams) < total,
	})
}

func (h *DreamHandler) GetDream(w http.ResponseWriter, r *http.Request) {
	_, dream, ok := h.ownedDream(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, dream)
}

func (h *DreamHandler) DeleteDream(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseDreamID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dreamService.Delete(r.Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Dream not found")
		case errors.Is(err, store.ErrForbidden):
			writeError(w, http.StatusForbidden, "Not authorized to delete this dream")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to delete dream")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Dream deleted successfully"})
}

func (h *DreamHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil {
		writeError(w, http.StatusServiceUnavailable, "attachments not configured")
		return
	}

	_, dream, ok := h.ownedDream(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if header.Size > maxAttachmentBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := h.attachments.Put(r.Context(), dream.ID, filename, file, header.Size, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store attachment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"filename": filename})
}

func (h *DreamHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil {
		writeError(w, http.StatusServiceUnavailable, "attachments not configured")
		return
	}

	_, dream, ok := h.ownedDream(w, r)
	if !ok {
		return
	}

	filename := sanitizeFilename(chi.URLParam(r, "filename"))
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	reader, err := h.attachments.Get(r.Context(), dream.ID, filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func (h *DreamHandler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil {
		writeError(w, http.StatusServiceUnavailable, "attachments not configured")
		return
	}

	_, dream, ok := h.ownedDream(w, r)
	if !ok {
		return
	}

	filename := sanitizeFilename(chi.URLParam(r, "filename"))
	if filename == "" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	if err := h.attachments.Delete(r.Context(), dream.ID, filename); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete attachment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedDream loads the dream from the URL and enforces that it belongs to
// the authenticated user, writing the error response itself on failure.
func (h *DreamHandler) ownedDream(w http.ResponseWriter, r *http.Request) (int, types.Dream, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, types.Dream{}, false
	}

	id, err := parseDreamID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, types.Dream{}, false
	}

	dream, err := h.dreamService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Dream not found")
			return 0, types.Dream{}, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch dream")
		return 0, types.Dream{}, false
	}
	if dream.UserID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to access this dream")
		return 0, types.Dream{}, false
	}

	return userID, dream, true
}

func parseDreamID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "dreamID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid dream id")
	}
	return id, nil
}

// parseDreamFilter builds the typed search specification from query
// params. Absent params leave their filter fields unset.
func parseDreamFilter(r *http.Request, userID int) (store.DreamFilter, error) {
	q := r.URL.Query()
	filter := store.DreamFilter{
		UserID: userID,
		Query:  strings.TrimSpace(q.Get("query")),
	}

	for _, raw := range q["symbols"] {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				filter.Symbols = append(filter.Symbols, name)
			}
		}
	}

	if raw := strings.TrimSpace(q.Get("date_from")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return store.DreamFilter{}, errors.New("invalid date_from, expected YYYY-MM-DD")
		}
		filter.DateFrom = &parsed
	}
	if raw := strings.TrimSpace(q.Get("date_to")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return store.DreamFilter{}, errors.New("invalid date_to, expected YYYY-MM-DD")
		}
		filter.DateTo = &parsed
	}
	if raw := strings.TrimSpace(q.Get("is_lucid")); raw != "" {
		lucid := raw == "true"
		filter.IsLucid = &lucid
	}
	if raw := strings.TrimSpace(q.Get("mood_min")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return store.DreamFilter{}, errors.New("invalid mood_min")
		}
		filter.MoodMin = &value
	}
	if raw := strings.TrimSpace(q.Get("mood_max")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return store.DreamFilter{}, errors.New("invalid mood_max")
		}
		filter.MoodMax = &value
	}

	return filter, nil
}

func sanitizeFilename(raw string) string {
	name := path.Base(strings.TrimSpace(raw))
	if name == "." || name == "/" || strings.Contains(name, "..") {
		return ""
	}
	return name
}
