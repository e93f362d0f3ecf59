package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/siamesedream/apiserver/internal/analysis"
	"github.com/siamesedream/apiserver/internal/services"
	"github.com/siamesedream/apiserver/internal/store"
	"github.com/siamesedream/apiserver/types"
)

// analysisFetchLimit caps how many dreams feed one analysis run.
const analysisFetchLimit = 1000

// UserHandler serves user profiles and per-user analytics.
type UserHandler struct {
	userService   *services.UserService
	dreamService  *services.DreamService
	symbolService *services.SymbolService
}

func NewUserHandler(userService *services.UserService, dreamService *services.DreamService, symbolService *services.SymbolService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		dreamService:  dreamService,
		symbolService: symbolService,
	}
}

// UserRouter registers user routes. Profiles and symbol timelines are
// public; the analysis report is restricted to the account owner.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/{userID}/profile", handler.Profile)
	r.Get("/{userID}/symbol-timeline", handler.SymbolTimeline)
	r.With(authMiddleware).Get("/{userID}/analysis", handler.Analysis)
}

// Profile assembles the public profile: the user row, aggregate dream
// statistics, top symbols, per-month dream frequency and recent dreams.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	stats, err := h.dreamService.Stats(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	topSymbols, err := h.symbolService.TopForUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	frequency, err := h.dreamService.MonthlyCounts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	recent, err := h.dreamService.Recent(r.Context(), id, 5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, types.Profile{
		User:           user,
		Statistics:     stats,
		TopSymbols:     topSymbols,
		DreamFrequency: frequency,
		RecentDreams:   recent,
	})
}

// SymbolTimeline returns a user's symbol usage bucketed by month.
func (h *UserHandler) SymbolTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeline, err := h.symbolService.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch symbol timeline")
		return
	}

	writeJSON(w, http.StatusOK, timeline)
}

// Analysis computes the full analytics report over the user's dreams,
// optionally restricted to dreams on or after date_from. Users may only
// request their own report.
func (h *UserHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	authUserID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id != authUserID {
		writeError(w, http.StatusForbidden, "Not authorized to view this analysis")
		return
	}

	filter := store.DreamFilter{UserID: id}
	if raw := strings.TrimSpace(r.URL.Query().Get("date_from")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_from, expected YYYY-MM-DD")
			return
		}
		filter.DateFrom = &parsed
	}

	dreams, _, err := h.dreamService.Search(r.Context(), filter, analysisFetchLimit, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to analyze dreams")
		return
	}

	writeJSON(w, http.StatusOK, analysis.Analyze(dreams))
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
