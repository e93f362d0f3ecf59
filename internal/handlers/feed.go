package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/siamesedream/apiserver/internal/services"
)

const defaultFeedLimit = 20

// FeedHandler serves the community feed and symbol catalogs.
type FeedHandler struct {
	dreamService  *services.DreamService
	symbolService *services.SymbolService
}

func NewFeedHandler(dreamService *services.DreamService, symbolService *services.SymbolService) *FeedHandler {
	return &FeedHandler{
		dreamService:  dreamService,
		symbolService: symbolService,
	}
}

// FeedRouter registers the public feed routes.
func FeedRouter(r chi.Router, handler *FeedHandler) {
	r.Get("/feed", handler.Feed)
	r.Get("/symbols", handler.ListSymbols)
	r.Get("/symbols/popular", handler.PopularSymbols)
}

// Feed returns recent dreams across all users, optionally restricted to
// dreams tagged with a single symbol.
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))

	limit, offset, err := parseLimitOffset(r, defaultFeedLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dreams, err := h.dreamService.Feed(r.Context(), symbol, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch feed")
		return
	}

	writeJSON(w, http.StatusOK, dreams)
}

func (h *FeedHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.symbolService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch symbols")
		return
	}

	writeJSON(w, http.StatusOK, symbols)
}

func (h *FeedHandler) PopularSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.symbolService.Popular(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch popular symbols")
		return
	}

	writeJSON(w, http.StatusOK, symbols)
}
