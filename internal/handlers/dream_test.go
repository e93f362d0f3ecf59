package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/siamesedream/apiserver/internal/services"
	"github.com/siamesedream/apiserver/internal/store"
	"github.com/siamesedream/apiserver/types"
)

const testSecret = "test-secret"

type stubDreamRepo struct {
	dreams    []types.Dream
	total     int
	created   types.Dream
	nextID    int
	getDream  types.Dream
	getErr    error
	deleteErr error
}

func (s *stubDreamRepo) ListByUser(ctx context.Context, userID int) ([]types.Dream, error) {
	return s.dreams, nil
}

func (s *stubDreamRepo) Search(ctx context.Context, filter store.DreamFilter, limit, offset int) ([]types.Dream, int, error) {
	return s.dreams, s.total, nil
}

func (s *stubDreamRepo) Get(ctx context.Context, id int) (types.Dream, error) {
	return s.getDream, s.getErr
}

func (s *stubDreamRepo) Create(ctx context.Context, dream types.Dream) (int, error) {
	s.created = dream
	return s.nextID, nil
}

func (s *stubDreamRepo) Delete(ctx context.Context, id, userID int) error { return s.deleteErr }

func (s *stubDreamRepo) Feed(ctx context.Context, symbol string, limit, offset int) ([]types.Dream, error) {
	return s.dreams, nil
}

func (s *stubDreamRepo) Stats(ctx context.Context, userID int) (types.DreamStats, error) {
	return types.DreamStats{}, nil
}

func (s *stubDreamRepo) MonthlyCounts(ctx context.Context, userID int) ([]types.MonthCount, error) {
	return nil, nil
}

func (s *stubDreamRepo) Recent(ctx context.Context, userID, limit int) ([]types.Dream, error) {
	return s.dreams, nil
}

func newDreamTestRouter(repo *stubDreamRepo) http.Handler {
	dreamService := services.NewDreamService(repo, nil)
	handler := NewDreamHandler(dreamService, nil)

	router := chi.NewRouter()
	router.Route("/dreams", func(r chi.Router) {
		DreamRouter(r, handler, RequireAuth(testSecret))
	})
	return router
}

func authHeader(t *testing.T, userID int) string {
	t.Helper()
	token, err := issueToken(userID, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func TestDreamRoutesRejectMissingToken(t *testing.T) {
	router := newDreamTestRouter(&stubDreamRepo{})

	req := httptest.NewRequest(http.MethodGet, "/dreams/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestDreamRoutesRejectBadToken(t *testing.T) {
	router := newDreamTestRouter(&stubDreamRepo{})

	req := httptest.NewRequest(http.MethodGet, "/dreams/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestCreateDream(t *testing.T) {
	repo := &stubDreamRepo{nextID: 5}
	router := newDreamTestRouter(repo)

	body := `{
		"content": "I was flying over the ocean.",
		"summary": "Flight",
		"dream_date": "2025-04-02",
		"is_lucid": true,
		"mood_score": 8,
		"symbols": ["flying, water"]
	}`

	req := httptest.NewRequest(http.MethodPost, "/dreams/", strings.NewReader(body))
	req.Header.Set("Authorization", authHeader(t, 3))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateDreamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "Dream and symbols saved" || resp.DreamID != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The acting user comes from the token, never from the body.
	if repo.created.UserID != 3 {
		t.Fatalf("want user 3, got %d", repo.created.UserID)
	}
	if len(repo.created.Symbols) != 2 {
		t.Fatalf("symbols not normalized: %v", repo.created.Symbols)
	}
}

func TestCreateDreamValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing content", `{"dream_date": "2025-04-02"}`},
		{"missing dream date", `{"content": "No date."}`},
		{"bad dream date", `{"content": "Bad date.", "dream_date": "02/04/2025"}`},
		{"mood too high", `{"content": "x", "dream_date": "2025-04-02", "mood_score": 11}`},
		{"mood too low", `{"content": "x", "dream_date": "2025-04-02", "mood_score": 0}`},
		{"quality out of range", `{"content": "x", "dream_date": "2025-04-02", "sleep_quality": 12}`},
	}

	router := newDreamTestRouter(&stubDreamRepo{nextID: 1})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/dreams/", strings.NewReader(tc.body))
			req.Header.Set("Authorization", authHeader(t, 3))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if resp.Error == "" {
				t.Fatalf("expected error message in payload")
			}
		})
	}
}

func TestSearchDreamsPagination(t *testing.T) {
	repo := &stubDreamRepo{
		dreams: []types.Dream{{ID: 1}, {ID: 2}},
		total:  5,
	}
	router := newDreamTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/dreams/search?query=water&limit=2", nil)
	req.Header.Set("Authorization", authHeader(t, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SearchDreamsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 5 || !resp.HasMore {
		t.Fatalf("unexpected paging metadata: %+v", resp)
	}
	if len(resp.Dreams) != 2 {
		t.Fatalf("want 2 dreams, got %d", len(resp.Dreams))
	}
}

func TestSearchDreamsRejectsBadFilter(t *testing.T) {
	router := newDreamTestRouter(&stubDreamRepo{})

	req := httptest.NewRequest(http.MethodGet, "/dreams/search?date_from=tomorrow", nil)
	req.Header.Set("Authorization", authHeader(t, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestDeleteDreamStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		deleteErr  error
		wantStatus int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"forbidden", store.ErrForbidden, http.StatusForbidden},
		{"success", nil, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newDreamTestRouter(&stubDreamRepo{deleteErr: tc.deleteErr})

			req := httptest.NewRequest(http.MethodDelete, "/dreams/15", nil)
			req.Header.Set("Authorization", authHeader(t, 3))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("want %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetDreamEnforcesOwnership(t *testing.T) {
	repo := &stubDreamRepo{getDream: types.Dream{ID: 15, UserID: 8}}
	router := newDreamTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/dreams/15", nil)
	req.Header.Set("Authorization", authHeader(t, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", rec.Code)
	}
}

func TestUploadAttachmentWithoutStorage(t *testing.T) {
	router := newDreamTestRouter(&stubDreamRepo{getDream: types.Dream{ID: 15, UserID: 3}})

	req := httptest.NewRequest(http.MethodPost, "/dreams/15/attachments", bytes.NewReader(nil))
	req.Header.Set("Authorization", authHeader(t, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}
