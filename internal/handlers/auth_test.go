package handlers

import (
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
	"golang.org/x/crypto/bcrypt"
)

type stubUserRepo struct {
	users  map[string]types.User
	nextID int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[string]types.User{}, nextID: 1}
}

func (s *stubUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *stubUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, ok := s.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (s *stubUserRepo) Exists(ctx context.Context, username, email string) (bool, error) {
	if _, ok := s.users[username]; ok {
		return true, nil
	}
	for _, user := range s.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = s.nextID
	s.nextID++
	s.users[user.Username] = user
	return user, nil
}

func newAuthTestRouter(repo *stubUserRepo) http.Handler {
	handler := NewAuthHandler(services.NewUserService(repo), testSecret, time.Hour)
	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, handler)
	})
	return router
}

func TestRegisterRequiresAllFields(t *testing.T) {
	router := newAuthTestRouter(newStubUserRepo())

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username": "luna"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if resp.Error != "All fields are required" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	repo := newStubUserRepo()
	if _, err := repo.Create(context.Background(), types.User{Username: "luna", Email: "luna@example.com"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	router := newAuthTestRouter(repo)

	body := `{"username": "luna", "email": "other@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if resp.Error != "Username or email already taken" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestRegisterThenMe(t *testing.T) {
	router := newAuthTestRouter(newStubUserRepo())

	body := `{"username": "luna", "email": "luna@example.com", "password": "hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var auth AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&auth); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("expected a token")
	}
	if auth.User.Username != "luna" {
		t.Fatalf("unexpected user: %+v", auth.User)
	}

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+auth.Token)
	meRec := httptest.NewRecorder()
	router.ServeHTTP(meRec, meReq)

	if meRec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", meRec.Code, meRec.Body.String())
	}

	var me types.User
	if err := json.NewDecoder(meRec.Body).Decode(&me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.Username != "luna" {
		t.Fatalf("unexpected me payload: %+v", me)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := repo.Create(context.Background(), types.User{
		Username:     "luna",
		Email:        "luna@example.com",
		PasswordHash: string(hash),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	router := newAuthTestRouter(repo)

	cases := []struct {
		name string
		body string
	}{
		{"wrong password", `{"username": "luna", "password": "wrong"}`},
		{"unknown user", `{"username": "nobody", "password": "whatever"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d: %s", rec.Code, rec.Body.String())
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if resp.Error != "Invalid username or password" {
				t.Fatalf("unexpected error message: %q", resp.Error)
			}
		})
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := newStubUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := repo.Create(context.Background(), types.User{
		Username:     "luna",
		Email:        "luna@example.com",
		PasswordHash: string(hash),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	router := newAuthTestRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username": "luna", "password": "correct-horse"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var auth AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&auth); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("expected a token")
	}
}
