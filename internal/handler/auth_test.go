package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rodriguezddev/repuestos-api/internal/auth"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
	"github.com/rodriguezddev/repuestos-api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock AuthStore ---

type mockAuthStore struct {
	getUserByEmailFn func(ctx context.Context, email string) (database.User, error)
	getUserByIDFn    func(ctx context.Context, id uuid.UUID) (database.User, error)
	createUserFn     func(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	createCustomerFn func(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(ctx, email)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(ctx, id)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, arg)
	}
	return database.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error) {
	if m.createCustomerFn != nil {
		return m.createCustomerFn(ctx, arg)
	}
	return database.Customer{}, pgx.ErrNoRows
}

// --- Test helpers ---

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func testUser(t *testing.T, password string) database.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return database.User{
		ID:             uuid.New(),
		FullName:       "Carlos Rodriguez",
		Email:          "carlos@repuestos.com",
		HashedPassword: string(hashed),
		Role:           enum.UserRoleStaff,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

// --- Login tests ---

func TestLogin_HappyPath(t *testing.T) {
	user := testUser(t, "secret-pass-123")

	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email != user.Email {
				t.Errorf("email: got %v, want %v", email, user.Email)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"email":    user.Email,
		"password": "secret-pass-123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, _ := resp["access_token"].(string)
	if accessToken == "" {
		t.Fatal("access_token missing from response")
	}
	if refreshToken, _ := resp["refresh_token"].(string); refreshToken == "" {
		t.Fatal("refresh_token missing from response")
	}

	claims, err := auth.ValidateToken(testJWTSecret, accessToken)
	if err != nil {
		t.Fatalf("validating issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user_id: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.Role != enum.UserRoleStaff {
		t.Errorf("token role: got %v, want STAFF", claims.Role)
	}

	userResp := resp["user"].(map[string]interface{})
	if userResp["email"] != user.Email {
		t.Errorf("user email: got %v", userResp["email"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	user := testUser(t, "secret-pass-123")

	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"email":    user.Email,
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"email":    "nobody@repuestos.com",
		"password": "whatever",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	// Same message as a wrong password so callers can't probe for accounts
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid credentials" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/login", map[string]interface{}{
		"email": "carlos@repuestos.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// --- Register tests ---

func TestRegister_HappyPath(t *testing.T) {
	var createdCustomer bool

	store := &mockAuthStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			if arg.Role != enum.UserRoleCustomer {
				t.Errorf("role: got %v, want CUSTOMER", arg.Role)
			}
			if err := bcrypt.CompareHashAndPassword([]byte(arg.HashedPassword), []byte("new-password-1")); err != nil {
				t.Error("stored password hash does not match the submitted password")
			}
			return database.User{
				ID:        uuid.New(),
				FullName:  arg.FullName,
				Email:     arg.Email,
				Role:      arg.Role,
				IsActive:  true,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
		createCustomerFn: func(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error) {
			createdCustomer = true
			if !arg.UserID.Valid {
				t.Error("customer profile should link back to the user")
			}
			if arg.Name != "Ana Gomez" {
				t.Errorf("customer name: got %v, want Ana Gomez", arg.Name)
			}
			return database.Customer{ID: uuid.New(), Name: arg.Name, CreatedAt: time.Now()}, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/register", map[string]interface{}{
		"email":     "ana@example.com",
		"password":  "new-password-1",
		"full_name": "Ana Gomez",
		"phone":     "+58-414-5556677",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !createdCustomer {
		t.Error("registration should create a customer profile")
	}
	resp := decodeResponse(t, rr)
	userResp := resp["user"].(map[string]interface{})
	if userResp["role"] != "CUSTOMER" {
		t.Errorf("role: got %v, want CUSTOMER", userResp["role"])
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := &mockAuthStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/register", map[string]interface{}{
		"email":     "taken@example.com",
		"password":  "new-password-1",
		"full_name": "Ana Gomez",
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "email already registered" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/register", map[string]interface{}{
		"email":     "ana@example.com",
		"password":  "short",
		"full_name": "Ana Gomez",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "password must be at least 8 characters" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/register", map[string]interface{}{
		"email":     "not-an-email",
		"password":  "new-password-1",
		"full_name": "Ana Gomez",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// --- Refresh tests ---

func TestRefresh_HappyPath(t *testing.T) {
	user := testUser(t, "irrelevant-here")

	refreshToken, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generating refresh token: %v", err)
	}

	store := &mockAuthStore{
		getUserByIDFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			if id != user.ID {
				t.Errorf("user id: got %v, want %v", id, user.ID)
			}
			return user, nil
		},
	}

	router := setupAuthRouter(store)
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if token, _ := resp["access_token"].(string); token == "" {
		t.Fatal("access_token missing from response")
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	user := testUser(t, "irrelevant-here")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
	})
	tokenStr, err := expired.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]interface{}{
		"refresh_token": tokenStr,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid refresh token" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestRefresh_WrongSecret(t *testing.T) {
	user := testUser(t, "irrelevant-here")

	otherSecret, err := auth.GenerateRefreshToken("a-different-secret", user.ID)
	if err != nil {
		t.Fatalf("generating refresh token: %v", err)
	}

	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]interface{}{
		"refresh_token": otherSecret,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})
	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]interface{}{})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}
