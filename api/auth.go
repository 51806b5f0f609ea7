package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ascenthq/ascent/pkg/models"
	"github.com/ascenthq/ascent/pkg/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	admins        repository.AdminRepo
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(ar repository.AdminRepo, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{admins: ar, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error hashing password", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	admin := models.Admin{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	adminID, err := h.admins.CreateAdmin(ctx, &admin)
	if err != nil {
		http.Error(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	tokenStr, err := h.issueToken(adminID, req.Email)
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(authResponse{Token: tokenStr})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	admin, err := h.admins.GetAdminByEmail(ctx, req.Email)
	if err != nil || admin == nil {
		http.Error(w, "Credentials not found", http.StatusUnauthorized)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "Credentials not found", http.StatusUnauthorized)
		return
	}

	tokenStr, err := h.issueToken(admin.ID, req.Email)
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(authResponse{Token: tokenStr})
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"signed out"}`)
}

func (h *AuthHandler) issueToken(adminID int64, email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": adminID,
		"email":    email,
		"exp":      time.Now().Add(h.tokenDuration).Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}
