package api

import (
	"net/http"
	"strings"

	"github.com/ascenthq/ascent/internal/invitations"
	"github.com/ascenthq/ascent/pkg/apperr"
	"github.com/gorilla/mux"
)

type UsersHandler struct {
	store *invitations.Store
}

func NewUsersHandler(store *invitations.Store) *UsersHandler {
	return &UsersHandler{store: store}
}

// DeleteUser removes every invitation held by an email address, across all
// companies. Assessment results cascade with the invitations.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(mux.Vars(r)["email"])
	if email == "" || !strings.Contains(email, "@") {
		respondError(w, apperr.Validation("invalid email", map[string]string{"email": "a valid email address is required"}))
		return
	}

	deleted, err := h.store.DeleteByEmail(r.Context(), email)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, map[string]any{"email": strings.ToLower(email), "deleted": deleted}, http.StatusOK)
}
