package httpapi

import (
	"net/http"
	"strings"
	"time"

	"bankmesh.org/internal/audit"
	"bankmesh.org/internal/auth"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "login and password are required")
		return
	}

	p, err := a.users.Authenticate(login, req.Password)
	if err != nil {
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{"login": login})
		handleError(w, r, err)
		return
	}
	token, exp, err := a.tokens.Issue(p)
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx := auth.ContextWithPrincipal(r.Context(), p)
	_ = audit.LogEvent(ctx, "auth.token.issued", map[string]any{
		"expires_at": exp.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Role: p.Role, ExpiresAt: exp})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	login := strings.TrimSpace(req.Login)
	if login == "" || len(login) > 64 {
		writeError(w, r, http.StatusBadRequest, "login must be 1..64 characters")
		return
	}
	if len(req.Password) < 3 {
		writeError(w, r, http.StatusBadRequest, "password is too short")
		return
	}
	if err := a.users.Register(login, req.Password); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.registration.submitted", map[string]any{"login": login})
	writeJSON(w, http.StatusAccepted, map[string]any{"login": login, "status": "pending"})
}

func (a *API) listRegistrations(w http.ResponseWriter, r *http.Request) {
	logins, err := a.users.Registrations(principal(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[string]{Items: logins})
}

func (a *API) acceptRegistration(w http.ResponseWriter, r *http.Request) {
	login := r.PathValue("login")
	if err := a.users.AcceptRegistration(principal(r), login); err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.registration.accepted", map[string]any{"login": login})
	writeJSON(w, http.StatusOK, map[string]any{"login": login, "status": "active"})
}
