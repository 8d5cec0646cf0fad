package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xenking/dormdash/internal/domain/auth"
	"github.com/xenking/dormdash/internal/session"
)

// tokenQueryParam carries the bearer token on WebSocket upgrades, where
// browsers cannot set an Authorization header.
const tokenQueryParam = "token"

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

func bearerToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get(tokenQueryParam)
	}
	return ""
}

// require resolves the bearer token into a session and rejects sessions of
// the wrong role. An empty role admits any signed-in account.
func (h *Handler) require(role auth.Role, next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			fail(w, r, errUnauthenticated)
			return
		}
		s, err := h.sessions.Resolve(r.Context(), token)
		if err != nil {
			fail(w, r, err)
			return
		}
		if role != "" && s.Role != role {
			fail(w, r, errWrongRole)
			return
		}
		next(w, r.WithContext(session.With(r.Context(), s)), s)
	})
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, a *auth.Account, code int) {
	token, s, err := h.sessions.Open(r.Context(), a)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, code, toSession(token, s))
}

func (h *Handler) signUpStudent(w http.ResponseWriter, r *http.Request) {
	var req studentSignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.auth.SignUpStudent(r.Context(), auth.StudentSignUp{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	h.openSession(w, r, a, http.StatusCreated)
}

func (h *Handler) signUpVendor(w http.ResponseWriter, r *http.Request) {
	var req vendorSignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.auth.SignUpVendor(r.Context(), auth.VendorSignUp{
		Email:          req.Email,
		Password:       req.Password,
		OwnerName:      req.OwnerName,
		Phone:          req.PhoneNumber,
		RestaurantName: req.RestaurantName,
		Location:       req.Location,
		Description:    req.Description,
		Category:       req.Category,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	h.openSession(w, r, a, http.StatusCreated)
}

// signIn opens a session only once the account has a profile for the
// requested role.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.auth.SignIn(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.openSession(w, r, a, http.StatusOK)
}

func (h *Handler) currentSession(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, toSession("", s))
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	if err := h.sessions.Close(r.Context(), bearerToken(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
