package quickauth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/panyam/quickauth/internal/logging"
)

// Session keys written when a Sessions manager is configured.
const (
	SessionAccountIDKey = "loggedInUserId"
	SessionTokenKey     = "authToken"
)

// AuthHandler exposes an AuthService over HTTP with JSON bodies.
type AuthHandler struct {
	Service   *AuthService
	Validator *RequestValidator

	// Optional. When set, successful register/login also store the account
	// id and token in the session so cookie based clients stay signed in.
	// The router must be wrapped with Sessions.LoadAndSave.
	Sessions *scs.SessionManager

	// Status for duplicate usernames; 0 means 400.
	ConflictStatus int

	Logger *slog.Logger
}

// NewAuthHandler builds a handler with its own request validator.
func NewAuthHandler(service *AuthService) (*AuthHandler, error) {
	v, err := NewRequestValidator()
	if err != nil {
		return nil, err
	}
	return &AuthHandler{Service: service, Validator: v}, nil
}

type envelope map[string]any

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.Validator.DecodeRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.startSession(r, res)
	writeJSON(w, http.StatusCreated, envelope{
		"status":  true,
		"message": "User created successfully",
		"token":   res.Token,
		"data":    res.Account,
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.Validator.DecodeRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Service.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.startSession(r, res)
	writeJSON(w, http.StatusCreated, envelope{
		"status":  true,
		"message": "Logged in successfully",
		"token":   res.Token,
		"data":    res.Account,
	})
}

func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := h.Validator.DecodeRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Service.RequestPasswordReset(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"status":  true,
		"message": "Password reset email sent successfully",
	})
}

func (h *AuthHandler) HandleFacebook(w http.ResponseWriter, r *http.Request) {
	var req TokenExchangeRequest
	if err := h.Validator.DecodeRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	account, err := h.Service.SignupWithFacebook(r.Context(), req.AccessToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"status":  true,
		"message": "User created successfully",
		"data": envelope{
			"id":         account.ProviderID,
			"account_id": account.ID,
			"name":       account.Name,
			"first_name": account.FirstName,
			"last_name":  account.LastName,
		},
	})
}

func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req TokenExchangeRequest
	if err := h.Validator.DecodeRequest(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	identity, err := h.Service.SignupWithGoogle(r.Context(), req.AccessToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"id": identity.ID})
}

// HandleMe returns the signed in account. It must run behind
// Middleware.EnsureAccount.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, err := h.Service.Account(r.Context(), AccountIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"status": true, "data": account})
}

func (h *AuthHandler) startSession(r *http.Request, res *AuthResult) {
	if h.Sessions == nil {
		return
	}
	ctx := r.Context()
	if err := h.Sessions.RenewToken(ctx); err != nil {
		h.logger().WarnContext(ctx, "could not renew session token", "error", err)
		return
	}
	h.Sessions.Put(ctx, SessionAccountIDKey, res.Account.ID)
	h.Sessions.Put(ctx, SessionTokenKey, res.Token)
}

// writeError renders AuthErrors as structured JSON. Anything else is
// logged and reported as a bare 500.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := AsAuthError(err)
	if !ok || ae.Kind == KindUpstream {
		logging.LogError(r.Context(), h.logger(), "request failed", err)
		writeJSON(w, http.StatusInternalServerError, envelope{
			"status":  false,
			"message": "Server error",
			"code":    ErrCodeServerError,
		})
		return
	}
	body := envelope{
		"status":  false,
		"message": ae.Message,
		"code":    ae.Code,
	}
	if ae.Field != "" {
		body["field"] = ae.Field
	}
	if len(ae.Details) > 0 {
		body["errors"] = ae.Details
	}
	if ae.Kind == KindProvider {
		h.logger().InfoContext(r.Context(), "provider rejected token", "error", ae.Err)
	}
	writeJSON(w, ae.Status(h.ConflictStatus), body)
}

func (h *AuthHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
