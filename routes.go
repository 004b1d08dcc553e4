package quickauth

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registers the auth endpoints on r:
//
//	POST /register
//	POST /login
//	POST /facebook
//	POST /google
//	POST /forgot-password
//	GET  /me
func (h *AuthHandler) Routes(r *mux.Router, mw *Middleware) {
	r.HandleFunc("/register", h.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", h.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/facebook", h.HandleFacebook).Methods(http.MethodPost)
	r.HandleFunc("/google", h.HandleGoogle).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password", h.HandleForgotPassword).Methods(http.MethodPost)
	if mw != nil {
		r.Handle("/me", mw.EnsureAccount(http.HandlerFunc(h.HandleMe))).Methods(http.MethodGet)
	}
}

// NewRouter mounts the auth endpoints under prefix (e.g. "/auth") and wraps
// the router with the session middleware when one is configured.
func NewRouter(prefix string, h *AuthHandler, mw *Middleware) (*mux.Router, http.Handler) {
	router := mux.NewRouter()
	h.Routes(router.PathPrefix(prefix).Subrouter(), mw)
	var handler http.Handler = router
	if h.Sessions != nil {
		handler = h.Sessions.LoadAndSave(router)
	}
	return router, handler
}
