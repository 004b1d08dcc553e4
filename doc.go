// Package quickauth provides account registration, login, password reset
// requests and Facebook/Google token exchange for a web backend.
//
// # Components
//
// AccountStore persists accounts and owns username uniqueness. Backends live
// under stores/ (JSON files, GORM, Postgres, MongoDB, Cloud Datastore).
//
// PasswordHasher hashes and verifies passwords (bcrypt, cost 10).
//
// SessionIssuer signs and verifies stateless HS256 session tokens carrying
// the account id and username.
//
// AuthService runs the flows against those collaborators, and AuthHandler
// exposes it as JSON over HTTP. cmd/quickauth wires all of it from
// configuration into a standalone server.
//
// # Basic Usage
//
//	store, _ := fs.NewAccountStore("/var/lib/quickauth")
//	issuer, err := quickauth.NewSessionIssuer(quickauth.SessionConfig{
//	    Secret: os.Getenv("QUICKAUTH_SESSION__SECRET"),
//	})
//	if err != nil {
//	    log.Fatal(err) // no secret configured
//	}
//
//	svc, _ := quickauth.NewAuthService(quickauth.AuthServiceConfig{
//	    Store:    store,
//	    Tokens:   issuer,
//	    Mailer:   &quickauth.ConsoleMailer{},
//	    Facebook: oauth2.NewFacebookClient(oauth2.FacebookConfig{}),
//	    Google:   oauth2.NewGoogleClient(oauth2.GoogleConfig{ClientID: clientID}),
//	})
//	handler, _ := quickauth.NewAuthHandler(svc)
//	mw := &quickauth.Middleware{VerifyToken: issuer.VerifyToken}
//	_, h := quickauth.NewRouter("/auth", handler, mw)
//	http.ListenAndServe(":8080", h)
//
// # Endpoints
//
//	POST /auth/register         {username, password, email?, name?, first_name?, last_name?}
//	POST /auth/login            {username, password}
//	POST /auth/facebook         {accessToken}
//	POST /auth/google           {accessToken}
//	POST /auth/forgot-password  {email}
//	GET  /auth/me               Authorization: Bearer <token>
//
// Errors are returned as {"status": false, "message", "code", "field"}.
// Unexpected failures are logged and reported as a bare 500.
package quickauth
