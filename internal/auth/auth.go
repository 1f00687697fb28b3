// Package auth guards the admin surface. A request is an admin when it
// carries the configured API token as a bearer credential or a session
// cookie issued by Login.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
)

const (
	SessionName   = "deedees-admin"
	sessionMaxAge = 8 * 60 * 60

	keyEmail     = "email"
	keySessionID = "sid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginDisabled      = errors.New("admin login is not configured")
	ErrUnauthenticated    = errors.New("please authenticate")
)

type Method string

const (
	MethodToken   Method = "token"
	MethodSession Method = "session"
)

type Identity struct {
	Email     string `json:"email,omitempty"`
	Method    Method `json:"method"`
	SessionID string `json:"sessionId,omitempty"`
}

type Status struct {
	Service       string    `json:"service"`
	Status        string    `json:"status"`
	Authenticated bool      `json:"authenticated"`
	Identity      *Identity `json:"identity,omitempty"`
}

type ctxKey struct{}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type Authenticator struct {
	cfg   config.AdminConfig
	store sessions.Store
}

func New(cfg config.AdminConfig, secure bool) *Authenticator {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Warn().Msg("auth: SESSION_SECRET not set, admin sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Authenticator{cfg: cfg, store: store}
}

// Login checks the admin credentials and starts a cookie session.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request, email, password string) (*Identity, error) {
	if a.cfg.Email == "" || a.cfg.PasswordHash == "" {
		return nil, ErrLoginDisabled
	}
	if !strings.EqualFold(strings.TrimSpace(email), a.cfg.Email) {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.cfg.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("auth: admin login rejected")
		return nil, ErrInvalidCredentials
	}

	sid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	// A tampered or expired cookie yields a fresh session plus an error we
	// can ignore here.
	session, _ := a.store.Get(r, SessionName)
	session.Values[keyEmail] = a.cfg.Email
	session.Values[keySessionID] = sid.String()
	if err := session.Save(r, w); err != nil {
		return nil, err
	}

	log.Info().Str("email", a.cfg.Email).Str("session_id", sid.String()).Msg("auth: admin logged in")
	return &Identity{Email: a.cfg.Email, Method: MethodSession, SessionID: sid.String()}, nil
}

func (a *Authenticator) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := a.store.Get(r, SessionName)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Identify resolves the caller without writing anything.
func (a *Authenticator) Identify(r *http.Request) (Identity, bool) {
	if token, ok := bearerToken(r); ok && a.cfg.APIToken != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.APIToken)) == 1 {
			return Identity{Email: a.cfg.Email, Method: MethodToken}, true
		}
		return Identity{}, false
	}

	session, err := a.store.Get(r, SessionName)
	if err != nil || session.IsNew {
		return Identity{}, false
	}
	email, _ := session.Values[keyEmail].(string)
	sid, _ := session.Values[keySessionID].(string)
	if email == "" {
		return Identity{}, false
	}
	return Identity{Email: email, Method: MethodSession, SessionID: sid}, true
}

func (a *Authenticator) Status(r *http.Request) Status {
	st := Status{Service: "auth", Status: "online"}
	if id, ok := a.Identify(r); ok {
		st.Authenticated = true
		st.Identity = &id
	}
	return st
}

// RequireAdmin rejects requests that are not from an authenticated admin.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.Identify(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Please authenticate."})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
