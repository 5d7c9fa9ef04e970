package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripplanner/internal/auth"
	"tripplanner/internal/auth/oidc"
	"tripplanner/internal/domain"
)

const oidcStateCookie = "oidc_state"

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signInResponse is returned by signup and signin. Token is set only when
// bearer tokens are enabled.
type signInResponse struct {
	Profile        domain.Profile `json:"profile"`
	Token          string         `json:"token,omitempty"`
	TokenExpiresAt *time.Time     `json:"token_expires_at,omitempty"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in auth.SignUpInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	profile, err := s.auth.SignUp(r.Context(), in)
	if err != nil {
		s.writeAuthErr(w, r, err)
		return
	}
	s.completeSignIn(w, r, profile, http.StatusCreated)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if !s.decodeJSON(w, r, &in) {
		return
	}
	profile, err := s.auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeAuthErr(w, r, err)
		return
	}
	s.completeSignIn(w, r, profile, http.StatusOK)
}

// completeSignIn starts a session cookie for profile and, when enabled,
// issues a bearer token alongside it.
func (s *Server) completeSignIn(w http.ResponseWriter, r *http.Request, profile domain.Profile, code int) {
	ctx := r.Context()
	session, err := s.auth.StartSession(ctx, profile.ID)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to create session", err.Error())
		return
	}
	s.setSessionCookie(w, r, session)

	resp := signInResponse{Profile: profile}
	if s.auth.TokensEnabled() {
		token, exp, err := s.auth.IssueToken(profile)
		if err != nil {
			s.writeErr(ctx, w, http.StatusInternalServerError, "failed to issue token", err.Error())
			return
		}
		resp.Token = token
		resp.TokenExpiresAt = &exp
	}
	s.logger.InfoContext(ctx, "user signed in", "user_id", profile.ID)
	writeJSON(w, code, resp)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := s.auth.EndSession(r.Context(), c.Value); err != nil {
			s.logger.WarnContext(r.Context(), "failed to end session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	resp := map[string]any{"profile": profile}
	if s.billing != nil {
		resp["plan"] = s.billing.Catalog().Lookup(profile.Plan)
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		resp["auth_method"] = id.Method
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.oidc == nil || s.sealer == nil {
		s.writeErr(ctx, w, http.StatusNotFound, "oidc not configured", "")
		return
	}
	st, err := oidc.NewState(safeRedirect(r.URL.Query().Get("redirect")), s.now())
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to create state", err.Error())
		return
	}
	sealed, err := s.sealer.Seal(st)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to seal state", err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    sealed,
		Path:     "/api/v1/auth/oidc/",
		HttpOnly: true,
		Secure:   s.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oidc.StateTTL.Seconds()),
	})
	http.Redirect(w, r, s.oidc.AuthCodeURL(st), http.StatusFound)
}

func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.oidc == nil || s.sealer == nil {
		s.writeErr(ctx, w, http.StatusNotFound, "oidc not configured", "")
		return
	}
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		http.Redirect(w, r, "/?error="+url.QueryEscape(errParam), http.StatusFound)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "missing code or state", "")
		return
	}
	cookie, err := r.Cookie(oidcStateCookie)
	if err != nil {
		s.writeErr(ctx, w, http.StatusUnauthorized, oidc.ErrInvalidState.Error(), "state cookie missing")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    "",
		Path:     "/api/v1/auth/oidc/",
		HttpOnly: true,
		Secure:   s.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	st, err := s.sealer.Open(cookie.Value, state, s.now())
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}
	claims, err := s.oidc.Exchange(ctx, code, st)
	if err != nil {
		if errors.Is(err, oidc.ErrNonceMismatch) {
			s.writeStoreErr(ctx, w, err)
			return
		}
		s.writeErr(ctx, w, http.StatusUnauthorized, "token exchange failed", err.Error())
		return
	}
	profile, err := s.auth.SignInExternal(ctx, auth.ExternalIdentity{
		Issuer:  claims.Issuer,
		Subject: claims.Subject,
		Email:   claims.VerifiedEmail(),
		Name:    claims.DisplayName(),
	})
	if err != nil {
		s.writeAuthErr(w, r, err)
		return
	}
	session, err := s.auth.StartSession(ctx, profile.ID)
	if err != nil {
		s.writeErr(ctx, w, http.StatusInternalServerError, "failed to create session", err.Error())
		return
	}
	s.setSessionCookie(w, r, session)
	s.logger.InfoContext(ctx, "user signed in", "user_id", profile.ID, "method", "oidc")
	http.Redirect(w, r, st.Redirect, http.StatusFound)
}

func (s *Server) writeAuthErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidPassword):
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid password", err.Error())
	default:
		s.writeStoreErr(r.Context(), w, err)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(session.TimeRemaining().Seconds()),
	})
}

func (s *Server) secure(r *http.Request) bool {
	return s.cfg.SecureCookies || isSecure(r)
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "/"
	}
	return raw
}
