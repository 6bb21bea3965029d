package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/backoffice-session/backend"
	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"github.com/jrsteele09/backoffice-session/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// tokenResponse is the body of the auth token endpoint
type tokenResponse struct {
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	ExpiresAt    int64          `json:"expires_at"`
	RefreshToken string         `json:"refresh_token"`
	User         map[string]any `json:"user"`
}

func (c *Client) toSession(tr tokenResponse) (*backend.Session, error) {
	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	switch {
	case tr.ExpiresAt > 0:
		tok.Expiry = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		tok.Expiry = c.nowTime().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	user, err := userFromRecord(tr.User)
	if err != nil {
		user, err = userFromToken(tok.AccessToken)
		if err != nil {
			return nil, err
		}
	}
	return &backend.Session{User: user, Token: tok}, nil
}

func userFromRecord(raw map[string]any) (backend.User, error) {
	id := utils.StringField(raw, "id")
	if id == "" {
		return backend.User{}, apperrors.ErrUserNotFound
	}
	return backend.User{ID: id, Email: utils.StringField(raw, "email"), Raw: raw}, nil
}

// userFromToken reads the user out of the access token claims. The token
// was issued to us by the backend, so the signature is not re-verified here.
func userFromToken(accessToken string) (backend.User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return backend.User{}, apperrors.Wrapf(err, "parse access token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return backend.User{}, apperrors.ErrUserNotFound
	}
	return backend.User{ID: sub, Email: utils.StringField(claims, "email"), Raw: map[string]any(claims)}, nil
}

func (c *Client) setSession(s *backend.Session) {
	c.lock.Lock()
	c.session = s
	c.lock.Unlock()

	if c.store == nil {
		return
	}
	var err error
	if s == nil {
		err = c.store.clear()
	} else {
		err = c.store.save(s.Token)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist session token")
	}
}

func (c *Client) currentSession() *backend.Session {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.session.Clone()
}

// SignInWithPassword exchanges credentials for a session and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var tr tokenResponse
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, nil, http.MethodPost, authPath+"/token?grant_type=password", body, nil, &tr)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "%s", apiErr.Message)
		}
		return nil, apperrors.Wrapf(err, "[SignInWithPassword]")
	}

	s, err := c.toSession(tr)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[SignInWithPassword] build session")
	}
	c.setSession(s)
	c.notifier.Emit(backend.EventSignedIn, s)
	return s.Clone(), nil
}

// GetCurrentSession returns the held session, restoring it from the token
// file on first use and refreshing it when the access token has expired.
func (c *Client) GetCurrentSession(ctx context.Context) (*backend.Session, error) {
	s := c.currentSession()
	if s == nil && c.store != nil {
		tok, err := c.store.load()
		if err != nil {
			return nil, apperrors.Wrapf(err, "[GetCurrentSession] load token")
		}
		if tok == nil {
			return nil, nil
		}
		user, err := userFromToken(tok.AccessToken)
		if err != nil {
			log.Warn().Err(err).Msg("Discarding unreadable stored session")
			c.setSession(nil)
			return nil, nil
		}
		s = &backend.Session{User: user, Token: tok}
		c.lock.Lock()
		c.session = s
		c.lock.Unlock()
	}
	if s == nil {
		return nil, nil
	}
	if s.Token.Valid() {
		return s.Clone(), nil
	}
	if s.Token.RefreshToken == "" {
		return nil, apperrors.ErrSessionExpired
	}
	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) (*backend.Session, error) {
	current := c.currentSession()
	if current == nil || current.Token.RefreshToken == "" {
		return nil, apperrors.ErrSessionNotFound
	}

	var tr tokenResponse
	body := map[string]string{"refresh_token": current.Token.RefreshToken}
	if err := c.do(ctx, nil, http.MethodPost, authPath+"/token?grant_type=refresh_token", body, nil, &tr); err != nil {
		return nil, apperrors.Wrapf(err, "refresh session")
	}
	s, err := c.toSession(tr)
	if err != nil {
		return nil, apperrors.Wrapf(err, "refresh session")
	}
	c.setSession(s)
	c.notifier.Emit(backend.EventTokenRefreshed, s)
	return s.Clone(), nil
}

// OnAuthStateChange registers listener and reports INITIAL_SESSION to it.
func (c *Client) OnAuthStateChange(listener backend.AuthListener) func() {
	unsubscribe := c.notifier.Subscribe(listener)
	listener(backend.EventInitialSession, c.currentSession())
	return unsubscribe
}

// SignOut revokes the session on the backend. Local state is only dropped
// when the backend accepted the request.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.currentSession()
	if s == nil {
		c.setSession(nil)
		c.notifier.Emit(backend.EventSignedOut, nil)
		return nil
	}
	err := c.do(ctx, oauth2.StaticTokenSource(s.Token), http.MethodPost, authPath+"/logout", nil, nil, nil)
	if err != nil {
		return apperrors.Wrapf(err, "[SignOut]")
	}
	c.setSession(nil)
	c.notifier.Emit(backend.EventSignedOut, nil)
	return nil
}

// tokenSource returns a refreshing source for the current session, or nil
// when nobody is signed in.
func (c *Client) tokenSource(ctx context.Context) oauth2.TokenSource {
	s := c.currentSession()
	if s == nil {
		return nil
	}
	return oauth2.ReuseTokenSource(s.Token, refreshSource{ctx: ctx, client: c})
}

type refreshSource struct {
	ctx    context.Context
	client *Client
}

func (r refreshSource) Token() (*oauth2.Token, error) {
	s, err := r.client.refresh(r.ctx)
	if err != nil {
		return nil, err
	}
	return s.Token, nil
}
