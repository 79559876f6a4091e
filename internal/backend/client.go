package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/briangreenhill/moto/internal/ride"
)

var ErrNotAuthenticated = errors.New("you must be signed in to perform this action")

// Client is the backend as seen by one user of the app: it remembers the
// signed-in session and scopes ride operations to it.
type Client struct {
	auth   *Auth
	rides  *Rides
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
}

func NewClient(db Querier, secret string, logger *slog.Logger) *Client {
	return &Client{
		auth:   NewAuth(secret, db),
		rides:  NewRides(db),
		logger: logger,
	}
}

func (c *Client) SignUp(ctx context.Context, email, password, username string) (User, error) {
	s, err := c.auth.SignUp(ctx, email, password, username)
	if err != nil {
		c.logger.Error("Error signing up", slog.String("email", email), slog.Any("error", err))
		return User{}, err
	}
	c.setSession(&s)
	c.logger.Info("Signed up", slog.String("user", s.User.ID))
	return s.User, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (User, error) {
	s, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		c.logger.Error("Error signing in", slog.String("email", email), slog.Any("error", err))
		return User{}, err
	}
	c.setSession(&s)
	c.logger.Info("Signed in", slog.String("user", s.User.ID))
	return s.User, nil
}

// Resume signs in with a token issued by an earlier SignUp or SignIn.
func (c *Client) Resume(ctx context.Context, token string) (User, error) {
	s, err := c.auth.Resume(ctx, token)
	if err != nil {
		c.logger.Error("Error resuming session", slog.Any("error", err))
		return User{}, err
	}
	c.setSession(&s)
	c.logger.Info("Resumed session", slog.String("user", s.User.ID))
	return s.User, nil
}

// SignOut revokes the current session. The local session is cleared even
// when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := c.auth.SignOut(ctx, s.Token); err != nil {
		c.logger.Error("Error signing out", slog.Any("error", err))
		return err
	}
	return nil
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.auth.ResetPassword(ctx, email)
}

// Token returns the bearer token of the current session, or "" when
// signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// CurrentUser returns the signed-in user, if any.
func (c *Client) CurrentUser() (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return User{}, false
	}
	return c.session.User, true
}

func (c *Client) SaveRide(ctx context.Context, r ride.Ride) (string, error) {
	user, ok := c.CurrentUser()
	if !ok {
		return "", ErrNotAuthenticated
	}
	id, err := c.rides.Save(ctx, user.ID, r)
	if err != nil {
		c.logger.Error("Error saving ride", slog.String("ride", r.ID.String()), slog.Any("error", err))
		return "", err
	}
	return id, nil
}

func (c *Client) FetchRides(ctx context.Context) ([]ride.Ride, error) {
	user, ok := c.CurrentUser()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	rides, err := c.rides.Fetch(ctx, user.ID)
	if err != nil {
		c.logger.Error("Error fetching rides", slog.Any("error", err))
		return nil, err
	}
	return rides, nil
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}
