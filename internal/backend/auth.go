package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 7 * 24 * time.Hour

var (
	ErrMissingFields      = errors.New("email and password required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("token invalid")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is a signed-in user together with the bearer token identifying
// the session.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
	db     Querier
	cost   int
}

func NewAuth(secret string, db Querier) *Auth {
	return &Auth{
		secret: []byte(secret),
		db:     db,
		cost:   bcrypt.DefaultCost,
	}
}

func (a *Auth) SignUp(ctx context.Context, email, password, username string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	}
	row := a.db.QueryRow(ctx, `
		INSERT INTO users (id, email, username, password_hash)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, user.ID, user.Email, user.Username, user.PasswordHash)
	if err := row.Scan(&user.CreatedAt); err != nil {
		return Session{}, fmt.Errorf("creating user: %w", err)
	}

	return a.startSession(ctx, user)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrMissingFields
	}

	var user User
	row := a.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, created_at
		FROM users WHERE email = $1
	`, email)
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return a.startSession(ctx, user)
}

// SignOut revokes the session behind token. Revoking an already revoked
// session is not an error.
func (a *Auth) SignOut(ctx context.Context, token string) error {
	claims, err := a.parseToken(token)
	if err != nil {
		return err
	}
	if _, err := a.db.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, claims.ID); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// ResetPassword records a password reset request for email. Delivery of the
// reset link happens outside this service.
func (a *Auth) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ErrMissingFields
	}
	if _, err := a.db.Exec(ctx, `
		INSERT INTO password_resets (id, email)
		VALUES ($1,$2)
	`, uuid.NewString(), email); err != nil {
		return fmt.Errorf("recording reset: %w", err)
	}
	return nil
}

// Validate checks the token signature and that its session is still live,
// returning the user id it was issued to.
func (a *Auth) Validate(ctx context.Context, token string) (string, error) {
	claims, err := a.liveClaims(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// Resume rebuilds the session behind a previously issued token.
func (a *Auth) Resume(ctx context.Context, token string) (Session, error) {
	claims, err := a.liveClaims(ctx, token)
	if err != nil {
		return Session{}, err
	}

	var user User
	row := a.db.QueryRow(ctx, `
		SELECT id, email, username, created_at
		FROM users WHERE id = $1
	`, claims.UserID)
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("looking up user: %w", err)
	}

	s := Session{User: user, Token: token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func (a *Auth) liveClaims(ctx context.Context, token string) (*Claims, error) {
	claims, err := a.parseToken(token)
	if err != nil {
		return nil, err
	}

	var userID string
	row := a.db.QueryRow(ctx, `
		SELECT user_id FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()
	`, claims.ID)
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}
	if userID != claims.UserID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (a *Auth) startSession(ctx context.Context, user User) (Session, error) {
	sessionID := uuid.NewString()
	expiresAt := time.Now().Add(sessionTTL)

	token, err := a.signToken(sessionID, user.ID, expiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("signing token: %w", err)
	}
	if _, err := a.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1,$2,$3)
	`, sessionID, user.ID, expiresAt); err != nil {
		return Session{}, fmt.Errorf("saving session: %w", err)
	}

	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (a *Auth) signToken(sessionID, userID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
