package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

var pgErr = errors.New("db error")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func newTestAuth(db Querier) *Auth {
	a := NewAuth("test-secret", db)
	a.cost = bcrypt.MinCost
	return a
}

func expectSession(mock pgxmock.PgxPoolIface, userID any) {
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(pgxmock.AnyArg(), userID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestSignUpAndValidate(t *testing.T) {
	mock := newMock(t)
	a := newTestAuth(mock)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "rider@example.com", "rider", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	expectSession(mock, pgxmock.AnyArg())

	s, err := a.SignUp(context.Background(), " Rider@Example.com ", "password123", "rider")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if s.User.ID == "" || s.Token == "" || s.User.Email != "rider@example.com" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if bcrypt.CompareHashAndPassword([]byte(s.User.PasswordHash), []byte("password123")) != nil {
		t.Fatalf("password not hashed with bcrypt")
	}

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(s.User.ID))

	userID, err := a.Validate(context.Background(), s.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != s.User.ID {
		t.Fatalf("unexpected user id %s", userID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSignUpMissingFields(t *testing.T) {
	a := newTestAuth(newMock(t))
	if _, err := a.SignUp(context.Background(), "", "p", "u"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if _, err := a.SignUp(context.Background(), "a@b.c", "", "u"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestSignIn(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	userRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "created_at"}).
			AddRow("user-1", "rider@example.com", "rider", string(hash), time.Now())
	}

	t.Run("valid password", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("rider@example.com").
			WillReturnRows(userRows())
		expectSession(mock, "user-1")

		s, err := newTestAuth(mock).SignIn(context.Background(), "rider@example.com", "correct")
		if err != nil {
			t.Fatalf("sign in: %v", err)
		}
		if s.User.ID != "user-1" || s.Token == "" {
			t.Fatalf("unexpected session: %+v", s)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("rider@example.com").
			WillReturnRows(userRows())

		_, err := newTestAuth(mock).SignIn(context.Background(), "rider@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := newTestAuth(mock).SignIn(context.Background(), "ghost@example.com", "x")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT id, email, username, password_hash, created_at`).
			WithArgs("rider@example.com").
			WillReturnError(pgErr)

		_, err := newTestAuth(mock).SignIn(context.Background(), "rider@example.com", "x")
		if !errors.Is(err, pgErr) {
			t.Fatalf("expected wrapped db error, got %v", err)
		}
	})
}

func TestSignOutRevokesSession(t *testing.T) {
	mock := newMock(t)
	a := newTestAuth(mock)

	token, err := a.signToken("session-1", "user-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mock.ExpectExec(`UPDATE sessions SET revoked_at`).
		WithArgs("session-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := a.SignOut(context.Background(), token); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("session-1").
		WillReturnError(pgx.ErrNoRows)
	if _, err := a.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be invalid, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	a := newTestAuth(newMock(t))

	if _, err := a.Validate(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	other := NewAuth("other-secret", nil)
	token, _ := other.signToken("s", "u", time.Now().Add(time.Hour))
	if _, err := a.Validate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	expired, _ := a.signToken("s", "u", time.Now().Add(-time.Hour))
	if _, err := a.Validate(context.Background(), expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestResume(t *testing.T) {
	mock := newMock(t)
	a := newTestAuth(mock)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := a.signToken("session-1", "user-1", expires)
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("session-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectQuery(`SELECT id, email, username, created_at`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "created_at"}).
			AddRow("user-1", "rider@example.com", "rider", time.Now()))

	s, err := a.Resume(context.Background(), token)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if s.User.Email != "rider@example.com" || s.Token != token || !s.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session %+v", s)
	}

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("session-1").
		WillReturnError(pgx.ErrNoRows)
	if _, err := a.Resume(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked session rejected, got %v", err)
	}

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("session-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectQuery(`SELECT id, email, username, created_at`).
		WithArgs("user-1").
		WillReturnError(pgx.ErrNoRows)
	if _, err := a.Resume(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected deleted user rejected, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	mock := newMock(t)
	a := newTestAuth(mock)

	mock.ExpectExec(`INSERT INTO password_resets`).
		WithArgs(pgxmock.AnyArg(), "rider@example.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := a.ResetPassword(context.Background(), "Rider@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := a.ResetPassword(context.Background(), " "); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	if err := Migrate(context.Background(), mock); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(pgErr)
	if err := Migrate(context.Background(), mock); !errors.Is(err, pgErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestConnectInvalidURL(t *testing.T) {
	pool, err := Connect(context.Background(), "invalid-url")
	if err == nil {
		pool.Close()
		t.Fatalf("expected error for invalid url")
	}
}
