package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chathub/auth"
	"chathub/errors"
	"chathub/repositories"
)

var testSecret = []byte("test-secret-used-only-in-tests")

const strongPassword = "Sup3r$ecretPassword"

func newAuthService(t *testing.T) IAuthService {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repositories.NewStore(db, slog.Default())
	return NewAuthService(repositories.NewUserRepository(store), testSecret, time.Hour)
}

func TestAuthService_Register_Issues_Valid_Token(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	// When a valid registration goes through
	token, err := service.Register("alice@example.com", "Alice", strongPassword)

	// Then the token validates against the server secret
	req.NoError(err)
	identity, err := auth.ValidateToken(string(token), testSecret)
	req.NoError(err)
	req.Equal("Alice", identity.DisplayName)
	req.Equal("alice@example.com", identity.Email)
}

func TestAuthService_Register_Weak_Password(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	_, err := service.Register("alice@example.com", "Alice", "weakpassword")

	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestAuthService_Register_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	_, err := service.Register("alice@example.com", "Alice", strongPassword)
	req.NoError(err)

	_, err = service.Register("alice@example.com", "Imposter", strongPassword)

	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestAuthService_Login_Succeeds_With_Right_Password(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	_, err := service.Register("alice@example.com", "Alice", strongPassword)
	req.NoError(err)

	token, err := service.Login("alice@example.com", strongPassword)

	req.NoError(err)
	identity, err := auth.ValidateToken(string(token), testSecret)
	req.NoError(err)
	req.Equal("alice@example.com", identity.Email)
}

func TestAuthService_Login_Generic_Failure(t *testing.T) {
	req := require.New(t)
	service := newAuthService(t)

	_, err := service.Register("alice@example.com", "Alice", strongPassword)
	req.NoError(err)

	// Wrong password and unknown account fail identically, preventing
	// user enumeration.
	_, wrongPassword := service.Login("alice@example.com", "WrongPassword1!")
	_, unknownUser := service.Login("nobody@example.com", strongPassword)

	req.ErrorIs(wrongPassword, errors.ErrInvalidCredentials)
	req.ErrorIs(unknownUser, errors.ErrInvalidCredentials)
}
