//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chathub/contract"
	"chathub/domain"
	"chathub/errors"
)

const (
	userCollection      = "user"
	userIndexCollection = "uid"
)

type IUserRepository interface {
	CreateUser(email, displayName, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(userID domain.UserID) (User, error)
	RolesOf(userID domain.UserID) ([]domain.Capability, error)
}

// User is the durable account record behind the auth collaborator.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	store contract.RecordStore
}

func NewUserRepository(store contract.RecordStore) UserRepository {
	return UserRepository{store: store}
}

// CreateUser persists the account under its email key plus an id index so
// capability checks can resolve by user identifier.
func (u UserRepository) CreateUser(email, displayName, hashedPassword string) (User, error) {
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashedPassword,
		Roles:        []string{string(domain.CapabilityRead), string(domain.CapabilityWrite)},
		CreatedAt:    time.Now().UTC(),
	}

	err := u.store.TransactionalUpdate(userCollection, email, func(current []byte) (any, error) {
		if current != nil {
			return nil, errors.ErrUserAlreadyExists
		}
		return user, nil
	})
	if err != nil {
		return User{}, err
	}

	if err := u.store.CreateRecord(userIndexCollection, user.ID, email); err != nil {
		return User{}, err
	}
	return user, nil
}

func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	if err := u.store.GetRecord(userCollection, email, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (u UserRepository) GetUserByID(userID domain.UserID) (User, error) {
	var email string
	if err := u.store.GetRecord(userIndexCollection, string(userID), &email); err != nil {
		return User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, userID)
	}
	return u.GetUserByEmail(email)
}

// RolesOf implements auth.RoleSource against the durable record, not the
// token snapshot.
func (u UserRepository) RolesOf(userID domain.UserID) ([]domain.Capability, error) {
	user, err := u.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(user.Roles, func(role string, _ int) domain.Capability {
		return domain.Capability(role)
	}), nil
}

// Identity builds the connect-time identity snapshot of the account.
func (user User) Identity() domain.Identity {
	return domain.Identity{
		UserID:      domain.UserID(user.ID),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Capabilities: lo.Map(user.Roles, func(role string, _ int) domain.Capability {
			return domain.Capability(role)
		}),
	}
}
