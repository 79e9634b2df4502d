// Package users implements signup, signin, profile updates and the
// user directory search.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/auth"
	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

const bulkKeyPrefix = "users:bulk:"

// UserView is the public projection returned by the directory search.
type UserView struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	ID        string `json:"_id"`
}

// AccountProvisioner opens the ledger account of a freshly created user.
type AccountProvisioner interface {
	CreateAccount(ctx context.Context, ownerUserID string) (models.Account, error)
}

// SearchCache caches directory search results. *cache.ViewCache satisfies it.
type SearchCache interface {
	Get(ctx context.Context, key string) (*[]UserView, bool)
	Set(ctx context.Context, key string, value *[]UserView)
	DeletePrefix(ctx context.Context, prefix string)
}

type SignupInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// ProfileUpdate holds the optional fields of a profile update.
type ProfileUpdate struct {
	Password  *string
	FirstName *string
	LastName  *string
}

type Service struct {
	store       interfaces.UserStore
	provisioner AccountProvisioner
	tokens      *auth.TokenIssuer
	cache       SearchCache
	logger      *zap.Logger
	newID       func() string
	now         func() time.Time
}

// NewService wires the user collaborator. cache may be nil.
func NewService(store interfaces.UserStore, provisioner AccountProvisioner, tokens *auth.TokenIssuer, cache SearchCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		provisioner: provisioner,
		tokens:      tokens,
		cache:       cache,
		logger:      logger,
		newID:       func() string { return uuid.New().String() },
		now:         time.Now,
	}
}

// Signup creates the user and its account and returns a bearer token.
// If the account cannot be opened the user is removed again.
func (s *Service) Signup(ctx context.Context, in SignupInput) (string, error) {
	_, err := s.store.GetUserByUsername(ctx, in.Username)
	if err == nil {
		return "", models.ErrUserExists
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return "", err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := models.User{
		ID:           s.newID(),
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return "", err
	}

	if _, err := s.provisioner.CreateAccount(ctx, user.ID); err != nil {
		if delErr := s.store.DeleteUser(context.WithoutCancel(ctx), user.ID); delErr != nil {
			s.logger.Error("failed to remove user after provisioning failure",
				zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return "", fmt.Errorf("provision account: %w", err)
	}

	s.invalidateSearch(ctx)
	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return s.tokens.Issue(user.ID, user.Username)
}

func (s *Service) Signin(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(user.ID, user.Username)
}

func (s *Service) Update(ctx context.Context, userID string, in ProfileUpdate) error {
	update := models.UserUpdate{FirstName: in.FirstName, LastName: in.LastName}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &hash
	}
	if err := s.store.UpdateUser(ctx, userID, update); err != nil {
		return err
	}
	s.invalidateSearch(ctx)
	return nil
}

// Bulk lists users whose first or last name contains filter, ignoring case.
func (s *Service) Bulk(ctx context.Context, filter string) ([]UserView, error) {
	key := bulkKeyPrefix + strings.ToLower(filter)
	if s.cache != nil {
		if views, ok := s.cache.Get(ctx, key); ok {
			return *views, nil
		}
	}

	found, err := s.store.SearchUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(found))
	for _, u := range found {
		views = append(views, UserView{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, ID: u.ID})
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, &views)
	}
	return views, nil
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if s.cache != nil {
		s.cache.DeletePrefix(ctx, bulkKeyPrefix)
	}
}
