package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"taxledger/internal/core"
	"taxledger/internal/log"
	"taxledger/internal/storage"
)

type UserService struct {
	users      storage.UserStore
	currencies storage.CurrencyStore
	logger     *log.Logger
}

func NewUserService(users storage.UserStore, currencies storage.CurrencyStore, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.Discard()
	}
	return &UserService{users: users, currencies: currencies, logger: logger.WithComponent(log.ComponentUser)}
}

func (s *UserService) Get(ctx context.Context, id int64) (core.User, error) {
	return s.users.GetUser(ctx, id)
}

// Create registers a user. The base currency defaults to GBP and must be a
// known currency. The password is stored as a bcrypt hash.
func (s *UserService) Create(ctx context.Context, in core.NewUser) (core.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.BaseCurrency = core.NormalizeCode(in.BaseCurrency)
	if in.BaseCurrency == "" {
		in.BaseCurrency = core.BaseCurrency
	}
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}

	if _, err := s.currencies.GetCurrency(ctx, in.BaseCurrency); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.User{}, core.NewValidationError("baseCurrency", "unknown currency "+in.BaseCurrency)
		}
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	in.Password = string(hash)

	u, err := s.users.CreateUser(ctx, in)
	if err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User created", log.FieldUserID, u.ID, log.FieldOperation, log.OpCreate)
	return u, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u core.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// requireUser maps a missing user onto a validation problem for field.
func requireUser(ctx context.Context, users storage.UserStore, id int64, field string) (core.User, error) {
	if id <= 0 {
		return core.User{}, core.NewValidationError(field, "is required")
	}
	u, err := users.GetUser(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.NewValidationError(field, fmt.Sprintf("unknown user %d", id))
	}
	return u, err
}
