package services

import (
	"context"
	"strings"

	"taxledger/internal/core"
	"taxledger/internal/storage"
)

type CategoryService struct {
	categories storage.CategoryStore
	users      storage.UserStore
}

func NewCategoryService(categories storage.CategoryStore, users storage.UserStore) *CategoryService {
	return &CategoryService{categories: categories, users: users}
}

// List returns the user's categories. An unknown user has none.
func (s *CategoryService) List(ctx context.Context, userID int64) ([]core.Category, error) {
	return s.categories.GetCategories(ctx, userID)
}

func (s *CategoryService) Create(ctx context.Context, in core.NewCategory) (core.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := requireUser(ctx, s.users, in.UserID, "userId"); err != nil {
		return core.Category{}, err
	}
	return s.categories.CreateCategory(ctx, in)
}
