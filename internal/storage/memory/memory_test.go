package memory

import (
	"context"
	"testing"

	"taxledger/internal/core"
	"taxledger/internal/storage"
	"taxledger/internal/storage/storagetest"

	"github.com/shopspring/decimal"
)

var _ storage.Store = (*Store)(nil)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, err := s.CreateUser(ctx, core.NewUser{Username: "copies", Password: "x", FullName: "x", BusinessType: core.SoleTrader, BaseCurrency: "GBP"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.CreateCategory(ctx, core.NewCategory{Name: "Sales", Type: core.Income, UserID: u.ID})
	if err != nil {
		t.Fatal(err)
	}
	cat := c.ID
	tx, err := s.CreateTransaction(ctx, core.NewTransaction{
		Date:        core.NewDate(2024, 5, 1),
		Description: "a",
		Amount:      decimal.NewFromInt(1),
		Currency:    "GBP",
		Type:        core.Income,
		CategoryID:  &cat,
		UserID:      u.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	cat = 99
	*tx.CategoryID = 42

	got, _ := s.GetTransaction(ctx, tx.ID)
	if got.CategoryID == nil || *got.CategoryID != c.ID {
		t.Fatalf("stored transaction was mutated through a shared pointer: %v", got.CategoryID)
	}
}
