package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"github.com/yuqie6/ResourceTally/internal/testutil"
)

func TestActionTypeRepositoryCreateConflict(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActionTypeRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &schema.ActionType{Name: "mine", DisplayName: "Mining", Unit: "SCU"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	err := repo.Create(ctx, &schema.ActionType{Name: "mine", DisplayName: "Mining 2", Unit: "SCU"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}

	got, err := repo.GetByName(ctx, "mine")
	if err != nil || got == nil || got.Unit != "SCU" {
		t.Fatalf("got=%+v err=%v", got, err)
	}
	missing, err := repo.GetByName(ctx, "haul")
	if err != nil || missing != nil {
		t.Fatalf("missing=%+v err=%v", missing, err)
	}
}

func TestActionTypeRepositoryDeleteGuard(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActionTypeRepository(db)
	resources := NewResourceRepository(db)
	targets := NewTargetRepository(db)
	ctx := context.Background()

	at := &schema.ActionType{Name: "mine", DisplayName: "Mining", Unit: "SCU"}
	if err := repo.Create(ctx, at); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	res := &schema.Resource{TenantID: "G1", Name: "Copper", Value: "copper", ActionTypeID: at.ID}
	if err := resources.Create(ctx, res); err != nil {
		t.Fatalf("resource Create error: %v", err)
	}
	target := testutil.SeedTarget(t, db, "G1", "mine", "copper", 100)

	if err := repo.DeleteIfUnused(ctx, "mine"); !errors.Is(err, apperr.ErrDependencyInUse) {
		t.Fatalf("err=%v, want ErrDependencyInUse", err)
	}

	if err := resources.Delete(ctx, "G1", res.ID); err != nil {
		t.Fatalf("resource Delete error: %v", err)
	}
	if err := repo.DeleteIfUnused(ctx, "mine"); !errors.Is(err, apperr.ErrDependencyInUse) {
		t.Fatalf("target still references: err=%v", err)
	}

	if err := targets.Delete(ctx, target.ID); err != nil {
		t.Fatalf("target Delete error: %v", err)
	}
	if err := repo.DeleteIfUnused(ctx, "mine"); err != nil {
		t.Fatalf("DeleteIfUnused error: %v", err)
	}
	if got, _ := repo.GetByName(ctx, "mine"); got != nil {
		t.Fatalf("action type still present")
	}
	if err := repo.DeleteIfUnused(ctx, "mine"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestResourceRepositoryUniquePerTenant(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewResourceRepository(db)
	types := NewActionTypeRepository(db)
	ctx := context.Background()

	at := &schema.ActionType{Name: "mine", DisplayName: "Mining", Unit: "SCU"}
	_ = types.Create(ctx, at)

	if err := repo.Create(ctx, &schema.Resource{TenantID: "G1", Name: "Copper", Value: "copper", ActionTypeID: at.ID}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	err := repo.Create(ctx, &schema.Resource{TenantID: "G1", Name: "Copper!", Value: "copper", ActionTypeID: at.ID})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}
	if err := repo.Create(ctx, &schema.Resource{TenantID: "G2", Name: "Copper", Value: "copper", ActionTypeID: at.ID}); err != nil {
		t.Fatalf("other tenant Create error: %v", err)
	}

	g1, err := repo.ListByTenant(ctx, "G1", 0)
	if err != nil || len(g1) != 1 {
		t.Fatalf("g1=%+v err=%v", g1, err)
	}
	if err := repo.Delete(ctx, "G1", g1[0].ID+100); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}
