package access

import (
	"testing"

	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/lib/pq"
)

func TestIsVisible(t *testing.T) {
	roles := pq.StringArray{"admin", "distributor"}

	t.Run("member role sees entity", func(t *testing.T) {
		if !IsVisible(roles, enums.RoleDistributor) {
			t.Fatal("distributor should see entity")
		}
	})
	t.Run("non-member role blocked", func(t *testing.T) {
		if IsVisible(roles, enums.RoleInstaller) {
			t.Fatal("installer should not see entity")
		}
	})
	t.Run("admin always passes", func(t *testing.T) {
		if !IsVisible(pq.StringArray{"user"}, enums.RoleAdmin) {
			t.Fatal("admin should see every entity")
		}
	})
	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			if !IsVisible(roles, enums.RoleDistributor) {
				t.Fatal("visibility flipped between identical calls")
			}
		}
	})
}

func TestFilter(t *testing.T) {
	type entity struct {
		name  string
		roles pq.StringArray
	}
	entities := []entity{
		{name: "public", roles: pq.StringArray{"admin", "user", "installer"}},
		{name: "distributor-only", roles: pq.StringArray{"admin", "distributor"}},
		{name: "admin-only", roles: pq.StringArray{"admin"}},
	}

	visible := Filter(entities, enums.RoleInstaller, func(e entity) pq.StringArray { return e.roles })
	if len(visible) != 1 || visible[0].name != "public" {
		t.Fatalf("expected only public entity for installer, got %v", visible)
	}

	all := Filter(entities, enums.RoleAdmin, func(e entity) pq.StringArray { return e.roles })
	if len(all) != len(entities) {
		t.Fatalf("admin should see all %d entities, got %d", len(entities), len(all))
	}
}

func TestNormalize(t *testing.T) {
	t.Run("admin always included", func(t *testing.T) {
		roles, err := Normalize([]string{"installer"})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		found := false
		for _, r := range roles {
			if r == "admin" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected admin in %v", roles)
		}
	})
	t.Run("empty set rejected", func(t *testing.T) {
		_, err := Normalize(nil)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation code, got %v", err)
		}
	})
	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := Normalize([]string{"superuser"})
		if err == nil {
			t.Fatal("expected validation error")
		}
	})
	t.Run("duplicates collapsed", func(t *testing.T) {
		roles, err := Normalize([]string{"user", "user", "admin"})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if len(roles) != 2 {
			t.Fatalf("expected 2 roles, got %v", roles)
		}
	})
}
