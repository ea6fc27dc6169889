package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

func strPtr(s string) *string { return &s }

func profileWith(mappings ...models.DealerUserMapping) *models.UserProfile {
	return &models.UserProfile{
		ID:       "p1",
		Uid:      "u1",
		Email:    "u1@test.local",
		Mappings: mappings,
	}
}

func TestHasRoleFailsClosed(t *testing.T) {
	if models.HasRole(nil, []models.Role{models.RoleAdmin}, "d1") {
		t.Fatal("nil profile must never pass a role check")
	}

	p := profileWith(models.DealerUserMapping{
		DealerId: strPtr("d1"),
		Roles:    models.RoleSet{models.RoleOperator},
	})
	if models.HasRole(p, []models.Role{models.RoleOperator}, "d2") {
		t.Fatal("mapping for d1 must not grant a role at d2")
	}
	if models.HasRole(p, []models.Role{models.RoleManager}, "d1") {
		t.Fatal("operator must not pass a manager check")
	}
	if !models.HasRole(p, []models.Role{models.RoleManager, models.RoleOperator}, "d1") {
		t.Fatal("operator should pass when operator is among the allowed roles")
	}
}

func TestHasRoleEmptyAllowListAdmitsAnyAuthenticatedUser(t *testing.T) {
	p := profileWith(models.DealerUserMapping{
		DealerId: strPtr("d1"),
		Roles:    models.RoleSet{models.RoleCustomer},
	})
	if !models.HasRole(p, nil, "d2") {
		t.Fatal("empty allow list should admit any authenticated profile")
	}
	if models.HasRole(nil, nil, "d1") {
		t.Fatal("nil profile must fail even with an empty allow list")
	}
}

func TestGlobalMappingAppliesToEveryDealer(t *testing.T) {
	p := profileWith(models.DealerUserMapping{
		DealerId: nil,
		Roles:    models.RoleSet{models.RoleAdmin},
	})

	if !models.IsAssociatedWithDealer(p, "d1") || !models.IsAssociatedWithDealer(p, "d2") {
		t.Fatal("nil-dealer mapping should associate the profile with every dealer")
	}
	if m := p.MappingForDealer("d99"); m == nil {
		t.Fatal("nil-dealer mapping should resolve for any dealer")
	}
	if !models.HasCapability(p, models.CapabilityManageUsers, "d42") {
		t.Fatal("global admin should hold capabilities everywhere")
	}
}

func TestIsAssociatedWithDealerScopedMappings(t *testing.T) {
	p := profileWith(
		models.DealerUserMapping{DealerId: strPtr("d1"), Roles: models.RoleSet{models.RoleSalesperson}},
		models.DealerUserMapping{DealerId: strPtr("d2"), Roles: models.RoleSet{models.RoleCustomer}},
	)
	if !models.IsAssociatedWithDealer(p, "d2") {
		t.Fatal("profile mapped to d2 should be associated with d2")
	}
	if models.IsAssociatedWithDealer(p, "d3") {
		t.Fatal("profile must not be associated with an unmapped dealer")
	}
	if models.IsAssociatedWithDealer(profileWith(), "d1") {
		t.Fatal("profile without mappings must not be associated with any dealer")
	}
}

func TestRoleCapabilityMatrix(t *testing.T) {
	cases := []struct {
		role       models.Role
		capability models.Capability
		want       bool
	}{
		{models.RoleManager, models.CapabilityManageCatalog, true},
		{models.RoleManager, models.CapabilityManageUsers, false},
		{models.RoleOperator, models.CapabilityManageStock, true},
		{models.RoleOperator, models.CapabilityManageCatalog, false},
		{models.RoleSalesperson, models.CapabilityPlaceOrders, true},
		{models.RoleSalesperson, models.CapabilityViewAllOrders, false},
		{models.RoleCustomer, models.CapabilityPlaceOrders, true},
		{models.RoleCustomer, models.CapabilityExportDocuments, false},
		{models.RoleDealer, models.CapabilityManageUsers, true},
	}
	for _, tc := range cases {
		if got := tc.role.HasCapability(tc.capability); got != tc.want {
			t.Errorf("%s.HasCapability(%s) = %v, want %v", tc.role, tc.capability, got, tc.want)
		}
	}
}

func TestHasCapabilityUsesRolesAtTheDealer(t *testing.T) {
	p := profileWith(
		models.DealerUserMapping{DealerId: strPtr("d1"), Roles: models.RoleSet{models.RoleManager}},
		models.DealerUserMapping{DealerId: strPtr("d2"), Roles: models.RoleSet{models.RoleCustomer}},
	)
	if !models.HasCapability(p, models.CapabilityManageCatalog, "d1") {
		t.Fatal("manager at d1 should manage the catalog at d1")
	}
	if models.HasCapability(p, models.CapabilityManageCatalog, "d2") {
		t.Fatal("customer at d2 must not manage the catalog at d2")
	}
}

func TestParseRoleAndOrderStatusRejectUnknownValues(t *testing.T) {
	if _, err := models.ParseRole("superuser"); err == nil {
		t.Fatal("unknown role should be rejected")
	}
	if _, err := models.ParseOrderStatus("archived"); err == nil {
		t.Fatal("unknown order status should be rejected")
	}
	if r, err := models.ParseRole("manager"); err != nil || r != models.RoleManager {
		t.Fatalf("ParseRole(manager) = %v, %v", r, err)
	}
}
