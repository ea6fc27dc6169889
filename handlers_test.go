package main

import (
	"testing"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

func scopedProfile(mapping models.DealerUserMapping) *models.UserProfile {
	return &models.UserProfile{
		ID:       "p1",
		Uid:      "u1",
		Email:    "u1@test.local",
		Name:     "Mg Mg",
		Mappings: []models.DealerUserMapping{mapping},
	}
}

func TestOwnCustomerCodeForcesCustomersToThemselves(t *testing.T) {
	dealerId := "d1"

	customer := scopedProfile(models.DealerUserMapping{
		DealerId:             &dealerId,
		Roles:                models.RoleSet{models.RoleCustomer},
		CustomerExternalCode: "CUST1",
	})
	code, own := ownCustomerCode(customer, "d1")
	if !own || code != "CUST1" {
		t.Fatalf("customer must be scoped to own code, got %q own=%v", code, own)
	}

	// A mapping for another dealer grants nothing here.
	if _, own := ownCustomerCode(customer, "d2"); own {
		t.Fatal("mapping for d1 must not scope requests at d2")
	}

	manager := scopedProfile(models.DealerUserMapping{
		DealerId: &dealerId,
		Roles:    models.RoleSet{models.RoleManager},
	})
	if code, own := ownCustomerCode(manager, "d1"); own || code != "" {
		t.Fatalf("manager must keep the client-supplied code, got %q own=%v", code, own)
	}

	// An extra role carrying view-all lifts the customer scoping.
	operator := scopedProfile(models.DealerUserMapping{
		DealerId: &dealerId,
		Roles:    models.RoleSet{models.RoleOperator, models.RoleCustomer},
	})
	if _, own := ownCustomerCode(operator, "d1"); own {
		t.Fatal("a mapping with the view-all capability must not be forced to one code")
	}
}
