package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
)

/* DB fetching */

// fetch model from db without dealer scoping
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id string, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (dealerId is used in query's WHERE, may return RecordNotFound;
// background jobs can opt out of the dealer scope via context)
func FetchModel[T any](ctx context.Context, dealerId string, id string, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if skip, ok := GetSkipTenantScopeFromContext(ctx); !ok || !skip {
		dbCtx = dbCtx.Where("dealer_id = ?", dealerId)
	}
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}
