package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/dealer_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyDealerId      = appctx.ContextKeyDealerId
	ContextKeyUid           = appctx.ContextKeyUid
	ContextKeyEmail         = appctx.ContextKeyEmail
	ContextKeyUserIDName    = appctx.ContextKeyUserIDName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeyIsAdmin         = appctx.ContextKeyIsAdmin
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetDealerIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyDealerId)
}

func GetUidFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUid)
}

func GetEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyEmail)
}

func GetUserIDNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserIDName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetDealerIdInContext(ctx context.Context, dealerId string) context.Context {
	return appctx.Set(ctx, ContextKeyDealerId, dealerId)
}

func SetUidInContext(ctx context.Context, uid string) context.Context {
	return appctx.Set(ctx, ContextKeyUid, uid)
}

func SetEmailInContext(ctx context.Context, email string) context.Context {
	return appctx.Set(ctx, ContextKeyEmail, email)
}

func SetUserIDNameInContext(ctx context.Context, userIDName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserIDName, userIDName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func GetSkipTenantScopeFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeySkipTenantScope)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}
