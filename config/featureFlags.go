package config

import (
	"os"
	"strings"
)

// AllowNegativeStock disables the conditional stock decrement guard so debits
// may drive balance_qty below zero. Escape hatch for tenants migrating
// historical data; leave off in production.
//
// Set via env:
// - ALLOW_NEGATIVE_STOCK=true
func AllowNegativeStock() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_NEGATIVE_STOCK")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// PushNotificationsEnabled gates the order-status push fan-out.
//
// Set via env:
// - PUSH_NOTIFICATIONS_ENABLED=true
func PushNotificationsEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUSH_NOTIFICATIONS_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
