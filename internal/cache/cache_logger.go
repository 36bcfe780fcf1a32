package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateRegistrationCache drops the cached entry for one registration and
// any course-scoped listings that may contain it.
func InvalidateRegistrationCache(ctx context.Context, cm *CacheManager, registrationID uint, courseID uint) {
	SafeDelete(ctx, cm.Registration, fmt.Sprintf("id:%d", registrationID))
	SafeInvalidatePattern(ctx, cm.Registration, fmt.Sprintf("course:%d:*", courseID))
	SafeInvalidatePattern(ctx, cm.Exists, fmt.Sprintf("registration:%d:*", courseID))
}
