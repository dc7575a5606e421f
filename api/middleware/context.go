package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxTier   contextKey = "actor_tier"
)

func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func TierFromContext(ctx context.Context) enums.UserTier {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTier).(enums.UserTier); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithTier injects the actor tier into the context for downstream handlers.
func WithTier(ctx context.Context, tier enums.UserTier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTier, tier)
}
