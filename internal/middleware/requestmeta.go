package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/page-votes/internal/handlers"
)

// RequestMeta attaches the request id, client IP and user agent to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			RequestID: RequestIDFromContext(ctx.Context()),
			ClientIP:  ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
		}

		next(huma.WithContext(ctx, handlers.ContextWithRequestMeta(ctx.Context(), meta)))
	}
}
