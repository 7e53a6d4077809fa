// Package interceptor provides built-in request interceptors.
package interceptor

import (
	"context"
	"encoding/base64"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/go-warp/warp"
)

// Header returns an interceptor that appends a static header to every
// request.
func Header(key string, values ...string) warp.RequestInterceptor {
	return warp.RequestInterceptorFunc(func(_ context.Context, template *warp.RequestTemplate) {
		template.Header(key, values...)
	})
}

// BasicAuth returns an interceptor that sets the Authorization header using
// HTTP basic authentication.
func BasicAuth(username, password string) warp.RequestInterceptor {
	credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return warp.RequestInterceptorFunc(func(_ context.Context, template *warp.RequestTemplate) {
		template.Headers().Set("Authorization", "Basic "+credentials)
	})
}

// Bearer returns an interceptor that sets the Authorization header to a
// bearer token.
func Bearer(token string) warp.RequestInterceptor {
	return warp.RequestInterceptorFunc(func(_ context.Context, template *warp.RequestTemplate) {
		template.Headers().Set("Authorization", "Bearer "+token)
	})
}

// Propagation returns an interceptor that injects the invocation's trace
// context into the request headers using the globally registered
// OpenTelemetry propagator.
func Propagation() warp.RequestInterceptor {
	return warp.RequestInterceptorFunc(func(ctx context.Context, template *warp.RequestTemplate) {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(template.Headers()))
	})
}
