package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	keyPrefixKey    contextKey = "key_prefix"
	apiKeyScopesKey contextKey = "api_key_scopes"
)

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}

// SetKeyPrefix exposes the context wiring for tests.
func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	return setKeyPrefix(ctx, prefix)
}

// SetScopes exposes the context wiring for tests.
func SetScopes(ctx context.Context, scopes []string) context.Context {
	return setScopes(ctx, scopes)
}
