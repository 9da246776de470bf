package auth

import "context"

// GetUserIDFromContext extracts the user ID (sub) from JWT claims in the context.
// Returns empty string if not authenticated.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}

// GetGroupsFromContext returns the caller's groups, or nil for anonymous requests.
func GetGroupsFromContext(ctx context.Context) []string {
	claims, ok := GetClaims(ctx)
	if !ok {
		return nil
	}
	return claims.Groups
}

// IsAuthenticated reports whether the request carried a valid token.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := GetClaims(ctx)
	return ok
}
