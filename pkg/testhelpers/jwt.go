// Package testhelpers provides utilities for testing ekaya-hangar components.
package testhelpers

import (
	"encoding/base64"
	"encoding/json"
)

// GenerateTestJWT creates an unsigned (alg: none) token for use when
// verification is disabled. groups become the token's groups claim.
func GenerateTestJWT(sub string, groups ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	claims := map[string]any{"sub": sub}
	if len(groups) > 0 {
		claims["groups"] = groups
	}
	payload, _ := json.Marshal(claims)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(sub string, groups ...string) string {
	return "Bearer " + GenerateTestJWT(sub, groups...)
}
