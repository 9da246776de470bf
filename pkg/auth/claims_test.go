package auth

import (
	"context"
	"testing"
)

func TestWithClaims_RoundTrip(t *testing.T) {
	claims := &Claims{Groups: []string{"sales"}}
	claims.Subject = "user-123"

	ctx := WithClaims(context.Background(), claims, "raw-token")

	got, ok := GetClaims(ctx)
	if !ok {
		t.Fatal("expected claims to be found")
	}
	if got.Subject != "user-123" {
		t.Errorf("expected subject 'user-123', got %q", got.Subject)
	}
	token, ok := GetToken(ctx)
	if !ok || token != "raw-token" {
		t.Errorf("expected token 'raw-token', got %q", token)
	}
	if !IsAuthenticated(ctx) {
		t.Error("expected context to be authenticated")
	}
}

func TestGetClaims_NotFound(t *testing.T) {
	if _, ok := GetClaims(context.Background()); ok {
		t.Error("expected claims to not be found")
	}
	if IsAuthenticated(context.Background()) {
		t.Error("expected anonymous context")
	}
}

func TestGetClaims_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClaimsKey, "not-a-claims-struct")

	if _, ok := GetClaims(ctx); ok {
		t.Error("expected claims to not be found when wrong type")
	}
}

func TestGetClaims_NilPointer(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClaimsKey, (*Claims)(nil))

	if _, ok := GetClaims(ctx); ok {
		t.Error("expected nil claims to count as missing")
	}
}

func TestGetGroupsFromContext(t *testing.T) {
	if groups := GetGroupsFromContext(context.Background()); groups != nil {
		t.Errorf("expected nil groups for anonymous request, got %v", groups)
	}

	ctx := WithClaims(context.Background(), &Claims{Groups: []string{"ops", "sales"}}, "t")
	groups := GetGroupsFromContext(ctx)
	if len(groups) != 2 || groups[1] != "sales" {
		t.Errorf("unexpected groups %v", groups)
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	if got := GetUserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user ID without claims, got %q", got)
	}

	claims := &Claims{}
	claims.Subject = "user-9"
	if got := GetUserIDFromContext(WithClaims(context.Background(), claims, "t")); got != "user-9" {
		t.Errorf("expected user-9, got %q", got)
	}
}
