package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// mockJWKSClient is a mock implementation of JWKSClientInterface for testing.
type mockJWKSClient struct {
	claims   *Claims
	err      error
	received string
}

func (m *mockJWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	m.received = tokenString
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockJWKSClient) Close() {}

func TestAuthService_ValidateRequest_Cookie(t *testing.T) {
	mock := &mockJWKSClient{claims: &Claims{Groups: []string{"sales"}}}
	service := NewAuthService(mock, "", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/json/report", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	claims, token, err := service.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}
	if token != "cookie-token" {
		t.Errorf("expected cookie to win over header, got %q", token)
	}
	if claims.Groups[0] != "sales" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestAuthService_ValidateRequest_CustomCookie(t *testing.T) {
	mock := &mockJWKSClient{claims: &Claims{}}
	service := NewAuthService(mock, "sso", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/json/report", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "ignored"})
	req.AddCookie(&http.Cookie{Name: "sso", Value: "sso-token"})

	if _, token, err := service.ValidateRequest(req); err != nil || token != "sso-token" {
		t.Errorf("expected sso-token, got %q (err %v)", token, err)
	}
}

func TestAuthService_ValidateRequest_AuthHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		err    error
	}{
		{name: "bearer", header: "Bearer my-jwt-token", token: "my-jwt-token"},
		{name: "lowercase scheme", header: "bearer my-jwt-token", token: "my-jwt-token"},
		{name: "missing header", header: "", err: ErrMissingAuthorization},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", err: ErrInvalidAuthFormat},
		{name: "no token", header: "Bearer ", err: ErrInvalidAuthFormat},
		{name: "scheme only", header: "Bearer", err: ErrInvalidAuthFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockJWKSClient{claims: &Claims{}}
			service := NewAuthService(mock, "", zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/json/report", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			_, token, err := service.ValidateRequest(req)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateRequest failed: %v", err)
			}
			if token != tt.token || mock.received != tt.token {
				t.Errorf("expected token %q, got %q", tt.token, token)
			}
		})
	}
}

func TestAuthService_ValidateRequest_InvalidToken(t *testing.T) {
	validationErr := errors.New("token validation failed: token is expired")
	service := NewAuthService(&mockJWKSClient{err: validationErr}, "", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/json/report", nil)
	req.Header.Set("Authorization", "Bearer expired")

	if _, _, err := service.ValidateRequest(req); !errors.Is(err, validationErr) {
		t.Errorf("expected validation error, got %v", err)
	}
}
