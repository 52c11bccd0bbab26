package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSignAndVerifyJWT(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	valid, err := SignJWT("secret", TokenClaims{Sub: "user-1", Exp: now.Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	expired, _ := SignJWT("secret", TokenClaims{Sub: "user-1", Exp: now.Add(-time.Second).Unix()})
	noSubject, _ := SignJWT("secret", TokenClaims{Exp: now.Add(time.Hour).Unix()})

	tests := []struct {
		name    string
		secret  string
		token   string
		wantErr error
	}{
		{name: "valid", secret: "secret", token: valid},
		{name: "wrong secret", secret: "other", token: valid, wantErr: ErrInvalidToken},
		{name: "expired", secret: "secret", token: expired, wantErr: ErrTokenExpired},
		{name: "missing subject", secret: "secret", token: noSubject, wantErr: ErrInvalidToken},
		{name: "garbage", secret: "secret", token: "a.b", wantErr: ErrInvalidToken},
		{name: "tampered payload", secret: "secret", token: tamper(valid), wantErr: ErrInvalidToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := verifyJWTAt(tc.secret, tc.token, now)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if claims.Sub != "user-1" {
				t.Fatalf("Sub = %q", claims.Sub)
			}
		})
	}
}

func tamper(token string) string {
	parts := strings.Split(token, ".")
	parts[1] = parts[1][:len(parts[1])-1] + "A"
	if parts[1] == strings.Split(token, ".")[1] {
		parts[1] = parts[1][:len(parts[1])-1] + "B"
	}
	return strings.Join(parts, ".")
}

func TestAuthJWTMiddleware(t *testing.T) {
	token, _ := SignJWT("secret", TokenClaims{Sub: "user-9"})
	var seen string
	h := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "ok", header: "Bearer " + token, want: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token, want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "basic", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer x.y.z", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK && seen != "user-9" {
				t.Fatalf("user id = %q", seen)
			}
			if tc.want == http.StatusUnauthorized {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "unauthorized" {
					t.Fatalf("body = %s", rec.Body.String())
				}
			}
		})
	}
}
