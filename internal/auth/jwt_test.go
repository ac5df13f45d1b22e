package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testTokenService() TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "bookring-test",
		Duration: time.Hour,
	}
}

func TestSignAndParseRoundTrip(t *testing.T) {
	ts := testTokenService()
	u := &User{
		ID:           "u1",
		Username:     "frank",
		Email:        "frank@example.com",
		TokenVersion: 3,
	}

	token, exp, err := ts.Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("expiry must be in the future")
	}

	claims, err := ts.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "frank" || claims.Email != "frank@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenVersion != 3 {
		t.Fatalf("token_version lost: %d", claims.TokenVersion)
	}
	if claims.Issuer != "bookring-test" || claims.Subject != "u1" {
		t.Fatalf("registered claims wrong: %+v", claims.RegisteredClaims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	ts := testTokenService()
	token, _, err := ts.Sign(&User{ID: "u1", Username: "frank"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other := testTokenService()
	other.Secret = []byte("different-secret")
	if _, err := other.Parse(token); err == nil {
		t.Fatal("expected signature rejection")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	ts := testTokenService()
	ts.Duration = -time.Minute

	token, _, err := ts.Sign(&User{ID: "u1", Username: "frank"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ts.Parse(token); err == nil {
		t.Fatal("expected expiry rejection")
	}
}

func TestParseRejectsUnsignedAlg(t *testing.T) {
	ts := testTokenService()

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	unsigned, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ts.Parse(unsigned); err == nil {
		t.Fatal("alg=none must be rejected")
	}
}
