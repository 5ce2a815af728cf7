package auth

import (
	"testing"
	"time"
)

func TestSessionIssuerRoundTripsThroughValidator(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return clockNow }

	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		TTL:           time.Hour,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	token, expiresAt, err := issuer.Issue(SessionClaims{
		MemberID:    " " + testSessionMemberID + " ",
		MemberEmail: testSessionMemberEmail,
		MemberName:  "Emma Davis",
		MemberRoles: []string{"manager"},
	})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if !expiresAt.Equal(clockNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.MemberID != testSessionMemberID || claims.Subject != testSessionMemberID {
		t.Fatalf("unexpected member id %q / subject %q", claims.MemberID, claims.Subject)
	}
	if len(claims.MemberRoles) != 1 || claims.MemberRoles[0] != "manager" {
		t.Fatalf("unexpected roles %#v", claims.MemberRoles)
	}
}

func TestSessionIssuerRejectsMissingInputs(t *testing.T) {
	if _, err := NewSessionIssuer(SessionIssuerConfig{}); err == nil {
		t.Fatalf("expected missing secret error")
	}

	issuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := issuer.Issue(SessionClaims{MemberID: "   "}); err == nil {
		t.Fatalf("expected missing member id error")
	}
}
