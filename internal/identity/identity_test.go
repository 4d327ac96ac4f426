package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dvloznov/wealthflow/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	v, err := NewVerifier("s3cret", "wealthflow")
	if err != nil {
		t.Fatal(err)
	}

	want := domain.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"}
	token, err := v.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := v.Verify("Bearer " + token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != want {
		t.Errorf("Verify = %+v, want %+v", got, want)
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, _ := NewVerifier("s3cret", "wealthflow")
	other, _ := NewVerifier("other", "wealthflow")
	wrongIssuer, _ := NewVerifier("s3cret", "someone-else")

	user := domain.User{ID: "user-1"}
	foreign, _ := other.Issue(user, time.Hour)
	misissued, _ := wrongIssuer.Issue(user, time.Hour)
	expired, _ := v.Issue(user, -time.Minute)

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "wealthflow",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"bearer only", "Bearer ", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"wrong issuer", misissued, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"missing subject", noSub, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	if _, err := NewVerifier("", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
