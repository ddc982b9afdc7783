package upload

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSignature(t *testing.T) {
	t.Parallel()

	mac := hmac.New(sha1.New, []byte("private_key"))
	mac.Write([]byte("tok-1" + "1700000000"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := Signature("private_key", "tok-1", 1700000000); got != want {
		t.Errorf("Signature = %s, want %s", got, want)
	}
	if Signature("other", "tok-1", 1700000000) == want {
		t.Error("signature must depend on the private key")
	}
	if len(want) != 40 {
		t.Errorf("hex SHA-1 length = %d, want 40", len(want))
	}
}

func TestSigner_Sign(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(Config{PublicKey: "public_x", PrivateKey: "private_x", URLEndpoint: "https://ik.imagekit.io/demo"})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := s.Sign()
	if _, err := uuid.Parse(a.Token); err != nil {
		t.Errorf("token %q is not a uuid: %v", a.Token, err)
	}
	if a.Expire != now.Add(DefaultExpiry).Unix() {
		t.Errorf("expire = %d", a.Expire)
	}
	if a.Signature != Signature("private_x", a.Token, a.Expire) {
		t.Error("signature mismatch")
	}
	if a.PublicKey != "public_x" || a.Folder != DefaultFolder || a.URLEndpoint != "https://ik.imagekit.io/demo" {
		t.Errorf("auth = %+v", a)
	}

	if b := s.Sign(); b.Token == a.Token {
		t.Error("tokens must be unique per call")
	}
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	if _, err := NewSigner(Config{PublicKey: "p"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	s, err := NewSigner(Config{PublicKey: "p", PrivateKey: "k", Folder: "/cv", Expiry: 2 * time.Hour})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.cfg.Expiry != DefaultExpiry {
		t.Errorf("expiry = %v, want clamped to default", s.cfg.Expiry)
	}
	if s.cfg.Folder != "/cv" {
		t.Errorf("folder = %q", s.cfg.Folder)
	}
}
