// Package upload signs browser-side resume uploads to ImageKit.
//
// The browser uploads the file directly to ImageKit using short-lived
// credentials issued here; the private key never leaves the server.
package upload

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultExpiry is how long signed parameters stay valid. ImageKit rejects
// expiries more than one hour ahead.
const DefaultExpiry = 30 * time.Minute

// DefaultFolder is the upload destination.
const DefaultFolder = "/resumes"

// ErrNotConfigured is returned when no ImageKit keys are set.
var ErrNotConfigured = errors.New("upload: imagekit keys are not configured")

// Config holds the ImageKit account settings.
type Config struct {
	PublicKey   string
	PrivateKey  string
	URLEndpoint string
	Folder      string
	Expiry      time.Duration
}

// Auth is the set of parameters the browser passes to the ImageKit upload
// API.
type Auth struct {
	Token       string `json:"token"`
	Expire      int64  `json:"expire"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	URLEndpoint string `json:"urlEndpoint"`
	Folder      string `json:"folder"`
}

// Signer issues [Auth] parameters.
type Signer struct {
	cfg   Config
	now   func() time.Time
	token func() string
}

// NewSigner returns a [Signer]. Folder and Expiry default when unset.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.Expiry <= 0 || cfg.Expiry > time.Hour {
		cfg.Expiry = DefaultExpiry
	}
	return &Signer{cfg: cfg, now: time.Now, token: uuid.NewString}, nil
}

// Sign returns fresh upload parameters.
func (s *Signer) Sign() Auth {
	token := s.token()
	expire := s.now().Add(s.cfg.Expiry).Unix()
	return Auth{
		Token:       token,
		Expire:      expire,
		Signature:   Signature(s.cfg.PrivateKey, token, expire),
		PublicKey:   s.cfg.PublicKey,
		URLEndpoint: s.cfg.URLEndpoint,
		Folder:      s.cfg.Folder,
	}
}

// Signature computes ImageKit's hex HMAC-SHA1 of token followed by expire.
func Signature(privateKey, token string, expire int64) string {
	mac := hmac.New(sha1.New, []byte(privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
