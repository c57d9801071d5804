package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner mints and verifies download tokens for exported call
// lists. The token carries the call list id and the artifact's relative
// path, so downloads need no database lookup.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Token layout: listID.expiry.base64(path).hmac

// Generate returns a signed token for downloading a call-list artifact.
func (s *SignedURLSigner) Generate(listID, relPath string) (string, time.Time, error) {
	if listID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("listID and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	signature := s.sign(listID, expiry, encodedPath)
	token := strings.Join([]string{listID, expiry, encodedPath, signature}, ".")
	return token, expiresAt, nil
}

// Parse verifies a token and returns the embedded call list id, artifact
// path and expiry. allowExpired skips the timestamp check; cleanup routines
// use it to resolve paths of artifacts past their TTL.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (listID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	listID, expiry, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode path: %w", err)
	}
	expUnix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)

	expected := s.sign(listID, expiry, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return listID, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(listID, expiry, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", listID, expiry, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}
