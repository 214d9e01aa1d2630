// SPDX-License-Identifier: MIT

// Package playback issues and verifies signed playback tokens and
// renders the embedded player page.
package playback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenTTL is how long an issued playback token stays valid.
const TokenTTL = time.Hour

// payloadSep is the ASCII unit separator. Colons are common in
// User-Agent strings, so the MAC payload uses \x1F between fields.
const payloadSep = "\x1f"

// Authorizer binds playback tokens to a video, client IP and user agent.
type Authorizer struct {
	secret []byte
	now    func() time.Time
}

// NewAuthorizer returns an Authorizer signing with secret.
func NewAuthorizer(secret string) *Authorizer {
	return &Authorizer{secret: []byte(secret), now: time.Now}
}

func (a *Authorizer) mac(videoID string, expiry int64, ip, userAgent string) []byte {
	h := hmac.New(sha256.New, a.secret)
	fmt.Fprintf(h, "%s%s%d%s%s%s%s", videoID, payloadSep, expiry, payloadSep, ip, payloadSep, userAgent)
	return h.Sum(nil)
}

// IssueToken returns a token of the form "{expiry}:{hex(mac)}" valid
// for TokenTTL from now.
func (a *Authorizer) IssueToken(videoID, ip, userAgent string) string {
	expiry := a.now().Add(TokenTTL).Unix()
	sig := a.mac(videoID, expiry, ip, userAgent)
	return strconv.FormatInt(expiry, 10) + ":" + hex.EncodeToString(sig)
}

// VerifyToken checks token against the video, client IP and user agent.
// The MAC comparison is constant-time over the raw signature bytes.
func (a *Authorizer) VerifyToken(videoID, token, ip, userAgent string) bool {
	expiryStr, sigHex, ok := strings.Cut(token, ":")
	if !ok {
		return false
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return false
	}
	if a.now().Unix() > expiry {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, a.mac(videoID, expiry, ip, userAgent))
}
