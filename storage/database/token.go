package database

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"strconv"
	"strings"
	"time"
)

const resetTokenTTL = 3 * 24 * time.Hour

var b32enc = base32.StdEncoding.WithPadding(base32.NoPadding)

// makeResetToken builds a timestamped, HMAC-signed password reset token.
// The signature covers the current password hash, so a token stops
// working as soon as the password changes.
func makeResetToken(secret []byte, acct accountRow) string {
	ts := strconv.FormatInt(nowFn().Unix(), 36)
	return ts + "-" + signResetToken(secret, acct, ts)
}

func checkResetToken(secret []byte, acct accountRow, token string) bool {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return false
	}
	issued, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil {
		return false
	}
	if nowFn().Sub(time.Unix(issued, 0)) > resetTokenTTL {
		return false
	}
	return hmac.Equal([]byte(parts[1]), []byte(signResetToken(secret, acct, parts[0])))
}

func signResetToken(secret []byte, acct accountRow, ts string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(acct.ID))
	mac.Write(acct.PasswordHash)
	mac.Write([]byte(ts))
	return b32enc.EncodeToString(mac.Sum(nil))
}
