// Package auth implements the legacy MONGO-CR authentication digest.
// This is deliberately not SCRAM: MONGO-CR is the mechanism a server
// expects from a getnonce/authenticate handshake, and it predates SCRAM
// entirely, so there is no ecosystem SCRAM/PBKDF2 library this could
// reuse — crypto/md5 is the whole dependency surface a single-round,
// fixed-hash legacy scheme like this one needs.
package auth

import (
	"crypto/md5"
	"encoding/hex"
)

// Key computes the password digest used by the MONGO-CR handshake:
//
//	key = md5hex(nonce + user + md5hex(user + ":mongo:" + password))
//
// The server returns nonce from a getnonce command; the caller sends
// user and this key back in the authenticate command that follows.
func Key(nonce, user, password string) string {
	h := md5.New()
	h.Write([]byte(user + ":mongo:" + password))
	userPassDigest := hex.EncodeToString(h.Sum(nil))

	h = md5.New()
	h.Write([]byte(nonce + user + userPassDigest))
	return hex.EncodeToString(h.Sum(nil))
}
