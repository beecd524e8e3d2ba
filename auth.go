package mongo

import (
	"context"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/internal/auth"
)

// Authenticate performs the legacy MONGO-CR two-step handshake against
// the session's current database: getnonce, then authenticate using a
// password digest derived from that nonce.
func (s *Session) Authenticate(ctx context.Context, user, password string) error {
	var nonceResp struct {
		Nonce string `bson:"nonce"`
	}
	if err := s.Run1(ctx, "getnonce", &nonceResp); err != nil {
		return err
	}

	key := auth.Key(nonceResp.Nonce, user, password)
	cmd := bson.D{
		{"authenticate", 1},
		{"user", user},
		{"nonce", nonceResp.Nonce},
		{"key", key},
	}
	return s.Run(ctx, cmd, nil)
}
