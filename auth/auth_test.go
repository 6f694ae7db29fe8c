package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

func TestToken_RoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(42, "alice", KindUser, time.Hour)
	req.NoError(err)

	claims, err := ValidateUserToken(token)
	req.NoError(err)
	req.Equal(int64(42), claims.ID)
	req.Equal("alice", claims.Username)
	req.Equal(KindUser, claims.Kind)
}

func TestToken_AdminRefusedAtRealtimeBoundary(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(1, "root", KindAdmin, time.Hour)
	req.NoError(err)

	// Valid credential, wrong principal kind.
	_, err = ValidateToken(token)
	req.NoError(err)

	_, err = ValidateUserToken(token)
	req.ErrorIs(err, apperrors.ErrNotUserToken)
}

func TestToken_Garbage(t *testing.T) {
	req := require.New(t)

	_, err := ValidateUserToken("not-a-token")
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(7, "bob", KindUser, -time.Minute)
	req.NoError(err)

	_, err = ValidateUserToken(token)
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}
