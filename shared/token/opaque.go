package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
)

const opaqueTokenBytes = 32

// OpaqueToken is a single-use random value. Raw goes to the user, Hash is
// what gets persisted.
type OpaqueToken struct {
	Raw       string
	Hash      string
	Type      Type
	ExpiresAt time.Time
}

// HashOpaque returns the hex SHA-256 of a raw opaque token.
func HashOpaque(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// MatchOpaque compares raw against a stored hash in constant time.
func MatchOpaque(raw, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashOpaque(raw)), []byte(hash)) == 1
}

func (i *Issuer) opaque(typ Type, expiry time.Duration) (*OpaqueToken, error) {
	raw, err := utils.GenerateRandomToken(opaqueTokenBytes)
	if err != nil {
		i.opts.Metrics.RecordIssueFailure(string(typ))
		return nil, newIssuanceError(typ, err)
	}
	i.opts.Metrics.RecordIssued(string(typ))
	return &OpaqueToken{
		Raw:       raw,
		Hash:      HashOpaque(raw),
		Type:      typ,
		ExpiresAt: i.now().Add(expiry),
	}, nil
}
