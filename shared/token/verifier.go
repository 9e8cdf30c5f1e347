package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind is the stable outcome of a verification.
type Kind int

const (
	KindValid Kind = iota
	KindExpired
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindValid:
		return "valid"
	case KindExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Reasons attached to KindInvalid results. They are for logs and metrics,
// not for end users.
const (
	ReasonMalformed      = "malformed"
	ReasonSignature      = "signature"
	ReasonIssuer         = "issuer"
	ReasonAudience       = "audience"
	ReasonNotYetValid    = "not_yet_valid"
	ReasonMissingClaims  = "missing_claims"
	ReasonWrongType      = "wrong_type"
	ReasonActionMismatch = "action_mismatch"
	ReasonInvalid        = "invalid"
)

// Result is the tagged outcome of Verify: valid with Claims, expired, or
// invalid with a Reason. An expired result still carries Claims, since its
// signature, issuer and audience checked out; they identify the session but
// authorise nothing.
type Result struct {
	Valid   bool
	Kind    Kind
	Expired bool
	Claims  *Claims
	Reason  string
}

// Err maps the result to ErrExpiredToken, ErrInvalidToken or nil.
func (r Result) Err() error {
	switch r.Kind {
	case KindValid:
		return nil
	case KindExpired:
		return ErrExpiredToken
	default:
		return ErrInvalidToken
	}
}

func valid(c *Claims) Result { return Result{Valid: true, Kind: KindValid, Claims: c} }

func expired() Result { return Result{Kind: KindExpired, Expired: true} }

func invalid(reason string) Result { return Result{Kind: KindInvalid, Reason: reason} }

// Verifier validates signature, issuer, audience and expiry of tokens
// produced by an Issuer with the same Options.
type Verifier struct {
	opts Options
	now  func() time.Time
}

func NewVerifier(opts Options) *Verifier {
	return &Verifier{opts: opts, now: opts.clock()}
}

// Verify checks raw against secret. It does not look at the type claim;
// use VerifyAccess, VerifyRefresh, VerifyType or VerifyTemporary when the
// purpose of the token matters, which is almost always.
func (v *Verifier) Verify(raw string, secret []byte) Result {
	if raw == "" {
		return invalid(ReasonMalformed)
	}
	if len(secret) == 0 {
		return invalid(ReasonSignature)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.opts.Issuer),
		jwt.WithAudience(v.opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithTimeFunc(v.now),
	)

	mc := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		res := classify(err)
		if res.Expired {
			if claims, ok := claimsFromMap(mc); ok {
				res.Claims = claims
			}
		}
		return res
	}

	claims, ok := claimsFromMap(mc)
	if !ok {
		return invalid(ReasonMissingClaims)
	}
	return valid(claims)
}

// VerifyType verifies raw with the secret belonging to typ and requires the
// type claim to match. A structurally valid token of another purpose is
// rejected.
func (v *Verifier) VerifyType(raw string, typ Type) Result {
	secret := v.opts.AccessSecret
	if typ == TypeRefresh {
		secret = v.opts.RefreshSecret
	}

	res := v.Verify(raw, secret)
	if res.Claims != nil && res.Claims.Type != typ {
		res = invalid(ReasonWrongType)
	}
	v.opts.Metrics.RecordVerification(string(typ), res.Kind.String())
	return res
}

func (v *Verifier) VerifyAccess(raw string) Result {
	return v.VerifyType(raw, TypeAccess)
}

func (v *Verifier) VerifyRefresh(raw string) Result {
	return v.VerifyType(raw, TypeRefresh)
}

// VerifyTemporary requires a temporary token and, when expectedAction is not
// empty, that it was issued for exactly that action.
func (v *Verifier) VerifyTemporary(raw, expectedAction string) Result {
	res := v.VerifyType(raw, TypeTemporary)
	if !res.Valid {
		res.Claims = nil
		return res
	}
	if expectedAction != "" && res.Claims.Action() != expectedAction {
		return invalid(ReasonActionMismatch)
	}
	return res
}

// classify turns a jwt parse error into a Result. A token is reported as
// expired only when expiry is its sole defect.
func classify(err error) Result {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return invalid(ReasonSignature)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return invalid(ReasonMalformed)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return invalid(ReasonIssuer)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return invalid(ReasonAudience)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return invalid(ReasonNotYetValid)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return invalid(ReasonMissingClaims)
	case errors.Is(err, jwt.ErrTokenExpired):
		return expired()
	default:
		return invalid(ReasonInvalid)
	}
}
