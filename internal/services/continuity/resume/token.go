// Package resume issues and verifies reconnect tokens.
//
// A token binds a session and participant pair so a returning client can
// prove it owns a seat without re-authenticating. Tokens carry no expiry:
// a disconnected participant may reconnect for as long as the session
// remains alive.
package resume

import (
	"github.com/golang-jwt/jwt/v5"

	platformerrors "github.com/louisbranch/tablekeep/internal/platform/errors"
)

const issuerName = "tablekeep-continuity"

// Claims is the payload embedded in a resume token.
type Claims struct {
	SessionID     string `json:"sid"`
	ParticipantID string `json:"pid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies resume tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
}

// NewIssuer returns an Issuer using the given signing secret.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// Issue returns a signed token bound to the session and participant.
func (i *Issuer) Issue(sessionID, participantID string) (string, error) {
	claims := Claims{
		SessionID:     sessionID,
		ParticipantID: participantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: issuerName,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.CodeResumeTokenInvalid, "sign resume token", err)
	}
	return signed, nil
}

// Verify checks that the token is authentic and bound to the given
// session and participant. A well-formed token for a different seat
// fails with a mismatch error.
func (i *Issuer) Verify(token, sessionID, participantID string) error {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, platformerrors.New(platformerrors.CodeResumeTokenInvalid, "unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuerName))
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodeResumeTokenInvalid, "parse resume token", err)
	}
	if !parsed.Valid {
		return platformerrors.New(platformerrors.CodeResumeTokenInvalid, "resume token not valid")
	}
	if claims.SessionID != sessionID || claims.ParticipantID != participantID {
		return platformerrors.WithMetadata(platformerrors.CodeResumeTokenMismatch, "resume token bound to another seat", map[string]string{
			"session_id":     sessionID,
			"participant_id": participantID,
		})
	}
	return nil
}
