package utils // package utils provides helpers for kiosk device credentials

import (
    "errors" // sentinel for rejected tokens
    "time"   // expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidToken is returned for a token that is malformed, expired,
// signed with another key or missing the device claims.
var ErrInvalidToken = errors.New("invalid device token")

// AccessToken is a signed device JWT along with its expiry.  Kiosks send
// the token in the Authorization header on every call under /v1/kiosk.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// DeviceClaims identifies the kiosk a token was issued to.  Subject holds
// the device ID; Location binds the token to the store the device sits
// in.
type DeviceClaims struct {
    Location string `json:"loc"`
    jwt.RegisteredClaims
}

// NewDeviceToken builds and signs an HS256 JWT for a kiosk device.  The
// token expires ttl after now.
func NewDeviceToken(secret, deviceID, locationID string, ttl time.Duration, now time.Time) (AccessToken, error) {
    now = now.UTC()
    exp := now.Add(ttl)
    claims := DeviceClaims{
        Location: locationID,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   deviceID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseDeviceToken validates raw and returns its claims.  Only HMAC
// signatures are accepted.  now is used for the expiry check.
func ParseDeviceToken(secret, raw string, now time.Time) (DeviceClaims, error) {
    var claims DeviceClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        // Reject any algorithm other than HMAC.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    }, jwt.WithTimeFunc(func() time.Time { return now }))
    if err != nil || !tok.Valid {
        return DeviceClaims{}, ErrInvalidToken
    }
    if claims.Subject == "" || claims.Location == "" {
        return DeviceClaims{}, ErrInvalidToken
    }
    return claims, nil
}
