package claims

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoRoleClaim is returned when the token carries no recognizable role.
var ErrNoRoleClaim = errors.New("no role claim in token")

// ErrNoSubjectClaim is returned when the token carries no subject.
var ErrNoSubjectClaim = errors.New("no subject claim in token")

// ErrMalformedToken is returned when the access token cannot be parsed.
var ErrMalformedToken = errors.New("malformed access token")

// Role extracts the role claim from an access token. It checks the top-level
// "role" claim first, then "app_metadata.role" for providers that nest
// application claims. An empty or absent claim yields ErrNoRoleClaim.
func Role(accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrMalformedToken
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return "", ErrMalformedToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrMalformedToken
	}

	if role, ok := stringClaim(mapClaims["role"]); ok {
		return role, nil
	}

	if meta, ok := mapClaims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := stringClaim(meta["role"]); ok {
			return role, nil
		}
	}

	return "", ErrNoRoleClaim
}

// Subject extracts the "sub" claim, when present.
func Subject(accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrMalformedToken
	}

	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return "", ErrMalformedToken
	}

	sub, subErr := token.Claims.GetSubject()
	if subErr != nil || sub == "" {
		return "", ErrNoSubjectClaim
	}
	return sub, nil
}

func stringClaim(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
