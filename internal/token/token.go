// Package token decodes Hawk integration tokens.
//
// A token is base64-encoded JSON. The only field this tool reads is
// integrationId, which routes uploads to the right collector host.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformedToken is returned for any token that does not carry an integration id.
var ErrMalformedToken = errors.New("malformed integration token")

// endpointTemplate is the collector release endpoint for an integration.
const endpointTemplate = "https://%s.k1.hawk.so/release"

type payload struct {
	IntegrationID string `json:"integrationId"`
}

// DecodeIntegrationID extracts the integrationId field from a token.
func DecodeIntegrationID(token string) (string, error) {
	raw, err := decodeBase64(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: decoded token is not valid UTF-8", ErrMalformedToken)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if p.IntegrationID == "" {
		return "", fmt.Errorf("%w: integrationId is missing", ErrMalformedToken)
	}

	return p.IntegrationID, nil
}

// Endpoint returns the collector release endpoint for an integration id.
func Endpoint(integrationID string) string {
	return fmt.Sprintf(endpointTemplate, integrationID)
}

// CollectorEndpoint derives the release endpoint straight from a token.
func CollectorEndpoint(token string) (string, error) {
	id, err := DecodeIntegrationID(token)
	if err != nil {
		return "", err
	}
	return Endpoint(id), nil
}

// decodeBase64 accepts padded and unpadded tokens in both alphabets.
func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("token is empty")
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var firstErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("failed to decode base64: %w", firstErr)
}
