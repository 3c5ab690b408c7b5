package config

import (
	"errors"
	"fmt"
	"regexp"
)

// rndc-confgen and named.conf both emit the shared key as a named key
// stanza:
//
//	key "rndc-key" {
//		algorithm hmac-sha256;
//		secret "c2hhcmVkLXNlY3JldC1rZXk=";
//	};
//
// Operators most often copy this verbatim out of /etc/rndc.key rather
// than extracting the bare algorithm/secret pair, so ParseKeyStanza
// accepts the stanza text directly (SPEC_FULL.md "Supplemented
// features").
var (
	keyStanzaAlgorithmRe = regexp.MustCompile(`algorithm\s+"?([A-Za-z0-9_-]+)"?\s*;`)
	keyStanzaSecretRe    = regexp.MustCompile(`secret\s+"([^"]*)"\s*;`)
)

// ErrKeyStanzaMissingAlgorithm indicates a key stanza with no algorithm
// clause.
var ErrKeyStanzaMissingAlgorithm = errors.New("key stanza missing algorithm clause")

// ErrKeyStanzaMissingSecret indicates a key stanza with no secret
// clause.
var ErrKeyStanzaMissingSecret = errors.New("key stanza missing secret clause")

// ParseKeyStanza extracts the algorithm and base64 secret from a BIND
// rndc.key/rndc.conf "key { ... }" stanza. It is tolerant of the
// surrounding "key \"name\" { ... };" wrapper and of either single- or
// multi-line formatting; it looks for the first "algorithm ...;" and
// "secret \"...\";" clauses anywhere in text.
func ParseKeyStanza(text string) (algorithm, secret string, err error) {
	algMatch := keyStanzaAlgorithmRe.FindStringSubmatch(text)
	if algMatch == nil {
		return "", "", fmt.Errorf("parse key stanza: %w", ErrKeyStanzaMissingAlgorithm)
	}

	secretMatch := keyStanzaSecretRe.FindStringSubmatch(text)
	if secretMatch == nil {
		return "", "", fmt.Errorf("parse key stanza: %w", ErrKeyStanzaMissingSecret)
	}

	return algMatch[1], secretMatch[1], nil
}
