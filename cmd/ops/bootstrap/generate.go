package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// tokenByteLength is 32 bytes of entropy, hex-encoded to 64 characters.
const tokenByteLength = 32

// GenerateSecureToken returns a random hex token from crypto/rand.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secure token: crypto/rand failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AdminCredential is a freshly generated admin API token and the bcrypt hash
// stored in SSM. Only the hash is persisted; the token is shown to the
// operator once.
type AdminCredential struct {
	Token string
	Hash  string
}

// GenerateAdminCredential creates a bearer token for the admin API and hashes
// it with cost. The admin API compares incoming tokens against the hash.
func GenerateAdminCredential(cost int) (AdminCredential, error) {
	token, err := GenerateSecureToken()
	if err != nil {
		return AdminCredential{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return AdminCredential{}, fmt.Errorf("hashing admin token: %w", err)
	}
	return AdminCredential{Token: token, Hash: string(hash)}, nil
}
