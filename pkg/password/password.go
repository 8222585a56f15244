// Package password derives and verifies salted PBKDF2-HMAC-SHA256 password
// hashes stored as "pbkdf2:<iterations>:<base64 key>".
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Scheme     = "pbkdf2"
	Iterations = 120_000
	SaltBytes  = 16
	KeyBytes   = 32

	// maxIterations bounds the work a stored hash can demand from Verify.
	maxIterations = 10_000_000
)

var randReader io.Reader = rand.Reader

// Hash returns a fresh base64 salt and the encoded derived key.
func Hash(password string) (string, string, error) {
	salt := make([]byte, SaltBytes)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	key := derive(password, salt, Iterations, KeyBytes)
	return base64.StdEncoding.EncodeToString(salt), encode(Iterations, key), nil
}

// Verify reports whether password matches the stored salt and encoded hash.
// Any malformed input yields false.
func Verify(password, salt, encoded string) bool {
	iterations, expected, ok := decode(encoded)
	if !ok {
		return false
	}
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return false
	}
	actual := derive(password, saltBytes, iterations, len(expected))
	return subtle.ConstantTimeCompare(expected, actual) == 1
}

func derive(password string, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
}

func encode(iterations int, key []byte) string {
	return Scheme + ":" + strconv.Itoa(iterations) + ":" + base64.StdEncoding.EncodeToString(key)
}

func decode(encoded string) (int, []byte, bool) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 || parts[0] != Scheme {
		return 0, nil, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > maxIterations {
		return 0, nil, false
	}
	key, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(key) == 0 {
		return 0, nil, false
	}
	return iterations, key, true
}
