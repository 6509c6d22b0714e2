package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	pinTime    = 1
	pinMemory  = 64 * 1024
	pinThreads = 4
	pinKeyLen  = 32
	pinSaltLen = 16
)

var errMalformedHash = errors.New("malformed argon2id hash")

// Argon2HashService implements ports.HashService for payout PINs using Argon2id.
type Argon2HashService struct{}

func NewArgon2HashService() *Argon2HashService {
	return &Argon2HashService{}
}

// Hash returns the PHC-encoded Argon2id hash of secret:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func (s *Argon2HashService) Hash(secret string) (string, error) {
	salt := make([]byte, pinSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, pinTime, pinMemory, pinThreads, pinKeyLen)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, pinMemory, pinTime, pinThreads, enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// Verify recomputes the key with the parameters stored in hash and compares
// in constant time.
func (s *Argon2HashService) Verify(secret string, hash string) (bool, error) {
	h, err := parsePHC(hash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(secret), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, key) == 1, nil
}

type phcHash struct {
	memory, time uint32
	threads      uint8
	salt, key    []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, fmt.Errorf("%w: expected 6 fields, got %d", errMalformedHash, len(fields))
	}
	if fields[1] != "argon2id" {
		return nil, fmt.Errorf("%w: algorithm %q", errMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: version %q", errMalformedHash, fields[2])
	}

	h := &phcHash{}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("%w: params: %v", errMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("%w: key: %v", errMalformedHash, err)
	}
	if len(h.key) == 0 {
		return nil, fmt.Errorf("%w: empty key", errMalformedHash)
	}
	return h, nil
}
