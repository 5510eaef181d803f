package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash      = errors.New("invalid argon2 hash")
	ErrIncompatibleHash = errors.New("incompatible argon2 version")
	ErrPasswordMismatch = errors.New("password does not match hash")
)

// Params are the argon2id cost settings encoded into every hash.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams: 64 MiB, 3 passes, 4 lanes, 16 byte salt, 32 byte key.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

var b64 = base64.RawStdEncoding

// HashPassword hashes a plain text password with argon2id using DefaultParams.
func HashPassword(plain string) (string, error) {
	return HashPasswordWithParams(plain, DefaultParams)
}

// HashPasswordWithParams returns a PHC encoded string:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
func HashPasswordWithParams(plain string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)

	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// CheckPassword compares an encoded argon2id hash with a plaintext password.
// It returns ErrPasswordMismatch on a wrong password and ErrInvalidHash
// (or ErrIncompatibleHash) when the hash cannot be decoded.
func CheckPassword(hash, plain string) error {
	p, salt, key, err := decodeHash(hash)

	if err != nil {
		return err
	}

	other := argon2.IDKey([]byte(plain), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	if subtle.ConstantTimeCompare(key, other) != 1 {
		return ErrPasswordMismatch
	}

	return nil
}

func decodeHash(encoded string) (p Params, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var version int

	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	if version != argon2.Version {
		return Params{}, nil, nil, ErrIncompatibleHash
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err = b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))

	key, err = b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
