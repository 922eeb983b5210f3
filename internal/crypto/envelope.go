// Package crypto provides AES-256-GCM authenticated encryption for sensitive
// values that must be stored at rest in the database, specifically Git provider
// OAuth tokens. Provider tokens are the most sensitive secrets this service
// holds: they grant read (and often write) access to every repository the
// connected account can reach, so a leaked token is a source-code compromise,
// not just an account compromise. AES-256-GCM is chosen because it provides
// both confidentiality and authenticated integrity, ensuring stored tokens
// cannot be silently tampered with even if the database is partially
// compromised.
//
// The sealed envelope is a string of three colon-delimited lowercase hex
// segments in fixed order:
//
//	<nonce_hex>:<ciphertext_hex>:<tag_hex>
//
// with a 12-byte nonce and a 16-byte GCM tag. The tag is carried as its own
// segment rather than appended to the ciphertext so the format can be parsed
// and re-sealed by any platform that speaks hex, and because existing rows in
// production databases already use this exact layout. Do not change it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// nonceSize is the GCM nonce length in bytes (96 bits).
	nonceSize = 12
	// tagSize is the GCM authentication tag length in bytes (128 bits).
	tagSize = 16
)

var (
	// ErrKeyLengthInvalid is returned when a master key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrEnvelopeMalformed is returned when an envelope does not parse into exactly three
	// colon-delimited hex segments with a 12-byte nonce and 16-byte tag.
	ErrEnvelopeMalformed = errors.New("crypto: envelope is not three colon-delimited hex segments")
	// ErrEnvelopeTampered is returned when GCM authentication fails, indicating the
	// ciphertext or tag was modified or the wrong key was used. Operators should treat
	// this as an alert condition: it means key mismatch or data tampering, never a
	// transient fault.
	ErrEnvelopeTampered = errors.New("crypto: envelope failed authentication")
	// ErrSaltTooShort is returned when the provided salt is fewer than 16 bytes, which
	// would weaken PBKDF2 key derivation.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
)

// EnvelopeCipher encrypts and decrypts sensitive credential data. It holds no
// persistent state; the key comes from configuration and is owned by the caller.
type EnvelopeCipher struct {
	masterKey []byte
}

// NewEnvelopeCipher creates a cipher with a 32-byte master key.
func NewEnvelopeCipher(masterKey []byte) (*EnvelopeCipher, error) {
	if len(masterKey) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, 32)
	copy(keyCopy, masterKey)
	return &EnvelopeCipher{masterKey: keyCopy}, nil
}

// NewEnvelopeCipherFromHex creates a cipher from a 64-character hex-encoded key,
// the form the key takes in configuration.
func NewEnvelopeCipherFromHex(hexKey string) (*EnvelopeCipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, ErrKeyLengthInvalid
	}
	return NewEnvelopeCipher(key)
}

// DeriveEnvelopeCipher creates a cipher by deriving a key from a passphrase.
func DeriveEnvelopeCipher(passphrase string, salt []byte, iterations int) (*EnvelopeCipher, error) {
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	if iterations < 10000 {
		iterations = 100000 // Secure default
	}
	derivedKey := pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New)
	return NewEnvelopeCipher(derivedKey)
}

// Seal encrypts plaintext and returns a nonce:ciphertext:tag hex envelope.
func (ec *EnvelopeCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := ec.newAEAD()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// GCM appends the tag to the ciphertext; split it back out into its own segment.
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	body := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(body) + ":" + hex.EncodeToString(tag), nil
}

// Open decrypts a nonce:ciphertext:tag hex envelope and returns the plaintext.
// Anything that is not a well-formed three-segment envelope, including the
// empty string, is ErrEnvelopeMalformed.
func (ec *EnvelopeCipher) Open(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrEnvelopeMalformed
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrEnvelopeMalformed
	}
	body, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrEnvelopeMalformed
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != tagSize {
		return "", ErrEnvelopeMalformed
	}

	aead, err := ec.newAEAD()
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, append(body, tag...), nil)
	if err != nil {
		return "", ErrEnvelopeTampered
	}

	return string(plaintext), nil
}

func (ec *EnvelopeCipher) newAEAD() (cipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(ec.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}

// GenerateKey creates a cryptographically secure random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt creates a cryptographically secure random salt.
func GenerateSalt(length int) ([]byte, error) {
	if length < 16 {
		length = 16
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
