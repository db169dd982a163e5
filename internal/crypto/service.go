package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Password hashing constants.
const (
	// PBKDF2Iterations is the fixed iteration count for password hashing.
	PBKDF2Iterations = 100_000

	// PasswordHashSize is the derived key length in bytes.
	PasswordHashSize = 32

	// PasswordSaltSize is the random salt length in bytes.
	PasswordSaltSize = 32

	// APIKeySize is the byte length of generated API keys.
	APIKeySize = 32

	// SessionTokenSize is the byte length of generated session tokens.
	SessionTokenSize = 48
)

// PasswordHash is the result of hashing a password.
type PasswordHash struct {
	// Hash is the base64url-encoded derived key.
	Hash string

	// Salt is the base64url-encoded salt used for derivation.
	Salt string
}

// Service provides symmetric encryption, password hashing, and secure
// token generation backed by the key vault's symmetric key.
type Service struct {
	vault  *keyvault.Vault
	logger observability.Logger
}

// Option is a functional option for the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new crypto service.
func NewService(vault *keyvault.Vault, opts ...Option) *Service {
	s := &Service{
		vault:  vault,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Encrypt encrypts plaintext with AES-256-GCM using the vault's
// symmetric key. The random nonce is prepended to the ciphertext and
// the whole value is base64url-encoded.
func (s *Service) Encrypt(plaintext string) (string, error) {
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", NewIntegrityError("failed to generate nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any tampering with the ciphertext fails
// authentication and returns an IntegrityError; wrong plaintext is
// never returned silently.
func (s *Service) Decrypt(ciphertext string) (string, error) {
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", NewIntegrityError("failed to decode ciphertext", ErrInvalidCiphertext)
	}
	if len(raw) < gcm.NonceSize() {
		return "", NewIntegrityError("ciphertext shorter than nonce", ErrInvalidCiphertext)
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", NewIntegrityError("authentication failed", ErrIntegrity)
	}

	return string(plaintext), nil
}

// aead builds the AES-GCM cipher from the vault's symmetric key.
func (s *Service) aead() (cipher.AEAD, error) {
	key, err := s.vault.SymmetricKey()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewIntegrityError("failed to build cipher", err)
	}

	return cipher.NewGCM(block)
}

// HashPassword derives a PBKDF2-HMAC-SHA256 hash of the password. A
// fresh random salt is generated when salt is nil.
func (s *Service) HashPassword(password string, salt []byte) (*PasswordHash, error) {
	if salt == nil {
		salt = make([]byte, PasswordSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, NewIntegrityError("failed to generate salt", err)
		}
	}

	key := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, PasswordHashSize, sha256.New)

	return &PasswordHash{
		Hash: base64.RawURLEncoding.EncodeToString(key),
		Salt: base64.RawURLEncoding.EncodeToString(salt),
	}, nil
}

// VerifyPassword recomputes the hash with the stored salt and compares
// in constant time.
func (s *Service) VerifyPassword(password, hash, salt string) (bool, error) {
	saltBytes, err := base64.RawURLEncoding.DecodeString(salt)
	if err != nil {
		return false, ErrInvalidSalt
	}

	recomputed, err := s.HashPassword(password, saltBytes)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(recomputed.Hash), []byte(hash)) == 1, nil
}

// GenerateToken returns a URL-safe random token of byteLength random
// bytes, suitable for API keys and session identifiers.
func (s *Service) GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = APIKeySize
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", NewIntegrityError("failed to generate token", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateAPIKey returns a fresh API key.
func (s *Service) GenerateAPIKey() (string, error) {
	return s.GenerateToken(APIKeySize)
}

// GenerateSessionToken returns a fresh session token.
func (s *Service) GenerateSessionToken() (string, error) {
	return s.GenerateToken(SessionTokenSize)
}
