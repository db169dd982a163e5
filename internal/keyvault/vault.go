package keyvault

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/observability"
)

// Key material constants.
const (
	// SymmetricKeySize is the size of the symmetric key in bytes.
	SymmetricKeySize = 32

	// RSAKeyBits is the RSA key pair size in bits.
	RSAKeyBits = 2048

	// privateFileMode restricts key files to the owning user.
	privateFileMode = 0o600

	// publicFileMode allows the public key to be world-readable.
	publicFileMode = 0o644

	pemTypePrivateKey = "PRIVATE KEY"
	pemTypePublicKey  = "PUBLIC KEY"
)

// Config holds the key file locations.
type Config struct {
	// SymmetricKeyFile is the path of the symmetric key file.
	SymmetricKeyFile string `yaml:"symmetricKeyFile"`

	// PrivateKeyFile is the path of the PEM-encoded RSA private key.
	PrivateKeyFile string `yaml:"privateKeyFile"`

	// PublicKeyFile is the path of the PEM-encoded RSA public key.
	PublicKeyFile string `yaml:"publicKeyFile"`

	// RotationGrace is how long the previous public key stays valid
	// for verification after an explicit rotation.
	RotationGrace time.Duration `yaml:"rotationGrace"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		SymmetricKeyFile: "./data/.symmetric_key",
		PrivateKeyFile:   "./data/.private_key",
		PublicKeyFile:    "./data/.public_key",
		RotationGrace:    5 * time.Minute,
	}
}

// SetDefaults fills in zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.SymmetricKeyFile == "" {
		c.SymmetricKeyFile = d.SymmetricKeyFile
	}
	if c.PrivateKeyFile == "" {
		c.PrivateKeyFile = d.PrivateKeyFile
	}
	if c.PublicKeyFile == "" {
		c.PublicKeyFile = d.PublicKeyFile
	}
	if c.RotationGrace <= 0 {
		c.RotationGrace = d.RotationGrace
	}
}

// Vault provides the symmetric key and RSA key pair, generating and
// persisting them on first use and loading them byte-for-byte on
// subsequent calls. Loaded material is cached and safe for concurrent
// reads; initialization happens at most once per key.
type Vault struct {
	config *Config
	logger observability.Logger

	mu           sync.Mutex
	symmetricKey []byte
	privateKey   *rsa.PrivateKey

	// retiredPublicKey is the public key retired by the last rotation,
	// kept for verification until retiredUntil.
	retiredPublicKey *rsa.PublicKey
	retiredUntil     time.Time
}

// Option is a functional option for the Vault.
type Option func(*Vault)

// WithLogger sets the logger for the vault.
func WithLogger(logger observability.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

// New creates a new Vault. No filesystem access happens until a key is
// requested; call Init to fail fast at startup.
func New(config *Config, opts ...Option) *Vault {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()

	v := &Vault{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Init eagerly loads or generates all key material. Errors here are
// fatal to the process by contract: the caller must not serve traffic
// without keys.
func (v *Vault) Init() error {
	if _, err := v.SymmetricKey(); err != nil {
		return err
	}
	if _, err := v.KeyPair(); err != nil {
		return err
	}
	return nil
}

// SymmetricKey returns the symmetric key, generating and persisting it
// on first use.
func (v *Vault) SymmetricKey() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.symmetricKey != nil {
		return v.symmetricKey, nil
	}

	key, err := v.loadOrCreateSymmetricKey()
	if err != nil {
		return nil, err
	}

	v.symmetricKey = key
	return key, nil
}

// loadOrCreateSymmetricKey loads the key file if present, otherwise
// generates fresh material and persists it with owner-only access.
func (v *Vault) loadOrCreateSymmetricKey() ([]byte, error) {
	path := v.config.SymmetricKeyFile

	data, err := os.ReadFile(path) //nolint:gosec // path from trusted config
	if err == nil {
		if len(data) != SymmetricKeySize {
			return nil, NewFormatError(path,
				fmt.Sprintf("expected %d key bytes, got %d", SymmetricKeySize, len(data)), ErrKeyFormat)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, NewStorageError(path, "failed to read symmetric key", err)
	}

	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, NewStorageError(path, "failed to generate symmetric key", err)
	}

	if err := writeFileExclusive(path, key, privateFileMode); err != nil {
		return nil, err
	}

	v.logger.Info("generated symmetric key", observability.String("path", path))
	return key, nil
}

// KeyPair returns the RSA private key (which carries the public key),
// generating and persisting the pair on first use.
func (v *Vault) KeyPair() (*rsa.PrivateKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.privateKey != nil {
		return v.privateKey, nil
	}

	key, err := v.loadOrCreateKeyPair()
	if err != nil {
		return nil, err
	}

	v.privateKey = key
	return key, nil
}

// PublicKey returns the RSA public key of the current key pair.
func (v *Vault) PublicKey() (*rsa.PublicKey, error) {
	key, err := v.KeyPair()
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// RetiredPublicKey returns the public key retired by the most recent
// rotation if it is still within the rotation grace period, or nil.
func (v *Vault) RetiredPublicKey() *rsa.PublicKey {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.retiredPublicKey == nil || time.Now().After(v.retiredUntil) {
		return nil
	}
	return v.retiredPublicKey
}

// loadOrCreateKeyPair loads both PEM files if present, otherwise
// generates a fresh pair and persists it.
func (v *Vault) loadOrCreateKeyPair() (*rsa.PrivateKey, error) {
	privPath := v.config.PrivateKeyFile
	pubPath := v.config.PublicKeyFile

	privData, privErr := os.ReadFile(privPath) //nolint:gosec // path from trusted config
	_, pubErr := os.Stat(pubPath)

	if privErr == nil && pubErr == nil {
		return parsePrivateKeyPEM(privPath, privData)
	}
	if privErr != nil && !os.IsNotExist(privErr) {
		return nil, NewStorageError(privPath, "failed to read private key", privErr)
	}

	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, NewStorageError(privPath, "failed to generate key pair", err)
	}

	if err := v.persistKeyPair(key); err != nil {
		return nil, err
	}

	v.logger.Info("generated RSA key pair",
		observability.String("private_key", privPath),
		observability.String("public_key", pubPath),
	)
	return key, nil
}

// persistKeyPair writes the PKCS#8 private key (owner-only) and the
// PKIX public key (world-readable).
func (v *Vault) persistKeyPair(key *rsa.PrivateKey) error {
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return NewStorageError(v.config.PrivateKeyFile, "failed to encode private key", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: privDER})
	if err := writeFileExclusive(v.config.PrivateKeyFile, privPEM, privateFileMode); err != nil {
		return err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return NewStorageError(v.config.PublicKeyFile, "failed to encode public key", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: pubDER})
	return writeFileExclusive(v.config.PublicKeyFile, pubPEM, publicFileMode)
}

// Rotate generates a fresh RSA key pair and persists it, retiring the
// previous public key for the configured grace period so that tokens
// signed before the rotation still verify. The symmetric key is not
// rotated; encrypted-at-rest claims would become undecryptable.
func (v *Vault) Rotate() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.privateKey
	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return NewStorageError(v.config.PrivateKeyFile, "failed to generate key pair", err)
	}

	// Remove the existing files so persistKeyPair can recreate them.
	for _, path := range []string{v.config.PrivateKeyFile, v.config.PublicKeyFile} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return NewStorageError(path, "failed to remove old key file", err)
		}
	}

	if err := v.persistKeyPair(key); err != nil {
		return err
	}

	v.privateKey = key
	if old != nil {
		v.retiredPublicKey = &old.PublicKey
		v.retiredUntil = time.Now().Add(v.config.RotationGrace)
	}

	v.logger.Info("rotated RSA key pair",
		observability.Duration("grace", v.config.RotationGrace),
	)
	return nil
}

// PublicKeyPEM returns the current public key in PEM form, for export
// to verifying peers.
func (v *Vault) PublicKeyPEM() (string, error) {
	pub, err := v.PublicKey()
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", NewFormatError(v.config.PublicKeyFile, "failed to encode public key", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: der})), nil
}

// parsePrivateKeyPEM parses a PKCS#8 RSA private key from PEM data.
func parsePrivateKeyPEM(path string, data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, NewFormatError(path, "no PEM block found", ErrKeyFormat)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, NewFormatError(path, "failed to parse PKCS#8 private key", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, NewFormatError(path, "private key is not RSA", ErrKeyFormat)
	}
	return key, nil
}

// writeFileExclusive creates the parent directory if needed and writes
// the file with the given mode. Writes happen only once per key
// lifetime; an existing file is never overwritten.
func writeFileExclusive(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return NewStorageError(path, "failed to create key directory", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode) //nolint:gosec // path from trusted config
	if err != nil {
		return NewStorageError(path, "failed to create key file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return NewStorageError(path, "failed to write key file", err)
	}
	return nil
}
