package keyvault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		SymmetricKeyFile: filepath.Join(dir, ".symmetric_key"),
		PrivateKeyFile:   filepath.Join(dir, ".private_key"),
		PublicKeyFile:    filepath.Join(dir, ".public_key"),
		RotationGrace:    time.Minute,
	}
}

func TestVault_SymmetricKey_GeneratesOnce(t *testing.T) {
	cfg := testConfig(t)
	v := New(cfg)

	key1, err := v.SymmetricKey()
	require.NoError(t, err)
	assert.Len(t, key1, SymmetricKeySize)

	key2, err := v.SymmetricKey()
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	info, err := os.Stat(cfg.SymmetricKeyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestVault_SymmetricKey_LoadsExisting(t *testing.T) {
	cfg := testConfig(t)

	v1 := New(cfg)
	key1, err := v1.SymmetricKey()
	require.NoError(t, err)

	// A second vault over the same files must load byte-for-byte.
	v2 := New(cfg)
	key2, err := v2.SymmetricKey()
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestVault_SymmetricKey_RejectsTruncatedFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.SymmetricKeyFile), 0o700))
	require.NoError(t, os.WriteFile(cfg.SymmetricKeyFile, []byte("short"), 0o600))

	v := New(cfg)
	_, err := v.SymmetricKey()
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
}

func TestVault_SymmetricKey_UnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	cfg := &Config{
		SymmetricKeyFile: filepath.Join(dir, "sub", ".symmetric_key"),
		PrivateKeyFile:   filepath.Join(dir, "sub", ".private_key"),
		PublicKeyFile:    filepath.Join(dir, "sub", ".public_key"),
	}

	v := New(cfg)
	_, err := v.SymmetricKey()
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestVault_KeyPair_GeneratesAndLoads(t *testing.T) {
	cfg := testConfig(t)

	v1 := New(cfg)
	key1, err := v1.KeyPair()
	require.NoError(t, err)
	require.NotNil(t, key1)

	privInfo, err := os.Stat(cfg.PrivateKeyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), privInfo.Mode().Perm())

	pubInfo, err := os.Stat(cfg.PublicKeyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), pubInfo.Mode().Perm())

	v2 := New(cfg)
	key2, err := v2.KeyPair()
	require.NoError(t, err)
	assert.Equal(t, key1.D, key2.D)
	assert.Equal(t, key1.PublicKey.N, key2.PublicKey.N)
}

func TestVault_KeyPair_RejectsGarbagePEM(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.PrivateKeyFile), 0o700))
	require.NoError(t, os.WriteFile(cfg.PrivateKeyFile, []byte("not a pem"), 0o600))
	require.NoError(t, os.WriteFile(cfg.PublicKeyFile, []byte("not a pem"), 0o644))

	v := New(cfg)
	_, err := v.KeyPair()
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
}

func TestVault_Init(t *testing.T) {
	cfg := testConfig(t)
	v := New(cfg)
	require.NoError(t, v.Init())

	assert.FileExists(t, cfg.SymmetricKeyFile)
	assert.FileExists(t, cfg.PrivateKeyFile)
	assert.FileExists(t, cfg.PublicKeyFile)
}

func TestVault_Rotate_RetiresOldPublicKey(t *testing.T) {
	cfg := testConfig(t)
	v := New(cfg)
	require.NoError(t, v.Init())

	oldPub, err := v.PublicKey()
	require.NoError(t, err)
	assert.Nil(t, v.RetiredPublicKey())

	require.NoError(t, v.Rotate())

	newPub, err := v.PublicKey()
	require.NoError(t, err)
	assert.NotEqual(t, oldPub.N, newPub.N)

	retired := v.RetiredPublicKey()
	require.NotNil(t, retired)
	assert.Equal(t, oldPub.N, retired.N)
}

func TestVault_Rotate_GraceExpiry(t *testing.T) {
	cfg := testConfig(t)
	cfg.RotationGrace = time.Millisecond
	v := New(cfg)
	require.NoError(t, v.Init())
	require.NoError(t, v.Rotate())

	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, v.RetiredPublicKey())
}

func TestVault_PublicKeyPEM(t *testing.T) {
	v := New(testConfig(t))
	pemStr, err := v.PublicKeyPEM()
	require.NoError(t, err)
	assert.Contains(t, pemStr, "BEGIN PUBLIC KEY")
}
