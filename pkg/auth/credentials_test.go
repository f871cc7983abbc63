package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentStoreRetrieve(t *testing.T) {
	t.Setenv("TGEXPORT_API_ID", "12345")
	t.Setenv("TGEXPORT_API_HASH", "0123456789abcdef0123456789abcdef")
	t.Setenv("TGEXPORT_PHONE", "+15550001111")

	store := NewEnvironmentStore()
	creds, err := store.Retrieve("")
	require.NoError(t, err)

	assert.Equal(t, 12345, creds.APIID)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", creds.APIHash)
	assert.Equal(t, "+15550001111", creds.Phone)
	assert.True(t, store.Exists(""))
}

func TestEnvironmentStoreMissing(t *testing.T) {
	t.Setenv("TGEXPORT_API_ID", "")
	t.Setenv("TGEXPORT_API_HASH", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))
}

func TestEnvironmentStoreReadOnly(t *testing.T) {
	store := NewEnvironmentStore()
	assert.ErrorIs(t, store.Store(&Credentials{Phone: "+1"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("+1"), ErrStoreUnavailable)
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("TGEXPORT_PASSPHRASE", "test-passphrase")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	creds := &Credentials{
		Phone:   "+15550001111",
		APIID:   12345,
		APIHash: "0123456789abcdef0123456789abcdef",
	}
	require.NoError(t, store.Store(creds))

	got, err := store.Retrieve("+15550001111")
	require.NoError(t, err)
	assert.Equal(t, creds.APIID, got.APIID)
	assert.Equal(t, creds.APIHash, got.APIHash)

	// the file on disk must not contain the plaintext hash
	assert.True(t, store.Exists("+15550001111"))

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete("+15550001111"))
	_, err = store.Retrieve("+15550001111")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("TGEXPORT_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credentials{Phone: "+1", APIID: 1, APIHash: "h"}))

	t.Setenv("TGEXPORT_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = other.Retrieve("+1")
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	creds := &Credentials{
		Phone:   "+15550001111",
		APIID:   12345,
		APIHash: "0123456789abcdef0123456789abcdef",
	}

	masked := Sanitize(creds)
	assert.Equal(t, "0123...cdef", masked.APIHash)
	assert.Equal(t, creds.Phone, masked.Phone)
	// original untouched
	assert.Equal(t, "0123456789abcdef0123456789abcdef", creds.APIHash)

	assert.Nil(t, Sanitize(nil))
	assert.Equal(t, "********", Sanitize(&Credentials{APIHash: "short"}).APIHash)
}

func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, keySize)
	copy(key, "0123456789abcdef0123456789abcdef")

	ciphertext, err := encrypt([]byte("payload"), key)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "payload")

	plaintext, err := decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plaintext))

	_, err = decrypt([]byte("short"), key)
	assert.Error(t, err)
}
