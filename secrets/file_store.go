package secrets

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltFileName = ".salt"
	saltLength   = 16
	nonceLength  = 24
	keyLength    = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var _ Store = (*FileStore)(nil)

// FileStore keeps each secret in its own file under
// <folder>/<service>, encrypted at rest with a key derived from the
// supplied passphrase and a per-store random salt.
type FileStore struct {
	dir string
	key [keyLength]byte
}

func NewFileStore(folder, service, passphrase string) (*FileStore, error) {
	if service == "" {
		return nil, errors.New("[NewFileStore] service is required")
	}
	dir := filepath.Join(folder, service)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] os.MkdirAll")
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] salt")
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] scrypt.Key")
	}

	fs := &FileStore{dir: dir}
	copy(fs.key[:], derived)
	return fs, nil
}

func (fs *FileStore) Save(key string, value []byte) error {
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errors.Wrap(err, "[FileStore.Save] rand.Read")
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &fs.key)
	if err := os.WriteFile(fs.path(key), sealed, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.Save] os.WriteFile")
	}
	return nil
}

func (fs *FileStore) Read(key string) ([]byte, error) {
	sealed, err := os.ReadFile(fs.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.Read] os.ReadFile")
	}
	if len(sealed) < nonceLength {
		return nil, errors.New("[FileStore.Read] truncated entry")
	}

	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	value, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &fs.key)
	if !ok {
		return nil, errors.New("[FileStore.Read] decryption failed")
	}
	return value, nil
}

func (fs *FileStore) Delete(key string) error {
	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Delete] os.Remove")
	}
	return nil
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dir, key)
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltLength {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}
