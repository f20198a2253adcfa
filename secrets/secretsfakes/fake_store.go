package secretsfakes

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/timothywashburn/pat-client/secrets"
)

var _ secrets.Store = (*FakeStore)(nil)

// FakeStore is an in-memory secrets.Store for tests. Individual operations
// can be forced to fail via the error fields.
type FakeStore struct {
	SaveErr   error
	ReadErr   error
	DeleteErr error

	entries map[string][]byte
	lock    sync.RWMutex

	SaveCalls   int
	DeleteCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{entries: make(map[string][]byte)}
}

func (fs *FakeStore) Save(key string, value []byte) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.SaveCalls++
	if fs.SaveErr != nil {
		return errors.Wrap(fs.SaveErr, "[FakeStore.Save]")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	fs.entries[key] = cp
	return nil
}

func (fs *FakeStore) Read(key string) ([]byte, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.ReadErr != nil {
		return nil, errors.Wrap(fs.ReadErr, "[FakeStore.Read]")
	}
	value, ok := fs.entries[key]
	if !ok {
		return nil, secrets.ErrNotFound
	}
	return value, nil
}

func (fs *FakeStore) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.DeleteCalls++
	if fs.DeleteErr != nil {
		return errors.Wrap(fs.DeleteErr, "[FakeStore.Delete]")
	}
	delete(fs.entries, key)
	return nil
}

// Has reports whether an entry exists under key.
func (fs *FakeStore) Has(key string) bool {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	_, ok := fs.entries[key]
	return ok
}
