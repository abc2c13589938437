// Package storage provides the local durable key/value storage used to keep the
// working configuration between runs.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get for a missing key
var ErrNotFound = errors.New("key not found")

// Store is a string key/value store
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// LevelDB stores values in a LevelDB directory. Writes are fsynced since each
// one follows a user edit and must survive a crash.
type LevelDB struct {
	db        *leveldb.DB
	dir       string
	writeOpts *opt.WriteOptions
}

// OpenLevelDB opens or creates the database in dir, recovering a corrupted one
func OpenLevelDB(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open local storage %s: %w", dir, err)
	}
	return &LevelDB{
		db:        db,
		dir:       dir,
		writeOpts: &opt.WriteOptions{Sync: true},
	}, nil
}

// Dir returns the database directory
func (l *LevelDB) Dir() string {
	return l.dir
}

func (l *LevelDB) Get(key string) (string, error) {
	data, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *LevelDB) Set(key, value string) error {
	return l.db.Put([]byte(key), []byte(value), l.writeOpts)
}

func (l *LevelDB) Delete(key string) error {
	return l.db.Delete([]byte(key), l.writeOpts)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Memory is an in-memory Store for tests and dry runs
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
