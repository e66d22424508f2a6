// Package datastore is a small mutex-guarded key/value store persisted to a
// single JSON file, with periodic autosave and a final save on close.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const autoSaveInterval = 10 * time.Second

type DataStore struct {
	data         map[string]any
	file         string
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	lastChecksum string
	closed       bool
	closeMu      sync.Mutex
}

// New opens (or creates) the JSON file at filePath and starts the autosave
// routine.
func New(filePath string) (*DataStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	store := &DataStore{
		data:   make(map[string]any),
		file:   filePath,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := store.writeFileAtomic([]byte("{}")); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create empty JSON file: %w", err)
		}
	} else if err == nil {
		if err := store.loadFromFile(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to load data from file: %w", err)
		}
	} else {
		cancel()
		return nil, fmt.Errorf("failed to check file existence: %w", err)
	}

	store.wg.Add(1)
	go store.autoSave()

	return store, nil
}

// Add stores a key-value pair.
func (ds *DataStore) Add(key string, value any) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.data[key] = value
}

// Get retrieves a value by key.
func (ds *DataStore) Get(key string) (any, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	value, exists := ds.data[key]
	return value, exists
}

// Delete removes a key-value pair.
func (ds *DataStore) Delete(key string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.data, key)
}

// Close stops the autosave routine and writes a final snapshot. Safe to call
// more than once.
func (ds *DataStore) Close() error {
	ds.closeMu.Lock()
	if ds.closed {
		ds.closeMu.Unlock()
		return nil
	}
	ds.closed = true
	ds.closeMu.Unlock()

	ds.cancel()
	ds.wg.Wait()

	return ds.saveToFile()
}

// saveToFile writes the data to disk atomically, skipping unchanged content.
func (ds *DataStore) saveToFile() error {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	data, err := json.MarshalIndent(ds.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	checksum := checksumOf(data)
	if checksum == ds.lastChecksum {
		return nil
	}

	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}

	ds.lastChecksum = checksum
	return nil
}

func (ds *DataStore) loadFromFile() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	data, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var temp map[string]any
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}

	ds.data = temp
	ds.lastChecksum = checksumOf(data)
	return nil
}

// writeFileAtomic performs the file write via a temporary file and rename.
func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmpFile := ds.file + ".tmp"

	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := os.Rename(tmpFile, ds.file); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (ds *DataStore) autoSave() {
	defer ds.wg.Done()

	ticker := time.NewTicker(autoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ds.ctx.Done():
			return
		case <-ticker.C:
			if err := ds.saveToFile(); err != nil {
				log.Printf("[WARN] Datastore auto-save error: %v", err)
			}
		}
	}
}

func checksumOf(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
