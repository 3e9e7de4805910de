package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var errCorruptFile = errors.New("corrupt slot file")

// JsonFileStore keeps all slots in a single JSON object on disk.
//
// Layout:
//
//	data_dir/
//	  slots.json   # {"updates": "[...]", "updates_backup": "[...]", ...}
//
// Values are stored as JSON strings, so a slot holding malformed text
// round-trips exactly. Every write rewrites the file through a temp file
// and a rename.
//
// Reads from a file that does not decode fail. The first write after that
// moves the file aside to slots.json.corrupt-<unix nanos> and starts from
// an empty object, so the shadow layer can persist repaired values again.
type JsonFileStore struct {
	mu   sync.RWMutex
	path string
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{path: filepath.Join(dir, "slots.json")}, nil
}

// Path returns the file backing the store.
func (s *JsonFileStore) Path() string {
	return s.path
}

func (s *JsonFileStore) loadFile() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	var result map[string]string
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", s.path, errCorruptFile, err)
	}
	if result == nil {
		result = map[string]string{}
	}
	return result, nil
}

// loadForWrite is loadFile that quarantines an undecodable file.
func (s *JsonFileStore) loadForWrite() (map[string]string, error) {
	slots, err := s.loadFile()
	if !errors.Is(err, errCorruptFile) {
		return slots, err
	}
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixNano())
	if err := os.Rename(s.path, aside); err != nil {
		return nil, fmt.Errorf("move corrupt %s aside: %w", s.path, err)
	}
	return map[string]string{}, nil
}

func (s *JsonFileStore) saveFile(slots map[string]string) error {
	b, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JsonFileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots, err := s.loadFile()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[key]
	return v, ok, nil
}

func (s *JsonFileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots, err := s.loadForWrite()
	if err != nil {
		return err
	}
	slots[key] = value
	return s.saveFile(slots)
}

func (s *JsonFileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots, err := s.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := slots[key]; !ok {
		return nil
	}
	delete(slots, key)
	return s.saveFile(slots)
}

func (s *JsonFileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(slots))
	for k := range slots {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (s *JsonFileStore) Close() error {
	return nil
}
