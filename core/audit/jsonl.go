package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore stores history records in a JSONL file with optional rotation.
type JSONLStore struct {
	path string
	mu   sync.Mutex
	out  *lumberjack.Logger
}

// NewJSONLStore creates the file if needed. When maxSizeMB is positive the file
// is rotated once it exceeds that size, keeping maxBackups files for maxAgeDays.
func NewJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	s := &JSONLStore{path: path}
	if maxSizeMB > 0 {
		s.out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
	}
	return s, nil
}

func (s *JSONLStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		return json.NewEncoder(s.out).Encode(rec)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

// Query reads the active file and any rotated backups.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := []string{s.path}
	if s.out != nil {
		ext := filepath.Ext(s.path)
		prefix := s.path[:len(s.path)-len(ext)]
		rotated, err := filepath.Glob(prefix + "-*" + ext)
		if err != nil {
			return nil, err
		}
		files = append(rotated, s.path)
	}
	var res []Record
	for _, name := range files {
		recs, err := readJSONL(name, q)
		if err != nil {
			return nil, err
		}
		res = append(res, recs...)
	}
	return res, nil
}

func readJSONL(name string, q Query) ([]Record, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		if q.Match(r) {
			res = append(res, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *JSONLStore) Close() error {
	if s.out != nil {
		return s.out.Close()
	}
	return nil
}
