package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shaiso/flowgen/internal/domain"
)

// FileFlowRepo хранит один flow в JSON-файле.
// Используется локальными командами CLI (init, validate, run).
type FileFlowRepo struct {
	path string
}

// NewFileFlowRepo создаёт FileFlowRepo для файла path.
func NewFileFlowRepo(path string) *FileFlowRepo {
	return &FileFlowRepo{path: path}
}

// Path возвращает путь к файлу.
func (r *FileFlowRepo) Path() string { return r.path }

// Load читает flow. Если файла нет, возвращает (nil, nil).
func (r *FileFlowRepo) Load() (*domain.Flow, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}

	var flow domain.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decode flow file %s: %w", r.path, err)
	}
	return &flow, nil
}

// Save записывает flow через временный файл.
func (r *FileFlowRepo) Save(flow *domain.Flow) error {
	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write flow file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace flow file: %w", err)
	}
	return nil
}

// Clear удаляет файл. Отсутствие файла не ошибка.
func (r *FileFlowRepo) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove flow file: %w", err)
	}
	return nil
}
