package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// BlobStore — хранилище вложений. Ключ = "{id}_{имя файла}",
// никаких метаданных кроме ключа нет.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type fileStore struct {
	dir string
}

func NewFileStore(dir string) (BlobStore, error) {
	if dir == "" {
		dir = "./data/attachments"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}

	log.Printf("Attachment store ready: %s", dir)
	return &fileStore{dir: dir}, nil
}

// path нормализует ключ до базового имени, чтобы ключ из формы
// не мог выйти за пределы каталога.
func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *fileStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	file, err := os.Create(s.path(key))
	if err != nil {
		return 0, fmt.Errorf("create blob file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, r)
	if err != nil {
		return 0, fmt.Errorf("write blob file: %w", err)
	}

	return written, nil
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read blob file: %w", err)
	}
	return data, nil
}

func (s *fileStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
