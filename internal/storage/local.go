package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalStorage struct {
	UploadDir string
	BaseURL   string // e.g. "http://localhost:8083"
}

func NewLocalStorage(uploadDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStorage{UploadDir: uploadDir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, file io.Reader, filename string, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	key := objectKey(filename)
	filePath := filepath.Join(s.UploadDir, key)

	dst, err := os.Create(filePath)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(filePath)
		return Object{}, fmt.Errorf("failed to write file: %w", err)
	}

	// BaseURL comes from env, so the same code works in every environment.
	return Object{
		Key:  key,
		URL:  fmt.Sprintf("%s/uploads/%s", s.BaseURL, key),
		Path: filePath,
		Size: n,
	}, nil
}
