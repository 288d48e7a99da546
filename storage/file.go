package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wyfcoding/geonear/xerrors"
)

// FileStorage 以本地目录作为数据集来源。
type FileStorage struct {
	root string
}

// NewFileStorage 创建以 root 为根目录的本地驱动，root 为空时使用当前目录。
func NewFileStorage(root string) *FileStorage {
	if root == "" {
		root = "."
	}
	return &FileStorage{root: root}
}

func (s *FileStorage) resolve(objectName string) (string, error) {
	clean := filepath.Clean("/" + objectName)
	if strings.Trim(clean, "/") == "" {
		return "", xerrors.InvalidArg("invalid object name").WithDetail("%q", objectName)
	}
	return filepath.Join(s.root, clean), nil
}

// Download 打开 root 下的文件，对象名不能逃出 root。
func (s *FileStorage) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(objectName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.Derive(xerrors.ErrObjectNotFound, "%s", objectName)
		}
		return nil, err
	}
	return f, nil
}

// Exists 检查文件是否存在.
func (s *FileStorage) Exists(ctx context.Context, objectName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.resolve(objectName)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
