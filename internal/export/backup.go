// Package export отвечает за резервные копии файла хранилища и выгрузку
// данных в JSON и CSV.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backup копирует файл хранилища в каталог резервных копий под именем
// с меткой времени и возвращает путь к копии.
func Backup(dbPath, backupDir string) (string, error) {
	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open database file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405"))
	dstPath := filepath.Join(backupDir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("copy database file: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", err
	}
	return dstPath, nil
}
