package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

// sniffLen: сколько байт читается для определения реального типа файла.
const sniffLen = 512

var allowedMimeTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// PhotoStorage хранит фотографии к отчётам на локальном диске.
// Файлы лежат в rootPath/<jobID>/<uuid>.<ext> и отдаются по publicURL.
type PhotoStorage struct {
	rootPath       string
	publicURL      string
	maxUploadBytes int64
}

// NewPhotoStorage создаёт файловое хранилище.
func NewPhotoStorage(rootPath, publicURL string, maxUploadMB int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &PhotoStorage{
		rootPath:       rootPath,
		publicURL:      publicURL,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Root возвращает корневой каталог для раздачи статики.
func (s *PhotoStorage) Root() string {
	return s.rootPath
}

// Save проверяет, что содержимое является JPEG или PNG, и сохраняет файл.
// Возвращает публичный URL фотографии.
func (s *PhotoStorage) Save(ctx context.Context, jobID uuid.UUID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", apperror.Wrap(err, apperror.ErrCodeValidation, "не удалось прочитать файл")
	}
	if len(head) == 0 {
		return "", apperror.New(apperror.ErrCodeValidation, "файл не может быть пустым")
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", apperror.New(apperror.ErrCodeValidation, "разрешены только изображения JPG/PNG")
	}
	ext, ok := allowedMimeTypes[kind.MIME.Value]
	if !ok {
		return "", apperror.New(apperror.ErrCodeValidation, "разрешены только изображения JPG/PNG")
	}

	jobDir := filepath.Join(s.rootPath, jobID.String())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("storage: не удалось создать каталог заказа: %w", err)
	}

	fileName := uuid.NewString() + "." + ext
	targetPath := filepath.Join(jobDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, &io.LimitedReader{R: br, N: s.maxUploadBytes + 1})
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("размер файла превышает лимит %d МБ", s.maxUploadBytes/1024/1024))
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return s.publicURL + "/" + path.Join(jobID.String(), fileName), nil
}

// Delete удаляет файл по URL, который вернул Save. Используется для
// очистки, если отчёт не удалось сохранить.
func (s *PhotoStorage) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, err := filepath.Rel(s.publicURL, url)
	if err != nil {
		return fmt.Errorf("storage: чужой URL %q: %w", url, err)
	}
	target := filepath.Join(s.rootPath, filepath.Clean("/"+rel))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}
