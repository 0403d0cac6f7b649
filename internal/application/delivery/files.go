package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/sealdrop-api/internal/domain"
	s3infra "github.com/sealdrop-api/internal/infrastructure/s3"
	"github.com/sealdrop-api/internal/pkg/id"
)

// objectKey is the storage path of one delivery file.
func objectKey(deliveryID, fileID, filename string) string {
	return fmt.Sprintf("deliveries/%s/%s-%s", deliveryID, fileID, sanitizeFilename(filename))
}

// uploadAll streams every input to object storage, hashing as it goes. On
// failure the objects already written are removed.
func (s *service) uploadAll(ctx context.Context, deliveryID string, inputs []FileInput, now time.Time) ([]domain.DeliveryFile, error) {
	files := make([]domain.DeliveryFile, 0, len(inputs))
	for _, in := range inputs {
		fileID := id.New()
		key := objectKey(deliveryID, fileID, in.Filename)
		contentType := in.ContentType
		if contentType == "" {
			contentType = s3infra.ContentType(in.Filename)
		}
		hasher := sha256.New()
		if err := s.objects.Put(ctx, key, io.TeeReader(in.Reader, hasher), in.Size, contentType); err != nil {
			s.discardObjects(ctx, files)
			return nil, fmt.Errorf("upload %s: %w", in.Filename, err)
		}
		sum := hex.EncodeToString(hasher.Sum(nil))
		files = append(files, domain.DeliveryFile{
			FileID:      fileID,
			DeliveryID:  deliveryID,
			Filename:    path.Base(strings.ReplaceAll(in.Filename, "\\", "/")),
			MimeType:    contentType,
			Size:        in.Size,
			StoragePath: key,
			ContentHash: &sum,
			CreatedAt:   now,
		})
	}
	return files, nil
}

func (s *service) discardObjects(ctx context.Context, files []domain.DeliveryFile) {
	for _, f := range files {
		if err := s.objects.Delete(ctx, f.StoragePath); err != nil {
			slog.Warn("failed to remove orphaned object", "key", f.StoragePath, "err", err)
		}
	}
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) so names cannot escape the delivery prefix.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
