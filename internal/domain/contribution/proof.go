package contribution

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROOF OF PAYMENT
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxProofSize - максимальный размер файла подтверждения (10 MiB).
	MaxProofSize int64 = 10 << 20

	// ProofURLTTL - срок жизни подписанной ссылки на файл.
	ProofURLTTL = 15 * time.Minute
)

// proofExtensions сопоставляет допустимые MIME-типы и расширения ключа.
var proofExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"application/pdf": "pdf",
}

// Proof - загружаемый файл подтверждения.
type Proof struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// ValidateProof проверяет размер и тип файла и возвращает расширение для ключа.
func ValidateProof(contentType string, size int64) (string, error) {
	if size <= 0 {
		return "", shared.Validation("contribution", "UploadProof", "proof file is empty")
	}
	if size > MaxProofSize {
		return "", shared.ErrProofTooLarge
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", shared.ErrProofContentType
	}
	ext, ok := proofExtensions[strings.ToLower(mediaType)]
	if !ok {
		return "", shared.ErrProofContentType
	}
	return ext, nil
}

// ProofKey строит ключ объекта: {partnerID}/{unixMillis}.{ext}.
// Файлы одного партнёра лежат под общим префиксом.
func ProofKey(partnerID string, now time.Time, ext string) string {
	return fmt.Sprintf("%s/%d.%s", partnerID, now.UnixMilli(), ext)
}

// ProofStorage - приватное объектное хранилище для файлов подтверждения.
type ProofStorage interface {
	// Upload сохраняет файл под ключом.
	Upload(ctx context.Context, key string, proof Proof) error

	// SignedURL возвращает ссылку на чтение, действующую ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete удаляет файл. Отсутствующий ключ не считается ошибкой.
	Delete(ctx context.Context, key string) error
}
