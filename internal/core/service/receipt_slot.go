package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

const DefaultMaxReceiptSize int64 = 5 << 20

var (
	receiptExtensions = map[string]string{
		".pdf":  "application/pdf",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
	}
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// ReceiptSlot holds at most one uploaded payment receipt URL for a sign-up
// attempt. A new upload replaces the previous URL; a failed one clears it.
type ReceiptSlot struct {
	objects  ports.ObjectClient
	notifier ports.Notifier
	owner    string
	maxSize  int64
	now      func() time.Time
	log      zerolog.Logger

	mu  sync.Mutex
	url string
}

// NewReceiptSlot builds a slot whose objects are stored under owner's folder.
// Receipt URLs are public, so owner must not be a credential such as the
// client id.
func NewReceiptSlot(objects ports.ObjectClient, notifier ports.Notifier, owner string, maxSize int64, log zerolog.Logger) *ReceiptSlot {
	if maxSize <= 0 {
		maxSize = DefaultMaxReceiptSize
	}
	return &ReceiptSlot{
		objects:  objects,
		notifier: notifier,
		owner:    owner,
		maxSize:  maxSize,
		now:      time.Now,
		log:      log,
	}
}

// Upload stores the file and records its public URL.
func (r *ReceiptSlot) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	defaultType, ok := receiptExtensions[ext]
	if !ok || len(data) == 0 {
		return "", r.fail(domain.ErrUnsupportedFile, "Please upload a PDF, PNG or JPG file", true)
	}
	if int64(len(data)) > r.maxSize {
		return "", r.fail(domain.ErrFileTooLarge, "File is too large", true)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = defaultType
	}

	path := r.objectPath(filename)
	url, err := r.objects.UploadObject(ctx, domain.ReceiptBucket, path, contentType, data)
	if err != nil {
		return "", r.fail(err, "Failed to upload file", false)
	}

	r.mu.Lock()
	r.url = url
	r.mu.Unlock()

	r.log.Info().Str("path", path).Int("size", len(data)).Msg("receipt uploaded")
	r.notifier.Notify(ports.LevelSuccess, "File uploaded successfully!")
	return url, nil
}

// Remove forgets the recorded URL. The stored object is left in place.
func (r *ReceiptSlot) Remove() {
	r.mu.Lock()
	r.url = ""
	r.mu.Unlock()
}

// URL returns the recorded receipt URL, or "" when none is set.
func (r *ReceiptSlot) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

func (r *ReceiptSlot) objectPath(filename string) string {
	name := unsafeNameChars.ReplaceAllString(filepath.Base(filename), "_")
	return fmt.Sprintf("%s/%d_%s", r.owner, r.now().UnixMilli(), name)
}

// fail clears the slot and surfaces one notification. Locally rejected files
// get message verbatim; backend errors only when they are not user-facing.
func (r *ReceiptSlot) fail(err error, message string, local bool) error {
	r.mu.Lock()
	r.url = ""
	r.mu.Unlock()

	r.log.Error().Err(err).Msg("receipt upload failed")
	if !local {
		message = domain.UserMessage(err, message)
	}
	r.notifier.Notify(ports.LevelError, message)
	return fmt.Errorf("upload receipt: %w", err)
}
