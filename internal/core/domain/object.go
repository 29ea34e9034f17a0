package domain

import "errors"

// ReceiptBucket is the storage bucket holding payment receipts.
const ReceiptBucket = "payment_receipts"

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// Object is a stored file.
type Object struct {
	Bucket      string
	Path        string
	ContentType string
	Data        []byte
}
