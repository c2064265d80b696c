package domain

import "errors"

var (
	ErrDocumentNotFound       = errors.New("document not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrFileHandleRejected     = errors.New("file handle rejected")
	ErrUploadNotFound         = errors.New("upload not found")
)
