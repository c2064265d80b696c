package domain

import "time"

// Opaque identifier issued by the remote service for an uploaded file
type FileHandle string

type DocumentInfo struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// A successful upload of a document with the given content digest
type Upload struct {
	DocumentKey   string
	ContentSHA256 string
	FileHandle    FileHandle
	UploadedAt    time.Time
}

type Completion struct {
	Text string
	// Raw response body from the remote service
	Raw []byte
}
