package storage

import (
	"io"
)

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage persists uploaded input videos and produced output videos.
type Storage interface {
	SaveFile(file io.Reader, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	DeleteFile(path string) error
	// FilePath resolves a stored filename to an absolute on-disk path for
	// handoff to the video pipeline.
	FilePath(name string) string
}
