package drive

import "errors"

var (
	// ErrQuotaExceeded signals a local account has no room for the file.
	ErrQuotaExceeded = errors.New("no free space")
	// ErrFolderNotFound signals the target folder is missing or foreign.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrDuplicate is the persistence conflict raised by a concurrent identical link registration.
	ErrDuplicate = errors.New("duplicate drive file")
)
