package folder

import "errors"

var (
	// ErrFolderNotFound indicates the folder does not exist for the account.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrInvalidName rejects empty or oversized folder names.
	ErrInvalidName = errors.New("invalid folder name")
)
