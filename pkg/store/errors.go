package store

import (
	"errors"
	"fmt"
	"syscall"
)

// ============================================================================
// Standard Store Errors
// ============================================================================

// These errors let the connection handler map backend failures to protocol
// replies without knowing which backend is in use. Implementations wrap them
// with context:
//
//	return nil, fmt.Errorf("file %s: %w", name, store.ErrExists)

var (
	// ErrExists indicates the name is already present or reserved.
	//
	// Protocol Mapping: ERROR: FILE_EXISTS
	ErrExists = errors.New("file already exists")

	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName indicates the name is empty, "." or "..", or contains a
	// path separator or NUL byte.
	//
	// Protocol Mapping: ERROR: Formato do comando PUT inválido
	ErrInvalidName = errors.New("invalid file name")

	// ErrStorageFull indicates the backend has no space left.
	//
	// Returned when the filesystem reports ENOSPC or a configured size
	// limit is reached.
	//
	// Protocol Mapping: ERROR: STORAGE_FULL
	ErrStorageFull = errors.New("storage full")
)

// WrapNoSpace converts ENOSPC/EDQUOT into ErrStorageFull, leaving other errors
// untouched.
func WrapNoSpace(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %v", ErrStorageFull, err)
	}
	return err
}
