// Package securefs provides sandboxed filesystem access rooted at one
// directory, used for every write and removal of attachment files.
package securefs

import (
	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
)

// Sentinel errors for the securefs package.
var (
	// ErrPathTraversal indicates an attempt to access a path outside the allowed directory
	ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates an invalid path specification (e.g., absolute path when relative is required)
	ErrInvalidPath = errors.NewStd("security error: invalid path specification")

	// ErrNotRegularFile indicates an attempt to copy something that is not a regular file
	ErrNotRegularFile = errors.NewStd("security error: not a regular file")
)
