package services

import "errors"

var (
	// ErrIneligibleCategory is returned when automated review is requested
	// for a manuscript category the referee does not handle.
	ErrIneligibleCategory = errors.New("automated review is only available for paper manuscripts")

	// ErrManuscriptNotFound is returned when the referenced manuscript does
	// not exist or has been deleted.
	ErrManuscriptNotFound = errors.New("manuscript not found")

	// ErrVersionNotFound is returned when a pinned manuscript version does
	// not exist or belongs to a different manuscript.
	ErrVersionNotFound = errors.New("manuscript version not found")
)
