package deckmerge

import "errors"

var (
	// ErrNoTables is returned when a run is started without any tabular file.
	ErrNoTables = errors.New("deckmerge: no tabular files supplied")

	// ErrTemplateNotFound is returned when no template was uploaded and the
	// bundled template path does not exist.
	ErrTemplateNotFound = errors.New("deckmerge: template deck not found")

	// ErrInvalidTemplate is returned when the template is not a usable deck.
	ErrInvalidTemplate = errors.New("deckmerge: invalid template deck")

	// ErrUnsupportedFormat is returned for unrecognized tabular file formats.
	ErrUnsupportedFormat = errors.New("deckmerge: unsupported table format")

	// ErrReadingTable is returned when a tabular file cannot be read.
	ErrReadingTable = errors.New("deckmerge: reading table failed")

	// ErrUnreadableImage is returned when a matched image cannot be decoded.
	// It aborts the whole run.
	ErrUnreadableImage = errors.New("deckmerge: unreadable image")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("deckmerge: invalid configuration")

	// ErrEmitFailed is returned when the finished deck cannot be serialized.
	ErrEmitFailed = errors.New("deckmerge: writing deck failed")
)
