package ingest

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is on FetchError and FormatError.
var (
	ErrFetch  = errors.New("workbook fetch failed")
	ErrFormat = errors.New("workbook format invalid")

	// ErrSheetNotFound is wrapped by the FormatError for a missing sheet.
	ErrSheetNotFound = errors.New("sheet not found")
)

// FetchError is a network or transport failure retrieving the workbook.
type FetchError struct {
	URL    string
	Status int // HTTP status when a response arrived, 0 otherwise
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// FormatError means the workbook or sheet does not have the expected structure.
type FormatError struct {
	Sheet  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("sheet %q: %s", e.Sheet, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// NewFormatError creates a FormatError for sheet.
func NewFormatError(sheet, reason string, err error) *FormatError {
	return &FormatError{Sheet: sheet, Reason: reason, Err: err}
}
