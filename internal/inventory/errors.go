package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stockscan/stockscan/internal/shared"
)

var (
	// ErrUserRequired is returned when an operation is called without a tenant.
	ErrUserRequired = fmt.Errorf("inventory: user id required: %w", shared.ErrValidation)
	// ErrInvalidSource is returned for batch sources other than upload or *_sync.
	ErrInvalidSource = fmt.Errorf("inventory: source must be %q or end with %q: %w", SourceUpload, SyncSourceSuffix, shared.ErrValidation)
	// ErrProductNotFound is returned when a product id does not exist.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
	// ErrInvoiceNotFound is returned when an invoice id does not exist.
	ErrInvoiceNotFound = fmt.Errorf("inventory: invoice %w", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a negative or non-numeric quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be a non-negative number: %w", shared.ErrValidation)
	// ErrInvalidPrice indicates a negative or non-numeric price.
	ErrInvalidPrice = fmt.Errorf("inventory: price must be a non-negative number: %w", shared.ErrValidation)
	// ErrIdentityConflict indicates an edit that would give two products the same identity.
	ErrIdentityConflict = fmt.Errorf("inventory: barcode or catalog number already used by another product: %w", shared.ErrValidation)
	// ErrInvalidStatus indicates an unknown invoice or payment status.
	ErrInvalidStatus = fmt.Errorf("inventory: unknown status: %w", shared.ErrValidation)
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = fmt.Errorf("inventory: status transition not allowed: %w", shared.ErrValidation)
	// ErrDuplicateInvoice indicates a provisional invoice id that is already taken.
	ErrDuplicateInvoice = fmt.Errorf("inventory: invoice id already exists: %w", shared.ErrValidation)
)

// LineFailure describes one batch line that could not be merged.
type LineFailure struct {
	Index     int    `json:"index"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason"`
}

// PartialBatchError summarises the failed lines of a batch. Finalize records it on the
// invoice instead of returning it.
type PartialBatchError struct {
	Failures []LineFailure
	Total    int
}

func (e *PartialBatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ref := ""
		if f.Reference != "" {
			ref = " (" + f.Reference + ")"
		}
		parts = append(parts, fmt.Sprintf("line %d%s: %s", f.Index+1, ref, f.Reason))
	}
	return fmt.Sprintf("%d of %d lines failed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

type handledError struct {
	err error
}

func (e *handledError) Error() string { return e.err.Error() }
func (e *handledError) Unwrap() error { return e.err }

// MarkHandled tags err as already reported to the user through the invoice record.
func MarkHandled(err error) error {
	if err == nil || IsHandled(err) {
		return err
	}
	return &handledError{err: err}
}

// IsHandled reports whether err carries the handled marker.
func IsHandled(err error) bool {
	var h *handledError
	return errors.As(err, &h)
}
