package assignment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/arnavshah/readiness-api-go/pkg/models"
)

var (
	ErrNotFound          = errors.New("assignment not found")
	ErrForbidden         = errors.New("not permitted")
	ErrImmutableRecord   = errors.New("assignment is in a terminal state and cannot be modified")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotEligible       = errors.New("workers not eligible for assignment")
)

// ValidationError reports malformed input. Nothing is written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Block is one worker rejected from a batch
type Block struct {
	WorkerID     string             `json:"worker_id"`
	Reason       models.BlockReason `json:"reason"`
	AssignmentID string             `json:"assignment_id,omitempty"`
}

// EligibilityError rejects a whole batch and names every offending worker
type EligibilityError struct {
	Blocks []Block
}

func (e *EligibilityError) Error() string {
	reasons := e.Reasons()
	codes := make([]string, 0, len(reasons))
	for code := range reasons {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s %v", code, reasons[models.BlockReason(code)]))
	}
	return fmt.Sprintf("%d worker(s) not eligible: %s", len(e.Blocks), strings.Join(parts, "; "))
}

// Is lets callers match with errors.Is(err, ErrNotEligible)
func (e *EligibilityError) Is(target error) bool {
	return target == ErrNotEligible
}

// Reasons groups offending worker ids by reason code
func (e *EligibilityError) Reasons() map[models.BlockReason][]string {
	out := make(map[models.BlockReason][]string)
	for _, b := range e.Blocks {
		out[b.Reason] = append(out[b.Reason], b.WorkerID)
	}
	return out
}

// Reason is the code of the first block
func (e *EligibilityError) Reason() models.BlockReason {
	if len(e.Blocks) == 0 {
		return ""
	}
	return e.Blocks[0].Reason
}
