package mailbox

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled by user")

	// ErrSortUnavailable is returned when sorting is requested outside the inbox.
	ErrSortUnavailable = errors.New("sorting is only available in the inbox")

	// ErrNoSelection is returned by bulk operations with nothing selected.
	ErrNoSelection = errors.New("no messages selected")

	// ErrUnknownMessage is returned for an id not in the loaded list.
	ErrUnknownMessage = errors.New("message not in the current list")

	// ErrSameFolder is returned when moving messages into the folder they
	// are already in.
	ErrSameFolder = errors.New("destination is the current folder")

	// ErrUnknownSortCriterion is returned for a criterion outside SortCriteria.
	ErrUnknownSortCriterion = errors.New("unknown sort criterion")
)

// BatchError reports the ids whose call failed in a bulk operation.
type BatchError struct {
	Op        string
	Failed    []int64
	Succeeded []int64
	Causes    map[int64]error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s failed for %d of %d messages (ids %s)",
		e.Op, len(e.Failed), len(e.Failed)+len(e.Succeeded), joinIDs(e.Failed))
}

// Unwrap exposes the individual causes.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Causes))
	for _, id := range e.Failed {
		if err := e.Causes[id]; err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Phase identifies the step of a move that failed.
type Phase int

const (
	// PhaseCopy is the copy-to-destination step. Failing here means no
	// source message was removed.
	PhaseCopy Phase = iota + 1
	// PhaseRemove is the delete-from-source step. Failing here leaves the
	// message in both folders.
	PhaseRemove
)

func (p Phase) String() string {
	switch p {
	case PhaseCopy:
		return "copy"
	case PhaseRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// MoveError reports a failed move. Duplicates lists ids that now exist in
// both the source and the destination folder.
type MoveError struct {
	Phase       Phase
	Destination string
	Failed      []int64
	Duplicates  []int64
	Causes      map[int64]error
}

func (e *MoveError) Error() string {
	switch e.Phase {
	case PhaseCopy:
		msg := fmt.Sprintf("move to %q failed: could not copy ids %s; nothing was removed",
			e.Destination, joinIDs(e.Failed))
		if len(e.Duplicates) > 0 {
			msg += fmt.Sprintf("; ids %s were copied and now appear in both folders", joinIDs(e.Duplicates))
		}
		return msg
	default:
		return fmt.Sprintf("copied to %q but removal from the source failed for ids %s; they now appear in both folders",
			e.Destination, joinIDs(e.Failed))
	}
}

// Unwrap exposes the individual causes.
func (e *MoveError) Unwrap() []error {
	out := make([]error, 0, len(e.Causes))
	for _, id := range e.Failed {
		if err := e.Causes[id]; err != nil {
			out = append(out, err)
		}
	}
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
