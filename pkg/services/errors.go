package services

import (
	"errors"
	"fmt"

	"github.com/kerbaras/readly/pkg/transport"
)

var (
	// ErrTransport matches requests that failed after all retries.
	ErrTransport = transport.ErrTransport
	// ErrAuth aborts the whole run.
	ErrAuth = errors.New("token rejected")
	// ErrResolution reports a locator that maps to no issue or collection.
	ErrResolution = errors.New("cannot resolve locator")
	// ErrDecode reports page bytes that do not decode to an image.
	ErrDecode = errors.New("cannot decode page")
	// ErrAssembly reports a container that could not be written.
	ErrAssembly = errors.New("cannot assemble container")
)

// Stage is the state of one issue in the pipeline.
type Stage string

const (
	StageResolving  Stage = "resolving"
	StageFetching   Stage = "fetching"
	StageAssembling Stage = "assembling"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// IssueError records the stage at which an issue failed.
type IssueError struct {
	IssueID string // locator when the issue never resolved
	Stage   Stage
	Err     error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("issue %s: %s: %v", e.IssueID, e.Stage, e.Err)
}

func (e *IssueError) Unwrap() error { return e.Err }

// classify wraps err with kind unless it already matches a known sentinel.
func classify(kind, err error) error {
	for _, known := range []error{ErrAuth, ErrTransport, ErrResolution, ErrDecode, ErrAssembly} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}
