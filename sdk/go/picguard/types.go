package picguard

import (
	"fmt"

	"github.com/openpic/picguard/internal/guard"
)

// ProposalKey is the reserved tool-argument key carrying the proposal.
const ProposalKey = guard.ProposalKey

// Result is a verification outcome.
type Result struct {
	Allowed bool
	Code    string
	Message string
	Details map[string]any
}

// BlockedError is returned when verification blocks a tool invocation.
type BlockedError struct {
	Tool    string
	Code    string
	Message string
	Details map[string]any
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("picguard blocked %s (%s): %s", e.Tool, e.Code, e.Message)
}

// toResult maps a guard evaluation error to an SDK Result.
func toResult(err error) Result {
	if err == nil {
		return Result{Allowed: true}
	}
	if ge, ok := guard.AsError(err); ok {
		return Result{Code: string(ge.Code), Message: ge.Message, Details: ge.Details}
	}
	return Result{Code: string(guard.CodeInternalError), Message: err.Error()}
}
