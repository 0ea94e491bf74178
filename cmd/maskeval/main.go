package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Evaluation clean
	ExitEvalFailed = 1 // Evaluation ran but produced failures or error findings
	ExitError      = 2 // Configuration or runtime error
)

// EvalFailedError indicates that the evaluation itself completed, but
// one or more samples failed or an error-severity finding was raised.
type EvalFailedError struct {
	Message string
}

func (e *EvalFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var evalFailedErr *EvalFailedError
		if errors.As(err, &evalFailedErr) {
			os.Exit(ExitEvalFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
