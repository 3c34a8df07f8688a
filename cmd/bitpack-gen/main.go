// =============================================================================
// bitpack-gen - Main Entry Point
// =============================================================================
//
// Generates the glue that lets a stochastic-computing circuit run on an FPGA
// board: a Python I/O binding, a wrapper module, and the bitstream generator
// and counter modules, all specialized to the circuit's ports.
//
// THE PIPELINE:
//   1. Mode registry is loaded and checked against the CUE contract
//   2. Classifier reads the circuit's port declarations line by line
//   3. Used modes receive dense IDs and a shared tag width
//   4. Every template is expanded in memory (BITPACK_ directives)
//   5. Only then is the output directory written
//
// WHEN A PORT COMES OUT WRONG:
//   Run with -v and read the detection events before touching templates.
//   Registry order decides ties, not suffix length.
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: 2, Err: err}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// run executes the command line and returns the error that decides the exit
// code. It never calls os.Exit.
func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
