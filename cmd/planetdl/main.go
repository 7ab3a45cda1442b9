package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vertextoedge/planetdl/internal/logger"
	"github.com/vertextoedge/planetdl/pkg/planetdl"
)

// exitError carries the process exit code of a failed command
type exitError struct {
	result planetdl.Result
	err    error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return e.result.String()
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func fail(result planetdl.Result, err error) error {
	return &exitError{result: result, err: err}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	defer logger.Sync()

	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return int(planetdl.Success)
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return int(ee.result)
	}
	// Flag and argument errors from cobra
	return int(planetdl.InvalidParameter)
}
