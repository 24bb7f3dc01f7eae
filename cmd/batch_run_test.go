package cmd

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

// neverReader blocks forever, standing in for a terminal with no input.
type neverReader struct{}

func (neverReader) Read([]byte) (int, error) {
	select {}
}

func TestWaitForResume_EnterResumes(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetErr(io.Discard)

	assert.True(t, waitForResume(cmd, make(chan struct{})))
}

func TestWaitForResume_CancelUnblocksWithoutInput(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	cmd.SetIn(neverReader{})
	cmd.SetErr(io.Discard)

	cancelled := make(chan struct{})
	close(cancelled)
	assert.False(t, waitForResume(cmd, cancelled))
}
