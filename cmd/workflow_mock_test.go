package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/mock"

	"auditscope.dev/pkg/auditscope/internal/domain"
)

type mockWorkflow struct {
	mock.Mock
}

func (mw *mockWorkflow) Analyze(ctx context.Context, args domain.AnalyzeArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func (mw *mockWorkflow) Strip(ctx context.Context, args domain.StripArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func (mw *mockWorkflow) Changes(ctx context.Context, args domain.ChangesArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func (mw *mockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	return mw.Called(ctx, args).Error(0)
}

func (mw *mockWorkflow) Clean(ctx context.Context) error {
	return mw.Called(ctx).Error(0)
}

// useMockWorkflow swaps the package workflow for a mock for the duration of
// the test.
func useMockWorkflow(t *testing.T) *mockWorkflow {
	t.Helper()

	mw := &mockWorkflow{}
	mw.Test(t)

	originalWorkflow := workflow
	workflow = mw

	t.Cleanup(func() {
		workflow = originalWorkflow
		mw.AssertExpectations(t)
	})

	return mw
}

// executeCommand runs sub under a fresh root command with args.
func executeCommand(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	cmd.AddCommand(sub)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--"+logFileFlagName, filepath.Join(t.TempDir(), "auditscope.log")))

	err := cmd.Execute()

	return out.String(), err
}
