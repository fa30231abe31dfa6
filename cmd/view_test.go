package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"auditscope.dev/pkg/auditscope/internal/domain"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

func TestViewCmd_UsesRootOutputFlagByDefault(t *testing.T) {
	mw := useMockWorkflow(t)

	mw.On("View", mock.Anything, domain.ViewArgs{Reports: m.Path(defaultOutputDir)}).Return(nil).Once()

	_, err := executeCommand(t, newViewCmd(), "view")
	require.NoError(t, err)
}

func TestViewCmd_RootOutputFlagIsPassedThrough(t *testing.T) {
	mw := useMockWorkflow(t)

	mw.On("View", mock.Anything, domain.ViewArgs{Reports: m.Path("./reports-dir")}).Return(nil).Once()

	_, err := executeCommand(t, newViewCmd(), "view", "--output", "./reports-dir")
	require.NoError(t, err)
}

func TestViewCmd_PositionalArgsAreRejected(t *testing.T) {
	useMockWorkflow(t)

	_, err := executeCommand(t, newViewCmd(), "view", "extra")
	require.Error(t, err)
}
