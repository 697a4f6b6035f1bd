package temporal

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/opencode-ai/orchestrator/research"
)

func TestRunResearchComposesReportFromActivities(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	var a *Activities
	finding := research.Finding{Question: "what causes solar flares", Answer: "magnetic reconnection", SourcesCount: 1}
	sources := []research.SourceRef{{FileName: "solar.pdf", PageLabel: "1"}}

	env.OnActivity(a.GenerateSubQuestions, mock.Anything, "solar flares").
		Return([]string{"what causes solar flares"}, nil)
	env.OnActivity(a.AnswerQuestion, mock.Anything, AnswerInput{Question: "what causes solar flares"}).
		Return(AnswerResult{Finding: finding, Sources: sources}, nil)
	env.OnActivity(a.ReviewProgress, mock.Anything, ReviewInput{Topic: "solar flares", Findings: []research.Finding{finding}}).
		Return([]string(nil), nil)
	env.OnActivity(a.ComposeReport, mock.Anything, ReportInput{Topic: "solar flares", Findings: []research.Finding{finding}, Sources: sources}).
		Return("# solar flares\n\nmagnetic reconnection", nil)

	env.ExecuteWorkflow(RunResearch, Input{Topic: "solar flares"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out Output
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "# solar flares\n\nmagnetic reconnection", out.Report)
	require.Equal(t, research.StatusCompleted, out.Status)
	require.Len(t, out.Sources, 1)
}
