package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hedera-swap/pkg/orchestrator"
)

func TestProgressViewFollowsEveryStep(t *testing.T) {
	for _, prompts := range []bool{false, true} {
		view := newProgressView(prompts)

		states := []orchestrator.State{
			{Step: orchestrator.StepIdle},
			{Step: orchestrator.StepValidating},
			{Step: orchestrator.StepEnsuringParticipants},
			{Step: orchestrator.StepCheckingDestAssociation},
			{Step: orchestrator.StepRequestingDestAssociation},
			{Step: orchestrator.StepCheckingSourceAllowance},
			{Step: orchestrator.StepRequestingSourceAllowance},
			{Step: orchestrator.StepBuildingTransaction},
			{Step: orchestrator.StepAwaitingSignature},
			{Step: orchestrator.StepBroadcasting},
			{Step: orchestrator.StepMonitoring},
			{Step: orchestrator.StepMonitoring, Progress: &orchestrator.Progress{Attempt: 1, Max: 12}},
			{Step: orchestrator.StepSuccess},
		}
		for _, state := range states {
			require.NotPanics(t, func() { view.update(state) }, "step %s", state.Step)
		}
	}
}

func TestProgressViewMonitoringMessage(t *testing.T) {
	view := newProgressView(false)

	view.update(orchestrator.State{Step: orchestrator.StepMonitoring})
	require.Equal(t, " Waiting for confirmation...", view.spinner.Suffix)

	view.update(orchestrator.State{Step: orchestrator.StepMonitoring, Progress: &orchestrator.Progress{Attempt: 3, Max: 12}})
	require.Equal(t, " Waiting for confirmation (attempt 3/12)...", view.spinner.Suffix)

	view.update(orchestrator.State{Step: orchestrator.StepError})
	require.False(t, view.spinner.Active())
}
