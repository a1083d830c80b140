package payments

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValidateWorkflowShape(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	require.ErrorIs(t, ValidateWorkflowShape(nil), ErrInvalidApprovalWorkflow)
	require.ErrorIs(t, ValidateWorkflowShape([]Stage{}), ErrInvalidApprovalWorkflow)

	require.NoError(t, ValidateWorkflowShape([]Stage{
		{Level: 1, ApproverID: a, Required: true},
		{Level: 2, ApproverID: b, Required: false},
	}))

	// Stage order in the payload does not matter, levels do.
	require.NoError(t, ValidateWorkflowShape([]Stage{
		{Level: 2, ApproverID: b, Required: true},
		{Level: 1, ApproverID: a, Required: true},
	}))

	require.ErrorIs(t, ValidateWorkflowShape([]Stage{
		{Level: 1, ApproverID: a, Required: true},
		{Level: 1, ApproverID: b, Required: true},
	}), ErrInvalidApprovalWorkflow)

	require.ErrorIs(t, ValidateWorkflowShape([]Stage{
		{Level: 1, ApproverID: a, Required: true},
		{Level: 2, ApproverID: a, Required: true},
	}), ErrInvalidApprovalWorkflow)

	require.ErrorIs(t, ValidateWorkflowShape([]Stage{
		{Level: 1, ApproverID: uuid.Nil, Required: true},
	}), ErrInvalidApprovalWorkflow)
}

func TestNextRequiredStage(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	stages := []Stage{
		{Level: 1, ApproverID: a, Required: true},
		{Level: 2, ApproverID: b, Required: false},
		{Level: 3, ApproverID: c, Required: true},
	}

	next, ok := nextRequiredStage(stages, 1)
	require.True(t, ok)
	require.Equal(t, 3, next.Level)

	_, ok = nextRequiredStage(stages, 3)
	require.False(t, ok)

	// A trailing optional stage never blocks terminal approval.
	_, ok = nextRequiredStage([]Stage{
		{Level: 1, ApproverID: a, Required: true},
		{Level: 2, ApproverID: b, Required: false},
	}, 1)
	require.False(t, ok)
}

func TestFirstStage(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	first := firstStage([]Stage{
		{Level: 5, ApproverID: b, Required: true},
		{Level: 2, ApproverID: a, Required: false},
	})
	require.Equal(t, 2, first.Level)
	require.Equal(t, a, first.ApproverID)
}
