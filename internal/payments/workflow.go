package payments

import (
	"sort"

	"github.com/google/uuid"
)

// ValidateWorkflowShape checks the structural rules of an approval
// workflow: at least one stage, strictly increasing levels, distinct
// approvers, no nil approver. Role checks happen in the service, which
// can see the user directory.
func ValidateWorkflowShape(stages []Stage) error {
	if len(stages) == 0 {
		return ErrInvalidApprovalWorkflow
	}
	seenApprovers := make(map[uuid.UUID]struct{}, len(stages))
	prevLevel := 0
	for _, stage := range sortedStages(stages) {
		if stage.Level <= prevLevel {
			return ErrInvalidApprovalWorkflow
		}
		prevLevel = stage.Level
		if stage.ApproverID == uuid.Nil {
			return ErrInvalidApprovalWorkflow
		}
		if _, dup := seenApprovers[stage.ApproverID]; dup {
			return ErrInvalidApprovalWorkflow
		}
		seenApprovers[stage.ApproverID] = struct{}{}
	}
	return nil
}

// sortedStages returns the workflow ordered by ascending level.
func sortedStages(stages []Stage) []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// firstStage returns the lowest-level stage. The workflow must be
// non-empty (enforced at submission).
func firstStage(stages []Stage) Stage {
	return sortedStages(stages)[0]
}

// stageForApprover finds the lowest-level stage owned by the approver.
func stageForApprover(stages []Stage, approverID uuid.UUID) (Stage, bool) {
	for _, stage := range sortedStages(stages) {
		if stage.ApproverID == approverID {
			return stage, true
		}
	}
	return Stage{}, false
}

// nextRequiredStage returns the lowest-level required stage above the
// given level. Stages with Required false are skipped when advancing;
// when no required stage remains the workflow is terminally approved.
func nextRequiredStage(stages []Stage, afterLevel int) (Stage, bool) {
	for _, stage := range sortedStages(stages) {
		if stage.Level > afterLevel && stage.Required {
			return stage, true
		}
	}
	return Stage{}, false
}
