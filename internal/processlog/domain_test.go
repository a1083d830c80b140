package processlog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeRanges(t *testing.T) {
	cases := []struct {
		process Process
		low     int
		high    int
	}{
		{ProcessImportInvoices, 1001, 1099},
		{ProcessCreatePaymentRequest, 2001, 2099},
		{ProcessLinkInvoices, 3001, 3099},
		{ProcessSubmitForApproval, 4001, 4099},
		{ProcessReviewPaymentRequest, 5001, 5099},
		{ProcessRequestChanges, 6001, 6099},
		{ProcessMakeChanges, 7001, 7099},
		{ProcessApprovePaymentRequest, 8001, 8099},
		{ProcessMakePayment, 9001, 9099},
		{ProcessMarkAsCompleted, 10001, 10099},
		{ProcessRevertPaymentRequest, 11001, 11099},
	}
	for _, tc := range cases {
		low, high := tc.process.ErrorCodeRange()
		require.Equal(t, tc.low, low, "process %d", tc.process)
		require.Equal(t, tc.high, high, "process %d", tc.process)

		require.NoError(t, tc.process.ValidateErrorCode(tc.low))
		require.NoError(t, tc.process.ValidateErrorCode(tc.high))
		require.Error(t, tc.process.ValidateErrorCode(tc.low-1))
		require.Error(t, tc.process.ValidateErrorCode(tc.high+1))
	}
}

func TestProcessTaxonomyIsFixed(t *testing.T) {
	for p := Process(1); p <= Process(11); p++ {
		require.True(t, p.Valid(), "process %d", p)
		require.NotEmpty(t, p.Name(), "process %d", p)
	}
	require.False(t, Process(0).Valid())
	require.False(t, Process(12).Valid())
}

func TestNamedCodesLieInTheirRanges(t *testing.T) {
	cases := map[Process][]int{
		ProcessImportInvoices:        {CodeImportInvalidFormat, CodeImportDuplicate, CodeImportMissingFields},
		ProcessCreatePaymentRequest:  {CodeCreateInsufficientPermissions, CodeCreateInvalidAmount, CodeCreateInvalidWorkflow},
		ProcessLinkInvoices:          {CodeLinkInvoiceAlreadyLinked, CodeLinkInvoiceNotFound, CodeLinkInvalidState},
		ProcessSubmitForApproval:     {CodeSubmitNoInvoicesLinked, CodeSubmitInvalidWorkflow, CodeSubmitInsufficientPermissions},
		ProcessReviewPaymentRequest:  {CodeReviewNotCurrentApprover, CodeReviewInvalidAction},
		ProcessRequestChanges:        {CodeRequestChangesInvalidState},
		ProcessMakeChanges:           {CodeMakeChangesInvalidTransition},
		ProcessApprovePaymentRequest: {CodeApproveInvalidState},
		ProcessMarkAsCompleted:       {CodeCompleteInvalidStatus, CodeCompleteInsufficientPermissions},
		ProcessRevertPaymentRequest:  {CodeRevertInvalidStatus, CodeRevertInsufficientPermissions},
	}
	for process, codes := range cases {
		for _, code := range codes {
			require.NoError(t, process.ValidateErrorCode(code), "process %d code %d", process, code)
		}
	}
}

func TestEntryValidate(t *testing.T) {
	valid := Entry{
		Process:    ProcessImportInvoices,
		EntityType: EntityInvoice,
		EntityID:   uuid.New(),
		Status:     StatusCompleted,
	}
	require.NoError(t, valid.Validate())

	entry := valid
	entry.Process = 42
	require.Error(t, entry.Validate())

	entry = valid
	entry.EntityType = "vendor"
	require.Error(t, entry.Validate())

	entry = valid
	entry.EntityID = uuid.Nil
	require.Error(t, entry.Validate())

	entry = valid
	entry.Status = "pending"
	require.Error(t, entry.Validate())

	entry = valid
	entry.Status = StatusFailed
	code := CodeReviewNotCurrentApprover // wrong range for process 1
	entry.ErrorCode = &code
	require.Error(t, entry.Validate())

	code = CodeImportDuplicate
	entry.ErrorCode = &code
	require.NoError(t, entry.Validate())
}
