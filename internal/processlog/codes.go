package processlog

// Well-known error codes, each inside its process's reserved range.
const (
	// Import Invoices (1001-1099)
	CodeImportInvalidFormat = 1001
	CodeImportDuplicate     = 1002
	CodeImportMissingFields = 1003

	// Create Payment Request (2001-2099)
	CodeCreateInsufficientPermissions = 2001
	CodeCreateInvalidAmount           = 2002
	CodeCreateInvalidWorkflow         = 2003

	// Link Invoices to Payment Request (3001-3099)
	CodeLinkInvoiceAlreadyLinked = 3001
	CodeLinkInvoiceNotFound      = 3002
	CodeLinkInvalidState         = 3003

	// Submit for Approval (4001-4099)
	CodeSubmitNoInvoicesLinked        = 4001
	CodeSubmitInvalidWorkflow         = 4002
	CodeSubmitInsufficientPermissions = 4003

	// Review Payment Request (5001-5099)
	CodeReviewNotCurrentApprover = 5001
	CodeReviewInvalidAction      = 5002

	// Request Changes (6001-6099)
	CodeRequestChangesInvalidState = 6001

	// Make Changes (7001-7099)
	CodeMakeChangesInvalidTransition = 7001

	// Approve Payment Request (8001-8099)
	CodeApproveInvalidState = 8001

	// Mark as Completed (10001-10099)
	CodeCompleteInvalidStatus           = 10001
	CodeCompleteInsufficientPermissions = 10002

	// Revert Payment Request (11001-11099)
	CodeRevertInvalidStatus           = 11001
	CodeRevertInsufficientPermissions = 11002
)
