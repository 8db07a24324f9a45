package processor

import "fmt"

// ProcessorError is a terminal failure of a single engine operation. Every
// error carries a stable machine-readable code; the router surfaces the code
// and aborts the whole request.
type ProcessorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on the error code so the predeclared errors below keep working
// with errors.Is after wrapping.
func (e *ProcessorError) Is(target error) bool {
	t, ok := target.(*ProcessorError)
	return ok && t.Code == e.Code
}

func newError(code, message string) *ProcessorError {
	return &ProcessorError{Code: code, Message: message}
}

var (
	ErrAlreadyRegistered     = newError("already_registered", "merchant account already exists at the derived address")
	ErrInvalidSponsor        = newError("invalid_sponsor", "sponsor reference does not resolve to a valid identity")
	ErrInvalidAmount         = newError("invalid_amount", "amount must be greater than zero")
	ErrInvalidOrderID        = newError("invalid_order_id", "order id must be a non-empty string")
	ErrDuplicateOrder        = newError("duplicate_order", "order account already exists at the derived address")
	ErrInsufficientFunds     = newError("insufficient_funds", "funding source does not hold the required amount")
	ErrOrderNotPaid          = newError("order_not_paid", "order is not in the paid state")
	ErrUnknownPackage        = newError("unknown_package", "merchant has no subscription package by that name")
	ErrAlreadySubscribed     = newError("already_subscribed", "subscription account already exists for this order")
	ErrOrderAlreadyWithdrawn = newError("order_already_withdrawn", "order funds have already been withdrawn")
	ErrEscrowMismatch        = newError("escrow_mismatch", "escrow balance does not match the recorded order amount")
	ErrFeePolicyInvalid      = newError("fee_policy_invalid", "configured fees exceed the order amount")
	ErrInvalidAccountOwner   = newError("invalid_account_owner", "account is not owned by the expected party")
	ErrInvalidAccountData    = newError("invalid_account_data", "account data is missing or wrongly shaped")
	ErrUnauthorized          = newError("unauthorized", "caller is not authorized for this operation")

	// Conditions surfaced by the storage and value-transfer collaborators.
	ErrAccountExists   = newError("account_exists", "an account already exists at this address")
	ErrAccountNotFound = newError("account_not_found", "no account exists at this address")

	// Instruction routing and subscription-layer conditions.
	ErrInvalidInstruction    = newError("invalid_instruction", "instruction data could not be decoded")
	ErrNotFullyPaid          = newError("not_fully_paid", "order amount does not cover the package price")
	ErrWithdrawalDuringTrial = newError("withdrawal_during_trial", "escrow cannot be withdrawn during the trial period")
	ErrSubscriptionNotActive = newError("subscription_not_active", "subscription is not active")
	ErrWrongOrderAccount     = newError("wrong_order_account", "order is not tied to this subscription")
	ErrAccountNotWritable    = newError("account_not_writable", "account reference is missing the writable attribute")
)
