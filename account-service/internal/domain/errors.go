package domain

import "github.com/Lgsalgado/banking-system-backend/pkg/apperror"

var (
	ErrAccountNotFound       = apperror.New(apperror.KindNotFound, "ACCOUNT_NOT_FOUND", "account not found")
	ErrAccountNumberRequired = apperror.New(apperror.KindValidation, "ACCOUNT_NUMBER_REQUIRED", "account number is required")
	ErrInvalidMagnitude      = apperror.New(apperror.KindValidation, "INVALID_MAGNITUDE", "movement value must be greater than zero with at most two decimals")
	ErrUnknownMovementType   = apperror.New(apperror.KindValidation, "UNKNOWN_MOVEMENT_TYPE", "movement type must be DEBIT or CREDIT")
	ErrInsufficientFunds     = apperror.New(apperror.KindBusinessRule, "INSUFFICIENT_FUNDS", "insufficient funds")
	ErrAccountBusy           = apperror.New(apperror.KindBusy, "ACCOUNT_BUSY", "account is busy, retry the request")

	ErrInvalidAccountType     = apperror.New(apperror.KindValidation, "INVALID_ACCOUNT_TYPE", "account type must be SAVINGS or CHECKING")
	ErrInvalidInitialBalance  = apperror.New(apperror.KindValidation, "INVALID_INITIAL_BALANCE", "initial balance must be zero or positive with at most two decimals")
	ErrInvalidCustomerID      = apperror.New(apperror.KindValidation, "INVALID_CUSTOMER_ID", "customer id must be a positive integer")
	ErrDuplicateAccountNumber = apperror.New(apperror.KindConflict, "DUPLICATE_ACCOUNT_NUMBER", "an account with this number already exists")
	ErrAccountHasMovements    = apperror.New(apperror.KindConflict, "ACCOUNT_HAS_MOVEMENTS", "accounts with movements cannot be deleted")

	ErrProjectionNotFound    = apperror.New(apperror.KindNotFound, "CUSTOMER_NOT_FOUND", "customer not found")
	ErrCustomerHasNoAccounts = apperror.New(apperror.KindNotFound, "CUSTOMER_HAS_NO_ACCOUNTS", "customer has no accounts")
	ErrInvalidDateRange      = apperror.New(apperror.KindValidation, "INVALID_DATE_RANGE", "start date must not be after end date")

	ErrMalformedEvent = apperror.New(apperror.KindValidation, "MALFORMED_EVENT", "malformed customer event")
)
