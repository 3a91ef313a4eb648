package contract

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable numeric tag attached to every registry precondition
// failure. Infrastructure failures (ledger IO, marshalling) are plain wrapped
// errors and carry no code.
type ErrorCode uint16

const (
	CodeOwnerOnly ErrorCode = iota + 1
	CodeNotFound
	CodeAlreadyListed
	CodeNotListed
	CodeInsufficientFunds
	CodeUnauthorized
	CodeInvalidPrice
	// CodeInvalidPercentage exists for the platform-fee bound but is not
	// raised anywhere: UpdatePlatformFee reuses CodeInvalidPrice for its cap,
	// matching the registry's historical observable behavior.
	CodeInvalidPercentage
	CodeAlreadyVoted
	CodeNoActiveProposal
	CodeProposalExpired
	CodeMinimumShares
	CodePropertyLocked
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOwnerOnly:
		return "OwnerOnly"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyListed:
		return "AlreadyListed"
	case CodeNotListed:
		return "NotListed"
	case CodeInsufficientFunds:
		return "InsufficientFunds"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeInvalidPrice:
		return "InvalidPrice"
	case CodeInvalidPercentage:
		return "InvalidPercentage"
	case CodeAlreadyVoted:
		return "AlreadyVoted"
	case CodeNoActiveProposal:
		return "NoActiveProposal"
	case CodeProposalExpired:
		return "ProposalExpired"
	case CodeMinimumShares:
		return "MinimumShares"
	case CodePropertyLocked:
		return "PropertyLocked"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint16(c))
	}
}

// RegistryError pairs one discrete failure tag with a human-readable message.
type RegistryError struct {
	Code ErrorCode
	msg  string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s (code %d): %s", e.Code, uint16(e.Code), e.msg)
}

func registryErrorf(code ErrorCode, format string, args ...interface{}) *RegistryError {
	return &RegistryError{Code: code, msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the registry error code from err, unwrapping as needed.
// The second return is false for plain infrastructure errors.
func CodeOf(err error) (ErrorCode, bool) {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}
