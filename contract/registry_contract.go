package contract

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("brickshare.registrycontract")

// Object types for composite keys, also usable as 'docType' for CouchDB queries.
const (
	propertyObjectType     = "Property"
	shareBalanceObjectType = "ShareBalance"
	proposalObjectType     = "Proposal"
	voteObjectType         = "VoteRecord"
	rentalRecordObjectType = "RentalRecord"
	rentalClaimObjectType  = "RentalClaim"
	maintenanceObjectType  = "MaintenanceRecord"
)

// platformConfigKey is the world-state key of the singleton PlatformConfig.
const platformConfigKey = "PlatformConfig"

// Constants for input validation and platform defaults.
const (
	maxAddressLength = 100
	maxDetailsLength = 500

	defaultPlatformFeePerMille      = 25 // 2.5%
	maxPlatformFeePerMille          = 100
	defaultMinimumSharesForProposal = 100
	defaultProposalDuration         = 1440  // Ticks; about one day
	ticksPerMonth                   = 43200 // Ticks; about thirty days
)

// BrickshareSmartContract manages the fractional real-estate ownership
// registry: property listings, the share ledger, maintenance governance and
// rental income distribution.
// @contract:BrickshareSmartContract
type BrickshareSmartContract struct {
	contractapi.Contract

	// NewClock and NewBank override the host capabilities. Nil selects the
	// production implementations backed by the transaction context; tests
	// inject a fixed clock or an instrumented bank here.
	NewClock func(ctx contractapi.TransactionContextInterface) Clock
	NewBank  func(ctx contractapi.TransactionContextInterface) Bank
}

func (s *BrickshareSmartContract) clock(ctx contractapi.TransactionContextInterface) Clock {
	if s.NewClock != nil {
		return s.NewClock(ctx)
	}
	return &txClock{ctx: ctx}
}

func (s *BrickshareSmartContract) bank(ctx contractapi.TransactionContextInterface) Bank {
	if s.NewBank != nil {
		return s.NewBank(ctx)
	}
	return &stateBank{ctx: ctx}
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	fullID string
	alias  string
	mspID  string
}

// Instantiate is called during chaincode instantiation.
func (s *BrickshareSmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("BrickshareSmartContract Instantiated/Upgraded")
}
