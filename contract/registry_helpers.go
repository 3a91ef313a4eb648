package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// accounts builds an AccountManager sharing the contract's clock capability.
func (s *BrickshareSmartContract) accounts(ctx contractapi.TransactionContextInterface) *AccountManager {
	return NewAccountManager(ctx, s.clock(ctx))
}

// currentHeight reads the logical clock for this transaction.
func (s *BrickshareSmartContract) currentHeight(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return s.clock(ctx).CurrentHeight()
}

// getCurrentActorInfo resolves the transaction invoker to a full ID plus a
// display alias. Unregistered callers fall back to the CN embedded in the
// X.509 full ID, then to a truncated placeholder.
func (s *BrickshareSmartContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	am := s.accounts(ctx)
	fullID, err := am.GetCurrentFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's FullID: %w", err)
	}

	var alias string
	info, errGetInfo := am.getAccountInfoByFullID(fullID)
	if errGetInfo == nil && info != nil {
		alias = info.Alias
	} else {
		logger.Debugf("Could not retrieve AccountInfo (or alias) for actor %s: %v. Attempting fallback.", fullID, errGetInfo)
		if strings.Contains(fullID, "::CN=") {
			parts := strings.Split(fullID, "::CN=")
			if len(parts) > 1 {
				cnPart := parts[1]
				if idx := strings.Index(cnPart, "::"); idx != -1 {
					cnPart = cnPart[:idx]
				}
				alias = cnPart
			}
		}
		if alias == "" {
			maxAliasLen := 16
			if len(fullID) > maxAliasLen {
				alias = "unknown_" + fullID[:maxAliasLen]
			} else {
				alias = "unknown_" + fullID
			}
		}
	}

	mspID, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's MSPID: %w", err)
	}
	return &actorInfo{fullID: fullID, alias: alias, mspID: mspID}, nil
}

// requireAdmin rejects callers without the admin flag. Admin-gated operations
// surface this as the OwnerOnly tag.
func (s *BrickshareSmartContract) requireAdmin(ctx contractapi.TransactionContextInterface, am *AccountManager) error {
	isCallerAdmin, err := am.IsCurrentUserAdmin()
	if err != nil {
		return fmt.Errorf("failed to check admin status: %w", err)
	}
	if !isCallerAdmin {
		callerID, _ := am.GetCurrentFullID() // Best effort for the message
		return registryErrorf(CodeOwnerOnly, "caller '%s' is not the platform admin", callerID)
	}
	return nil
}

// --- Composite Key Helpers ---

func propertyIDAttr(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *BrickshareSmartContract) createPropertyCompositeKey(ctx contractapi.TransactionContextInterface, id uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(propertyObjectType, []string{propertyIDAttr(id)})
}

func (s *BrickshareSmartContract) createShareBalanceCompositeKey(ctx contractapi.TransactionContextInterface, id uint64, holder string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(shareBalanceObjectType, []string{propertyIDAttr(id), holder})
}

func (s *BrickshareSmartContract) createProposalCompositeKey(ctx contractapi.TransactionContextInterface, id uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(proposalObjectType, []string{propertyIDAttr(id)})
}

func (s *BrickshareSmartContract) createVoteCompositeKey(ctx contractapi.TransactionContextInterface, id, generation uint64, voter string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(voteObjectType, []string{propertyIDAttr(id), strconv.FormatUint(generation, 10), voter})
}

func (s *BrickshareSmartContract) createRentalRecordCompositeKey(ctx contractapi.TransactionContextInterface, id, monthBucket uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(rentalRecordObjectType, []string{propertyIDAttr(id), strconv.FormatUint(monthBucket, 10)})
}

func (s *BrickshareSmartContract) createRentalClaimCompositeKey(ctx contractapi.TransactionContextInterface, id uint64, holder string) (string, error) {
	return ctx.GetStub().CreateCompositeKey(rentalClaimObjectType, []string{propertyIDAttr(id), holder})
}

func (s *BrickshareSmartContract) createMaintenanceCompositeKey(ctx contractapi.TransactionContextInterface, id uint64) (string, error) {
	return ctx.GetStub().CreateCompositeKey(maintenanceObjectType, []string{propertyIDAttr(id)})
}

// --- Validation Helper Functions ---

func (s *BrickshareSmartContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

func (s *BrickshareSmartContract) validateOptionalString(input, field string, max int) error {
	if input != "" && len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

// --- Platform Config ---

// getPlatformConfig loads the registry-wide singleton. Every mutating
// operation that needs the fee, thresholds or treasury requires the ledger to
// have been bootstrapped first.
func (s *BrickshareSmartContract) getPlatformConfig(ctx contractapi.TransactionContextInterface) (*model.PlatformConfig, error) {
	raw, err := ctx.GetStub().GetState(platformConfigKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading platform config: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("platform config not found: ledger has not been bootstrapped")
	}
	var cfg model.PlatformConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platform config: %w", err)
	}
	return &cfg, nil
}

func (s *BrickshareSmartContract) savePlatformConfig(ctx contractapi.TransactionContextInterface, cfg *model.PlatformConfig) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal platform config: %w", err)
	}
	if err := ctx.GetStub().PutState(platformConfigKey, cfgBytes); err != nil {
		return fmt.Errorf("failed to save platform config: %w", err)
	}
	return nil
}

// --- Property Record Access ---

// getPropertyByID retrieves and unmarshals a property record. A missing
// record surfaces the NotFound tag.
func (s *BrickshareSmartContract) getPropertyByID(ctx contractapi.TransactionContextInterface, id uint64) (*model.Property, error) {
	propertyKey, err := s.createPropertyCompositeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getPropertyByID: failed to create key for property %d: %w", id, err)
	}
	propertyBytes, err := ctx.GetStub().GetState(propertyKey)
	if err != nil {
		return nil, fmt.Errorf("getPropertyByID: failed to read property %d from ledger: %w", id, err)
	}
	if propertyBytes == nil {
		return nil, registryErrorf(CodeNotFound, "property %d does not exist", id)
	}
	var property model.Property
	if err := json.Unmarshal(propertyBytes, &property); err != nil {
		return nil, fmt.Errorf("getPropertyByID: failed to unmarshal property %d: %w", id, err)
	}
	return &property, nil
}

func (s *BrickshareSmartContract) putProperty(ctx contractapi.TransactionContextInterface, property *model.Property) error {
	propertyKey, err := s.createPropertyCompositeKey(ctx, property.ID)
	if err != nil {
		return fmt.Errorf("failed to create key for property %d: %w", property.ID, err)
	}
	propertyBytes, err := json.Marshal(property)
	if err != nil {
		return fmt.Errorf("failed to marshal property %d: %w", property.ID, err)
	}
	if err := ctx.GetStub().PutState(propertyKey, propertyBytes); err != nil {
		return fmt.Errorf("failed to save property %d to ledger: %w", property.ID, err)
	}
	return nil
}

// --- Share Ledger Access ---

// getShareBalanceValue reads a holder's balance, defaulting to zero for
// unknown (property, holder) pairs.
func (s *BrickshareSmartContract) getShareBalanceValue(ctx contractapi.TransactionContextInterface, id uint64, holderFullID string) (uint64, error) {
	balanceKey, err := s.createShareBalanceCompositeKey(ctx, id, holderFullID)
	if err != nil {
		return 0, fmt.Errorf("failed to create share balance key for property %d holder '%s': %w", id, holderFullID, err)
	}
	raw, err := ctx.GetStub().GetState(balanceKey)
	if err != nil {
		return 0, fmt.Errorf("ledger error reading share balance for property %d holder '%s': %w", id, holderFullID, err)
	}
	if raw == nil {
		return 0, nil
	}
	var entry model.ShareBalance
	if err := json.Unmarshal(raw, &entry); err != nil {
		return 0, fmt.Errorf("failed to unmarshal share balance for property %d holder '%s': %w", id, holderFullID, err)
	}
	return entry.Balance, nil
}

func (s *BrickshareSmartContract) putShareBalance(ctx contractapi.TransactionContextInterface, id uint64, holderFullID string, balance uint64) error {
	balanceKey, err := s.createShareBalanceCompositeKey(ctx, id, holderFullID)
	if err != nil {
		return fmt.Errorf("failed to create share balance key for property %d holder '%s': %w", id, holderFullID, err)
	}
	entry := model.ShareBalance{
		ObjectType: shareBalanceObjectType,
		PropertyID: id,
		Holder:     holderFullID,
		Balance:    balance,
	}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal share balance for property %d holder '%s': %w", id, holderFullID, err)
	}
	if err := ctx.GetStub().PutState(balanceKey, entryBytes); err != nil {
		return fmt.Errorf("failed to save share balance for property %d holder '%s': %w", id, holderFullID, err)
	}
	return nil
}

// --- Events ---

// emitRegistryEvent sends a chaincode event with a JSON payload.
func (s *BrickshareSmartContract) emitRegistryEvent(ctx contractapi.TransactionContextInterface, eventName string, payload map[string]interface{}) {
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRegistryEvent: failed to marshal payload for event '%s': %v", eventName, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRegistryEvent: failed to set event '%s': %v", eventName, errSet)
	}
}
