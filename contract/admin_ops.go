package contract

import (
	"encoding/json"
	"errors"
	"fmt"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Lifecycle: Admin Operations ---

// BootstrapLedger initializes the registry: the caller becomes the platform
// admin and treasury, and the default platform configuration is written. It
// can only run once.
func (s *BrickshareSmartContract) BootstrapLedger(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Attempting to bootstrap registry with initial admin (direct write method)...")
	am := s.accounts(ctx)

	anyAdminAlreadyExists, err := am.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to check if any admin exists: %w", err)
	}
	if anyAdminAlreadyExists {
		msg := "system already has admins or is bootstrapped. BootstrapLedger should not be re-run."
		logger.Info(msg)
		return errors.New(msg)
	}

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to get caller identity for bootstrap: %w", err)
	}

	height, err := s.currentHeight(ctx)
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to get height for direct state writes: %w", err)
	}

	// 1. Create and save AccountInfo for the bootstrap admin directly.
	adminInfo := model.AccountInfo{
		ObjectType:   accountInfoObjectType,
		FullID:       actor.fullID,
		Alias:        actor.alias,
		IsAdmin:      true,
		RegisteredBy: actor.fullID, // Self-registered during bootstrap
		RegisteredAt: height,
		LastUpdated:  height,
	}
	accountKey, keyErr := am.createAccountCompositeKey(actor.fullID)
	if keyErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to create account key for bootstrap admin '%s': %w", actor.fullID, keyErr)
	}
	adminInfoBytes, marshalErr := json.Marshal(adminInfo)
	if marshalErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to marshal bootstrap admin AccountInfo: %w", marshalErr)
	}
	if err := ctx.GetStub().PutState(accountKey, adminInfoBytes); err != nil {
		return fmt.Errorf("BootstrapLedger: failed to save bootstrap admin AccountInfo for '%s': %w", actor.fullID, err)
	}

	// 2. Create and save the alias mapping directly.
	aliasKey, aliasKeyErr := am.createAliasCompositeKey(actor.alias)
	if aliasKeyErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to create alias key for bootstrap admin '%s': %w", actor.alias, aliasKeyErr)
	}
	if err := ctx.GetStub().PutState(aliasKey, []byte(actor.fullID)); err != nil {
		return fmt.Errorf("BootstrapLedger: failed to save bootstrap admin alias mapping '%s' -> '%s': %w", actor.alias, actor.fullID, err)
	}

	// 3. Create and save the AdminFlag directly.
	adminFlagKey, flagKeyErr := am.createAdminFlagCompositeKey(actor.fullID)
	if flagKeyErr != nil {
		return fmt.Errorf("BootstrapLedger: failed to create admin flag key for '%s': %w", actor.fullID, flagKeyErr)
	}
	if err := ctx.GetStub().PutState(adminFlagKey, []byte("true")); err != nil {
		return fmt.Errorf("BootstrapLedger: failed to set admin flag for bootstrap admin '%s': %w", actor.fullID, err)
	}

	// 4. Write the default platform configuration; the bootstrap admin is the
	// treasury, receiving fees and funding rental distributions.
	cfg := model.PlatformConfig{
		ObjectType:               platformConfigKey,
		PlatformFeePerMille:      defaultPlatformFeePerMille,
		MinimumSharesForProposal: defaultMinimumSharesForProposal,
		ProposalDuration:         defaultProposalDuration,
		TotalProperties:          0,
		Treasury:                 actor.fullID,
		BootstrappedAt:           height,
	}
	if err := s.savePlatformConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("BootstrapLedger: %w", err)
	}

	logger.Infof("BootstrapLedger: Registry bootstrapped successfully. Identity '%s' (alias: '%s') is now admin and treasury.", actor.fullID, actor.alias)
	return nil
}

// UpdatePlatformFee changes the per-mille purchase fee. Admin-only; the cap
// of 100 works out to 10% given the /1000 divisor at purchase time. The bound
// reuses the InvalidPrice tag for historical compatibility.
func (s *BrickshareSmartContract) UpdatePlatformFee(ctx contractapi.TransactionContextInterface, newFee uint64) error {
	am := s.accounts(ctx)
	if err := s.requireAdmin(ctx, am); err != nil {
		return err
	}
	if newFee > maxPlatformFeePerMille {
		return registryErrorf(CodeInvalidPrice, "platform fee %d exceeds maximum of %d per mille", newFee, maxPlatformFeePerMille)
	}

	cfg, err := s.getPlatformConfig(ctx)
	if err != nil {
		return fmt.Errorf("UpdatePlatformFee: %w", err)
	}
	oldFee := cfg.PlatformFeePerMille
	cfg.PlatformFeePerMille = newFee
	if err := s.savePlatformConfig(ctx, cfg); err != nil {
		return fmt.Errorf("UpdatePlatformFee: %w", err)
	}

	s.emitRegistryEvent(ctx, "PlatformFeeUpdated", map[string]interface{}{"oldFee": oldFee, "newFee": newFee})
	logger.Infof("Platform fee updated %d -> %d per mille", oldFee, newFee)
	return nil
}

// UpdateMinimumShares changes the proposal stake threshold. Admin-only; no
// upper bound.
func (s *BrickshareSmartContract) UpdateMinimumShares(ctx contractapi.TransactionContextInterface, newMinimum uint64) error {
	am := s.accounts(ctx)
	if err := s.requireAdmin(ctx, am); err != nil {
		return err
	}

	cfg, err := s.getPlatformConfig(ctx)
	if err != nil {
		return fmt.Errorf("UpdateMinimumShares: %w", err)
	}
	oldMinimum := cfg.MinimumSharesForProposal
	cfg.MinimumSharesForProposal = newMinimum
	if err := s.savePlatformConfig(ctx, cfg); err != nil {
		return fmt.Errorf("UpdateMinimumShares: %w", err)
	}

	logger.Infof("Minimum shares for proposal updated %d -> %d", oldMinimum, newMinimum)
	return nil
}

// MintFunds credits platform currency to an account. Admin-only faucet for
// deployments without a native token bridge.
func (s *BrickshareSmartContract) MintFunds(ctx contractapi.TransactionContextInterface, account string, amount uint64) error {
	am := s.accounts(ctx)
	if err := s.requireAdmin(ctx, am); err != nil {
		return err
	}

	fullID, err := am.ResolveAccount(account)
	if err != nil {
		return fmt.Errorf("MintFunds: failed to resolve account '%s': %w", account, err)
	}
	if err := s.bank(ctx).Mint(amount, fullID); err != nil {
		return fmt.Errorf("MintFunds: %w", err)
	}

	logger.Infof("Minted %d to account '%s'", amount, fullID)
	return nil
}

// --- Account Management Wrappers (delegating to AccountManager) ---

func (s *BrickshareSmartContract) RegisterAccount(ctx contractapi.TransactionContextInterface, targetFullID, alias string) error {
	logger.Infof("Chaincode Call: RegisterAccount for '%s' with alias '%s'", targetFullID, alias)
	return s.accounts(ctx).RegisterAccount(targetFullID, alias)
}

func (s *BrickshareSmartContract) MakeAccountAdmin(ctx contractapi.TransactionContextInterface, idOrAlias string) error {
	logger.Infof("Chaincode Call: MakeAccountAdmin for '%s'", idOrAlias)
	return s.accounts(ctx).MakeAdmin(idOrAlias)
}

func (s *BrickshareSmartContract) RemoveAccountAdmin(ctx contractapi.TransactionContextInterface, idOrAlias string) error {
	logger.Infof("Chaincode Call: RemoveAccountAdmin for '%s'", idOrAlias)
	return s.accounts(ctx).RemoveAdmin(idOrAlias)
}

func (s *BrickshareSmartContract) GetAccountDetails(ctx contractapi.TransactionContextInterface, idOrAlias string) (*model.AccountInfo, error) {
	logger.Debugf("Chaincode Call: GetAccountDetails for '%s'", idOrAlias)
	am := s.accounts(ctx)

	isCallerAdmin, err := am.IsCurrentUserAdmin()
	if err != nil {
		return nil, fmt.Errorf("GetAccountDetails: failed to check admin status: %w", err)
	}
	if !isCallerAdmin {
		callerFullID, err := am.GetCurrentFullID()
		if err != nil {
			return nil, fmt.Errorf("GetAccountDetails: failed to get caller's FullID: %w", err)
		}
		targetFullID, err := am.ResolveAccount(idOrAlias)
		if err != nil {
			return nil, fmt.Errorf("GetAccountDetails: failed to resolve target '%s': %w", idOrAlias, err)
		}
		if callerFullID != targetFullID {
			return nil, errors.New("unauthorized: only admins or the account owner can get these details")
		}
	}
	return am.GetAccountInfo(idOrAlias)
}

func (s *BrickshareSmartContract) GetAllAccounts(ctx contractapi.TransactionContextInterface) ([]model.AccountInfo, error) {
	logger.Debug("Chaincode Call: GetAllAccounts")
	return s.accounts(ctx).GetAllAccounts()
}

// GetPlatformConfig exposes the current platform configuration.
func (s *BrickshareSmartContract) GetPlatformConfig(ctx contractapi.TransactionContextInterface) (*model.PlatformConfig, error) {
	return s.getPlatformConfig(ctx)
}
