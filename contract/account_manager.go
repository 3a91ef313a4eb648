package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var acctLogger = flogging.MustGetLogger("brickshare.accountmanager")

// Object types for composite keys.
const (
	accountInfoObjectType = "AccountInfo" // Stores AccountInfo objects. Attribute: FullID.
	aliasObjectType       = "Alias"       // Maps Alias to FullID. Attribute: Alias.
	adminFlagObjectType   = "AdminFlag"   // Stores a flag for admin status. Attribute: FullID.
)

// AccountManager handles account registration, alias resolution and admin
// privileges for the registry.
type AccountManager struct {
	Ctx   contractapi.TransactionContextInterface
	clock Clock
}

// NewAccountManager creates a new instance of AccountManager.
func NewAccountManager(ctx contractapi.TransactionContextInterface, clock Clock) *AccountManager {
	return &AccountManager{Ctx: ctx, clock: clock}
}

func isValidX509ID(id string) bool {
	// Basic check, can be enhanced if specific X.509 formats are enforced.
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

// --- Key Creation Helpers (using Composite Keys) ---

func (am *AccountManager) createAccountCompositeKey(fullID string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(accountInfoObjectType, []string{fullID})
}

func (am *AccountManager) createAliasCompositeKey(alias string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(aliasObjectType, []string{alias})
}

func (am *AccountManager) createAdminFlagCompositeKey(fullID string) (string, error) {
	return am.Ctx.GetStub().CreateCompositeKey(adminFlagObjectType, []string{fullID})
}

// --- Public Account Management Functions ---

// RegisterAccount records a new participant. Once any admin exists, only
// admins may register further accounts; before that the call runs in
// bootstrap mode.
func (am *AccountManager) RegisterAccount(targetFullID, alias string) error {
	anyAdminExists, err := am.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("failed to check if any admin exists during RegisterAccount: %w", err)
	}

	callerFullID, err := am.GetCurrentFullID()
	if err != nil {
		if anyAdminExists {
			return fmt.Errorf("failed to get current caller's FullID: %w", err)
		}
		callerFullID = "SYSTEM_BOOTSTRAP"
	}

	if anyAdminExists {
		isCallerAdmin, errAdminCheck := am.IsCurrentUserAdmin()
		if errAdminCheck != nil {
			return fmt.Errorf("failed to verify caller admin status for RegisterAccount: %w", errAdminCheck)
		}
		if !isCallerAdmin {
			return fmt.Errorf("caller '%s' is not authorized to register accounts as admins already exist", callerFullID)
		}
	} else {
		acctLogger.Infof("RegisterAccount proceeding in bootstrap mode: caller assumed '%s'.", callerFullID)
	}

	if !isValidX509ID(targetFullID) {
		return fmt.Errorf("targetFullID '%s' is not a valid X.509 ID format", targetFullID)
	}
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return errors.New("alias cannot be empty")
	}

	accountKey, err := am.createAccountCompositeKey(targetFullID)
	if err != nil {
		return fmt.Errorf("failed to create account key for '%s': %w", targetFullID, err)
	}
	existing, err := am.Ctx.GetStub().GetState(accountKey)
	if err != nil {
		return fmt.Errorf("ledger error checking for existing account '%s': %w", targetFullID, err)
	}
	if existing != nil {
		return fmt.Errorf("account '%s' is already registered", targetFullID)
	}

	aliasKey, err := am.createAliasCompositeKey(alias)
	if err != nil {
		return fmt.Errorf("failed to create alias key for '%s': %w", alias, err)
	}
	aliasTaken, err := am.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return fmt.Errorf("ledger error checking alias '%s': %w", alias, err)
	}
	if aliasTaken != nil {
		return fmt.Errorf("alias '%s' is already in use by '%s'", alias, string(aliasTaken))
	}

	height, err := am.clock.CurrentHeight()
	if err != nil {
		return fmt.Errorf("failed to get height for RegisterAccount: %w", err)
	}

	info := model.AccountInfo{
		ObjectType:   accountInfoObjectType,
		FullID:       targetFullID,
		Alias:        alias,
		IsAdmin:      false,
		RegisteredBy: callerFullID,
		RegisteredAt: height,
		LastUpdated:  height,
	}
	infoBytes, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal AccountInfo for '%s': %w", targetFullID, err)
	}
	if err := am.Ctx.GetStub().PutState(accountKey, infoBytes); err != nil {
		return fmt.Errorf("failed to save AccountInfo for '%s': %w", targetFullID, err)
	}
	if err := am.Ctx.GetStub().PutState(aliasKey, []byte(targetFullID)); err != nil {
		return fmt.Errorf("failed to save alias mapping '%s' -> '%s': %w", alias, targetFullID, err)
	}

	acctLogger.Infof("Account '%s' registered with alias '%s' by '%s'.", targetFullID, alias, callerFullID)
	return nil
}

// ResolveAccount maps an alias or full X.509 ID to a full X.509 ID.
func (am *AccountManager) ResolveAccount(idOrAlias string) (string, error) {
	trimmed := strings.TrimSpace(idOrAlias)
	if trimmed == "" {
		return "", errors.New("idOrAlias cannot be empty")
	}
	if isValidX509ID(trimmed) {
		return trimmed, nil
	}
	aliasKey, err := am.createAliasCompositeKey(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to create alias composite key for resolving '%s': %w", trimmed, err)
	}
	fullIDBytes, err := am.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return "", fmt.Errorf("ledger error when querying alias '%s': %w", trimmed, err)
	}
	if fullIDBytes != nil {
		return string(fullIDBytes), nil
	}
	return "", fmt.Errorf("alias '%s' not found", trimmed)
}

// GetAccountInfo retrieves the AccountInfo for an alias or full ID.
func (am *AccountManager) GetAccountInfo(idOrAlias string) (*model.AccountInfo, error) {
	fullID, err := am.ResolveAccount(idOrAlias)
	if err != nil {
		return nil, err
	}
	return am.getAccountInfoByFullID(fullID)
}

func (am *AccountManager) getAccountInfoByFullID(fullID string) (*model.AccountInfo, error) {
	accountKey, err := am.createAccountCompositeKey(fullID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account composite key for '%s': %w", fullID, err)
	}
	infoBytes, err := am.Ctx.GetStub().GetState(accountKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error retrieving AccountInfo for '%s': %w", fullID, err)
	}
	if infoBytes == nil {
		return nil, fmt.Errorf("account record not found for FullID '%s'", fullID)
	}
	var info model.AccountInfo
	if err := json.Unmarshal(infoBytes, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AccountInfo for '%s': %w", fullID, err)
	}
	return &info, nil
}

// MakeAdmin grants admin status. Caller must already be an admin.
func (am *AccountManager) MakeAdmin(targetIDOrAlias string) error {
	isCallerAdmin, err := am.IsCurrentUserAdmin()
	if err != nil {
		return fmt.Errorf("failed to verify caller admin status for MakeAdmin: %w", err)
	}
	if !isCallerAdmin {
		return errors.New("unauthorized: only admins can grant admin status")
	}

	fullID, err := am.ResolveAccount(targetIDOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target '%s' for MakeAdmin: %w", targetIDOrAlias, err)
	}
	info, err := am.getAccountInfoByFullID(fullID)
	if err != nil {
		return fmt.Errorf("cannot grant admin to unregistered account '%s': %w", fullID, err)
	}
	if info.IsAdmin {
		acctLogger.Infof("MakeAdmin: '%s' is already an admin. No changes made.", fullID)
		return nil
	}

	height, err := am.clock.CurrentHeight()
	if err != nil {
		return fmt.Errorf("failed to get height for MakeAdmin: %w", err)
	}
	info.IsAdmin = true
	info.LastUpdated = height
	if err := am.saveAccountInfo(info); err != nil {
		return err
	}

	adminFlagKey, err := am.createAdminFlagCompositeKey(fullID)
	if err != nil {
		return fmt.Errorf("failed to create admin flag key for '%s': %w", fullID, err)
	}
	if err := am.Ctx.GetStub().PutState(adminFlagKey, []byte("true")); err != nil {
		return fmt.Errorf("failed to set admin flag for '%s': %w", fullID, err)
	}
	acctLogger.Infof("Account '%s' granted admin status.", fullID)
	return nil
}

// RemoveAdmin revokes admin status. The last remaining admin cannot be removed.
func (am *AccountManager) RemoveAdmin(targetIDOrAlias string) error {
	isCallerAdmin, err := am.IsCurrentUserAdmin()
	if err != nil {
		return fmt.Errorf("failed to verify caller admin status for RemoveAdmin: %w", err)
	}
	if !isCallerAdmin {
		return errors.New("unauthorized: only admins can revoke admin status")
	}

	fullID, err := am.ResolveAccount(targetIDOrAlias)
	if err != nil {
		return fmt.Errorf("failed to resolve target '%s' for RemoveAdmin: %w", targetIDOrAlias, err)
	}

	adminCount, err := am.countAdmins()
	if err != nil {
		return fmt.Errorf("failed to count admins for RemoveAdmin: %w", err)
	}
	if adminCount <= 1 {
		return errors.New("cannot remove the last remaining admin")
	}

	info, err := am.getAccountInfoByFullID(fullID)
	if err != nil {
		return fmt.Errorf("cannot revoke admin from unregistered account '%s': %w", fullID, err)
	}
	if !info.IsAdmin {
		acctLogger.Infof("RemoveAdmin: '%s' is not an admin. No changes made.", fullID)
		return nil
	}

	height, err := am.clock.CurrentHeight()
	if err != nil {
		return fmt.Errorf("failed to get height for RemoveAdmin: %w", err)
	}
	info.IsAdmin = false
	info.LastUpdated = height
	if err := am.saveAccountInfo(info); err != nil {
		return err
	}

	adminFlagKey, err := am.createAdminFlagCompositeKey(fullID)
	if err != nil {
		return fmt.Errorf("failed to create admin flag key for '%s': %w", fullID, err)
	}
	if err := am.Ctx.GetStub().DelState(adminFlagKey); err != nil {
		return fmt.Errorf("failed to delete admin flag for '%s': %w", fullID, err)
	}
	acctLogger.Infof("Account '%s' admin status revoked.", fullID)
	return nil
}

func (am *AccountManager) saveAccountInfo(info *model.AccountInfo) error {
	accountKey, err := am.createAccountCompositeKey(info.FullID)
	if err != nil {
		return fmt.Errorf("failed to create account key for '%s': %w", info.FullID, err)
	}
	infoBytes, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal AccountInfo for '%s': %w", info.FullID, err)
	}
	if err := am.Ctx.GetStub().PutState(accountKey, infoBytes); err != nil {
		return fmt.Errorf("failed to save AccountInfo for '%s': %w", info.FullID, err)
	}
	return nil
}

// IsAdmin reports whether the given identity holds the admin flag. An unknown
// identity or alias is simply not an admin.
func (am *AccountManager) IsAdmin(idOrAlias string) (bool, error) {
	fullID, err := am.ResolveAccount(idOrAlias)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("error resolving identity '%s' for IsAdmin check: %w", idOrAlias, err)
	}
	adminFlagKey, err := am.createAdminFlagCompositeKey(fullID)
	if err != nil {
		return false, fmt.Errorf("failed to create admin flag key for IsAdmin check on '%s': %w", fullID, err)
	}
	flagBytes, err := am.Ctx.GetStub().GetState(adminFlagKey)
	if err != nil {
		return false, fmt.Errorf("ledger error checking admin flag for '%s': %w", fullID, err)
	}
	return flagBytes != nil && string(flagBytes) == "true", nil
}

// IsCurrentUserAdmin reports whether the transaction invoker is an admin.
func (am *AccountManager) IsCurrentUserAdmin() (bool, error) {
	callerFullID, err := am.GetCurrentFullID()
	if err != nil {
		return false, fmt.Errorf("failed to get current user's FullID for admin check: %w", err)
	}
	return am.IsAdmin(callerFullID)
}

// AnyAdminExists checks if any admin flag is set on the ledger.
func (am *AccountManager) AnyAdminExists() (bool, error) {
	iterator, err := am.Ctx.GetStub().GetStateByPartialCompositeKey(adminFlagObjectType, []string{})
	if err != nil {
		return false, fmt.Errorf("failed to query admin records for AnyAdminExists: %w", err)
	}
	defer iterator.Close()
	return iterator.HasNext(), nil
}

func (am *AccountManager) countAdmins() (int, error) {
	iterator, err := am.Ctx.GetStub().GetStateByPartialCompositeKey(adminFlagObjectType, []string{})
	if err != nil {
		return 0, fmt.Errorf("failed to query admin records: %w", err)
	}
	defer iterator.Close()
	count := 0
	for iterator.HasNext() {
		if _, err := iterator.Next(); err != nil {
			return 0, fmt.Errorf("failed to iterate admin records: %w", err)
		}
		count++
	}
	return count, nil
}

// GetCurrentFullID retrieves the full X.509 ID of the current transactor.
func (am *AccountManager) GetCurrentFullID() (string, error) {
	clientIdentity := am.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	if !isValidX509ID(id) {
		acctLogger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// GetAllAccounts lists every registered account.
func (am *AccountManager) GetAllAccounts() ([]model.AccountInfo, error) {
	iterator, err := am.Ctx.GetStub().GetStateByPartialCompositeKey(accountInfoObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts iterator: %w", err)
	}
	defer iterator.Close()

	accounts := []model.AccountInfo{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			acctLogger.Warningf("GetAllAccounts: failed to get next account from iterator: %v. Skipping.", iterErr)
			continue
		}
		var info model.AccountInfo
		if err := json.Unmarshal(queryResponse.Value, &info); err != nil {
			acctLogger.Warningf("GetAllAccounts: failed to unmarshal account data for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		accounts = append(accounts, info)
	}
	return accounts, nil
}
