package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---

// GetAllProperties returns a page of property records ordered by id.
func (s *BrickshareSmartContract) GetAllProperties(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedPropertyResponse, error) {
	pageSize, err := strconv.ParseInt(pageSizeStr, 10, 32)
	if err != nil || pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		logger.Warningf("GetAllProperties: requested pageSize %d exceeds max of 100. Capping at 100.", pageSize)
		pageSize = 100
	}

	resultsIterator, metadata, err := ctx.GetStub().GetStateByPartialCompositeKeyWithPagination(propertyObjectType, []string{}, int32(pageSize), bookmark)
	if err != nil {
		return nil, fmt.Errorf("GetAllProperties: failed to get properties iterator: %w", err)
	}
	defer resultsIterator.Close()

	properties := []*model.Property{}
	var fetchedCount int32 = 0
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetAllProperties: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var property model.Property
		if err := json.Unmarshal(queryResponse.Value, &property); err != nil {
			logger.Warningf("GetAllProperties: error unmarshalling property for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		properties = append(properties, &property)
		fetchedCount++
	}

	return &model.PaginatedPropertyResponse{
		Properties:   properties, // Will be [] if empty, not null
		NextBookmark: metadata.GetBookmark(),
		FetchedCount: fetchedCount,
	}, nil
}

// GetPropertiesByOwner returns every property listed by the given owner.
func (s *BrickshareSmartContract) GetPropertiesByOwner(ctx contractapi.TransactionContextInterface, ownerOrAlias string) ([]*model.Property, error) {
	am := s.accounts(ctx)
	ownerFullID, err := am.ResolveAccount(ownerOrAlias)
	if err != nil {
		ownerFullID = ownerOrAlias
	}

	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(propertyObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("GetPropertiesByOwner: failed to get properties iterator: %w", err)
	}
	defer resultsIterator.Close()

	properties := []*model.Property{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetPropertiesByOwner: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var property model.Property
		if err := json.Unmarshal(queryResponse.Value, &property); err != nil {
			logger.Warningf("GetPropertiesByOwner: error unmarshalling property for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		if property.Owner == ownerFullID {
			properties = append(properties, &property)
		}
	}
	return properties, nil
}

// GetShareholders lists every share balance entry for a property, including
// the owner's unsold allocation.
func (s *BrickshareSmartContract) GetShareholders(ctx contractapi.TransactionContextInterface, id uint64) ([]model.ShareBalance, error) {
	resultsIterator, err := ctx.GetStub().GetStateByPartialCompositeKey(shareBalanceObjectType, []string{propertyIDAttr(id)})
	if err != nil {
		return nil, fmt.Errorf("GetShareholders: failed to get share balance iterator for property %d: %w", id, err)
	}
	defer resultsIterator.Close()

	holders := []model.ShareBalance{}
	for resultsIterator.HasNext() {
		queryResponse, iterErr := resultsIterator.Next()
		if iterErr != nil {
			logger.Warningf("GetShareholders: error iterating results: %v. Skipping.", iterErr)
			continue
		}
		var entry model.ShareBalance
		if err := json.Unmarshal(queryResponse.Value, &entry); err != nil {
			logger.Warningf("GetShareholders: error unmarshalling share balance for key '%s': %v. Skipping.", queryResponse.Key, err)
			continue
		}
		holders = append(holders, entry)
	}
	return holders, nil
}

// GetPropertyHistory returns the historical states of a property record.
func (s *BrickshareSmartContract) GetPropertyHistory(ctx contractapi.TransactionContextInterface, id uint64) ([]model.PropertyHistoryEntry, error) {
	propertyKey, err := s.createPropertyCompositeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPropertyHistory: failed to create key for property %d: %w", id, err)
	}

	historyIter, err := ctx.GetStub().GetHistoryForKey(propertyKey)
	if err != nil {
		return nil, fmt.Errorf("GetPropertyHistory: failed to get history for property %d: %w", id, err)
	}
	defer historyIter.Close()

	entries := []model.PropertyHistoryEntry{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetPropertyHistory: error iterating history for property %d: %v. Skipping entry.", id, iterErr)
			continue
		}
		entry := model.PropertyHistoryEntry{
			TxID:     historyItem.GetTxId(),
			IsDelete: historyItem.GetIsDelete(),
			Value:    string(historyItem.GetValue()),
		}
		if ts := historyItem.GetTimestamp(); ts != nil {
			entry.Timestamp = ts.AsTime().UTC().Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetAccountBalance reads the platform-currency balance for an account.
// Unknown accounts read as zero.
func (s *BrickshareSmartContract) GetAccountBalance(ctx contractapi.TransactionContextInterface, account string) (uint64, error) {
	am := s.accounts(ctx)
	fullID, err := am.ResolveAccount(account)
	if err != nil {
		fullID = account
	}
	return s.bank(ctx).Balance(fullID)
}
