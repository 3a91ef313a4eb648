package contract

import (
	"encoding/json"
	"fmt"

	"brickshare/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Property Registry Operations ---

// ListProperty registers a new fractionalized property. The caller becomes
// the owner and is granted the full share supply; availableShares starts at
// totalShares and measures the issuer's unsold inventory.
func (s *BrickshareSmartContract) ListProperty(ctx contractapi.TransactionContextInterface,
	price uint64, totalShares uint64, address string, details string) (uint64, error) {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("ListProperty: failed to get actor info: %w", err)
	}

	logger.Infof("Owner '%s' (alias: '%s') listing property at '%s': price=%d shares=%d", actor.fullID, actor.alias, address, price, totalShares)

	if err := s.validateRequiredString(address, "address", maxAddressLength); err != nil {
		return 0, err
	}
	if err := s.validateOptionalString(details, "details", maxDetailsLength); err != nil {
		return 0, err
	}
	if price == 0 || totalShares == 0 {
		return 0, registryErrorf(CodeInvalidPrice, "price and totalShares must both be positive (price=%d, totalShares=%d)", price, totalShares)
	}

	cfg, err := s.getPlatformConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("ListProperty: %w", err)
	}
	id := cfg.TotalProperties

	propertyKey, err := s.createPropertyCompositeKey(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("ListProperty: failed to create composite key for property %d: %w", id, err)
	}
	existing, err := ctx.GetStub().GetState(propertyKey)
	if err != nil {
		return 0, fmt.Errorf("ListProperty: failed to check for existing property %d: %w", id, err)
	}
	if existing != nil {
		// Unreachable under monotonic id allocation; kept as a guard against
		// a corrupted counter.
		return 0, registryErrorf(CodeAlreadyListed, "property %d already exists", id)
	}

	height, err := s.currentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("ListProperty: failed to get height: %w", err)
	}

	property := model.Property{
		ObjectType:      propertyObjectType,
		ID:              id,
		Owner:           actor.fullID,
		OwnerAlias:      actor.alias,
		Price:           price,
		TotalShares:     totalShares,
		AvailableShares: totalShares,
		Address:         address,
		Details:         details,
		Verified:        false,
		Listed:          true,
		Locked:          false,
		RentalIncome:    0,
		LastMaintenance: height,
		CreationHeight:  height,
	}
	if err := s.putProperty(ctx, &property); err != nil {
		return 0, fmt.Errorf("ListProperty: %w", err)
	}
	if err := s.putShareBalance(ctx, id, actor.fullID, totalShares); err != nil {
		return 0, fmt.Errorf("ListProperty: failed to allocate owner shares for property %d: %w", id, err)
	}

	cfg.TotalProperties++
	if err := s.savePlatformConfig(ctx, cfg); err != nil {
		return 0, fmt.Errorf("ListProperty: %w", err)
	}

	s.emitRegistryEvent(ctx, "PropertyListed", map[string]interface{}{
		"propertyId":  id,
		"owner":       actor.fullID,
		"ownerAlias":  actor.alias,
		"price":       price,
		"totalShares": totalShares,
		"address":     address,
		"height":      height,
	})
	logger.Infof("Property %d listed successfully by '%s'", id, actor.alias)
	return id, nil
}

// UpdatePropertyPrice changes the listing price. Only the recorded owner may call.
func (s *BrickshareSmartContract) UpdatePropertyPrice(ctx contractapi.TransactionContextInterface, id uint64, newPrice uint64) error {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("UpdatePropertyPrice: failed to get actor info: %w", err)
	}

	property, err := s.getPropertyByID(ctx, id)
	if err != nil {
		return err
	}
	if property.Owner != actor.fullID {
		return registryErrorf(CodeUnauthorized, "caller '%s' is not the owner of property %d", actor.fullID, id)
	}
	if newPrice == 0 {
		return registryErrorf(CodeInvalidPrice, "newPrice must be positive")
	}

	oldPrice := property.Price
	property.Price = newPrice
	if err := s.putProperty(ctx, property); err != nil {
		return fmt.Errorf("UpdatePropertyPrice: %w", err)
	}

	s.emitRegistryEvent(ctx, "PropertyPriceUpdated", map[string]interface{}{
		"propertyId": id,
		"oldPrice":   oldPrice,
		"newPrice":   newPrice,
		"owner":      actor.fullID,
	})
	logger.Infof("Property %d price updated %d -> %d by owner '%s'", id, oldPrice, newPrice, actor.alias)
	return nil
}

// LockProperty freezes a property against purchases and new proposals.
// Admin-only; there is no unlock operation.
func (s *BrickshareSmartContract) LockProperty(ctx contractapi.TransactionContextInterface, id uint64) error {
	am := s.accounts(ctx)
	if err := s.requireAdmin(ctx, am); err != nil {
		return err
	}

	property, err := s.getPropertyByID(ctx, id)
	if err != nil {
		return err
	}
	if property.Locked {
		logger.Infof("LockProperty: property %d is already locked. No changes made.", id)
		return nil
	}
	property.Locked = true
	if err := s.putProperty(ctx, property); err != nil {
		return fmt.Errorf("LockProperty: %w", err)
	}

	s.emitRegistryEvent(ctx, "PropertyLocked", map[string]interface{}{"propertyId": id})
	logger.Infof("Property %d locked by platform admin", id)
	return nil
}

// GetPropertyDetails is a pure lookup; unknown ids return nil without error.
func (s *BrickshareSmartContract) GetPropertyDetails(ctx contractapi.TransactionContextInterface, id uint64) (*model.Property, error) {
	propertyKey, err := s.createPropertyCompositeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPropertyDetails: failed to create key for property %d: %w", id, err)
	}
	propertyBytes, err := ctx.GetStub().GetState(propertyKey)
	if err != nil {
		return nil, fmt.Errorf("GetPropertyDetails: failed to read property %d from ledger: %w", id, err)
	}
	if propertyBytes == nil {
		return nil, nil
	}
	var property model.Property
	if err := json.Unmarshal(propertyBytes, &property); err != nil {
		return nil, fmt.Errorf("GetPropertyDetails: failed to unmarshal property %d: %w", id, err)
	}
	return &property, nil
}

// CalculateShareValue returns (price - maintenance spend) / totalShares with
// truncating division. A missing maintenance record counts as zero spend.
func (s *BrickshareSmartContract) CalculateShareValue(ctx contractapi.TransactionContextInterface, id uint64) (uint64, error) {
	property, err := s.getPropertyByID(ctx, id)
	if err != nil {
		return 0, err
	}

	spent, err := s.getMaintenanceTotalSpent(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("CalculateShareValue: %w", err)
	}
	if spent >= property.Price {
		return 0, nil
	}
	return (property.Price - spent) / property.TotalShares, nil
}

// getMaintenanceTotalSpent reads the maintenance record for a property,
// defaulting to zero when none exists. Nothing writes this record today.
func (s *BrickshareSmartContract) getMaintenanceTotalSpent(ctx contractapi.TransactionContextInterface, id uint64) (uint64, error) {
	record, err := s.GetMaintenanceRecord(ctx, id)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return record.TotalSpent, nil
}

// GetMaintenanceRecord is a pure lookup; unknown ids return nil without error.
func (s *BrickshareSmartContract) GetMaintenanceRecord(ctx contractapi.TransactionContextInterface, id uint64) (*model.MaintenanceRecord, error) {
	recordKey, err := s.createMaintenanceCompositeKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create maintenance key for property %d: %w", id, err)
	}
	raw, err := ctx.GetStub().GetState(recordKey)
	if err != nil {
		return nil, fmt.Errorf("ledger error reading maintenance record for property %d: %w", id, err)
	}
	if raw == nil {
		return nil, nil
	}
	var record model.MaintenanceRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal maintenance record for property %d: %w", id, err)
	}
	return &record, nil
}
