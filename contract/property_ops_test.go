package contract

import (
	"encoding/json"
	"strings"
	"testing"

	"brickshare/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPropertyRequiresBootstrap(t *testing.T) {
	h := newHarness(t)

	_, err := h.contract.ListProperty(h.as("alice"), 1_000_000, 1_000, "12 Harbour Lane", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not been bootstrapped")
	_, tagged := CodeOf(err)
	assert.False(t, tagged, "missing bootstrap is an infrastructure error, not a tagged one")
}

func TestListPropertyInitialState(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()

	id := h.listDemoProperty()
	assert.Equal(t, uint64(0), id, "first property takes id 0")

	property := h.property(id)
	assert.Equal(t, testFullID("alice"), property.Owner)
	assert.Equal(t, "alice", property.OwnerAlias)
	assert.Equal(t, uint64(1_000_000), property.Price)
	assert.Equal(t, uint64(1_000), property.TotalShares)
	assert.Equal(t, property.TotalShares, property.AvailableShares, "nothing sold yet")
	assert.True(t, property.Listed)
	assert.False(t, property.Locked)
	assert.False(t, property.Verified)
	assert.Equal(t, uint64(0), property.RentalIncome)
	assert.Equal(t, h.stub.heightNow(), property.CreationHeight)
	assert.Equal(t, property.CreationHeight, property.LastMaintenance)

	// The issuer starts with the full share supply.
	assert.Equal(t, uint64(1_000), h.shares("alice", id))

	assert.NotEmpty(t, h.stub.events["PropertyListed"])

	secondID, err := h.contract.ListProperty(h.as("bob"), 50_000, 50, "7 Mill Road", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), secondID, "ids are allocated monotonically")
}

func TestListPropertyValidation(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	ctx := h.as("alice")

	_, err := h.contract.ListProperty(ctx, 0, 1_000, "12 Harbour Lane", "")
	requireCode(t, err, CodeInvalidPrice)

	_, err = h.contract.ListProperty(ctx, 1_000_000, 0, "12 Harbour Lane", "")
	requireCode(t, err, CodeInvalidPrice)

	_, err = h.contract.ListProperty(ctx, 1_000_000, 1_000, "   ", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address cannot be empty")

	_, err = h.contract.ListProperty(ctx, 1_000_000, 1_000, strings.Repeat("a", maxAddressLength+1), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max length")

	_, err = h.contract.ListProperty(ctx, 1_000_000, 1_000, "12 Harbour Lane", strings.Repeat("d", maxDetailsLength+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max length")

	// Failed listings must not burn ids.
	id := h.listDemoProperty()
	assert.Equal(t, uint64(0), id)
}

func TestUpdatePropertyPrice(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	id := h.listDemoProperty()

	require.NoError(t, h.contract.UpdatePropertyPrice(h.as("alice"), id, 2_000_000))
	assert.Equal(t, uint64(2_000_000), h.property(id).Price)

	err := h.contract.UpdatePropertyPrice(h.as("alice"), id, 0)
	requireCode(t, err, CodeInvalidPrice)

	err = h.contract.UpdatePropertyPrice(h.as("alice"), 99, 500)
	requireCode(t, err, CodeNotFound)
}

func TestUpdatePropertyPriceNonOwnerLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	id := h.listDemoProperty()

	err := h.contract.UpdatePropertyPrice(h.as("mallory"), id, 1)
	requireCode(t, err, CodeUnauthorized)
	assert.Equal(t, uint64(1_000_000), h.property(id).Price)
}

func TestLockProperty(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.mint("bob", 1_000_000)
	id := h.listDemoProperty()

	err := h.contract.LockProperty(h.as("alice"), id)
	requireCode(t, err, CodeOwnerOnly)
	assert.False(t, h.property(id).Locked)

	require.NoError(t, h.contract.LockProperty(h.as("admin"), id))
	assert.True(t, h.property(id).Locked)

	// Locking twice is a no-op, not an error. There is no unlock.
	require.NoError(t, h.contract.LockProperty(h.as("admin"), id))
	assert.True(t, h.property(id).Locked)

	err = h.contract.BuyShares(h.as("bob"), id, 10)
	requireCode(t, err, CodePropertyLocked)

	err = h.contract.CreateMaintenanceProposal(h.as("alice"), id, "roof repair", 10_000)
	requireCode(t, err, CodePropertyLocked)
}

func TestGetPropertyDetailsUnknownIsNil(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()

	property, err := h.contract.GetPropertyDetails(h.ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, property)
}

func TestCalculateShareValue(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	id := h.listDemoProperty()

	value, err := h.contract.CalculateShareValue(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), value, "1,000,000 / 1,000 shares")

	_, err = h.contract.CalculateShareValue(h.ctx, 99)
	requireCode(t, err, CodeNotFound)
}

func TestCalculateShareValueWithMaintenanceSpend(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	id := h.listDemoProperty()

	writeMaintenanceSpend(t, h, id, 100_000)
	value, err := h.contract.CalculateShareValue(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), value)

	// Spend at or above the price floors the share value at zero.
	writeMaintenanceSpend(t, h, id, 1_000_000)
	value, err = h.contract.CalculateShareValue(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), value)
}

// writeMaintenanceSpend seeds the maintenance record directly; no operation
// writes it today.
func writeMaintenanceSpend(t *testing.T, h *registryHarness, id uint64, spent uint64) {
	t.Helper()
	record := model.MaintenanceRecord{
		ObjectType: maintenanceObjectType,
		PropertyID: id,
		TotalSpent: spent,
	}
	key, err := h.stub.CreateCompositeKey(maintenanceObjectType, []string{propertyIDAttr(id)})
	require.NoError(t, err)
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, h.stub.PutState(key, raw))
}

func TestGetAllPropertiesPagination(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	for i := 0; i < 3; i++ {
		h.listDemoProperty()
	}

	page, err := h.contract.GetAllProperties(h.ctx, "2", "")
	require.NoError(t, err)
	require.Len(t, page.Properties, 2)
	assert.Equal(t, int32(2), page.FetchedCount)
	require.NotEmpty(t, page.NextBookmark)

	rest, err := h.contract.GetAllProperties(h.ctx, "2", page.NextBookmark)
	require.NoError(t, err)
	require.Len(t, rest.Properties, 1)
	assert.Empty(t, rest.NextBookmark)

	seen := map[uint64]bool{}
	for _, p := range append(page.Properties, rest.Properties...) {
		seen[p.ID] = true
	}
	assert.Len(t, seen, 3, "pages never repeat or skip properties")

	// Garbage page sizes fall back to the default instead of failing.
	all, err := h.contract.GetAllProperties(h.ctx, "not-a-number", "")
	require.NoError(t, err)
	assert.Len(t, all.Properties, 3)
}

func TestGetPropertiesByOwner(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.listDemoProperty()
	h.listDemoProperty()
	_, err := h.contract.ListProperty(h.as("bob"), 50_000, 50, "7 Mill Road", "")
	require.NoError(t, err)

	mine, err := h.contract.GetPropertiesByOwner(h.ctx, testFullID("alice"))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := h.contract.GetPropertiesByOwner(h.ctx, testFullID("bob"))
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "7 Mill Road", theirs[0].Address)

	none, err := h.contract.GetPropertiesByOwner(h.ctx, testFullID("nobody"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetShareholders(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	h.mint("bob", 1_000_000)
	id := h.listDemoProperty()
	h.buy("bob", id, 200)

	holders, err := h.contract.GetShareholders(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, holders, 2)

	byHolder := map[string]uint64{}
	for _, entry := range holders {
		byHolder[entry.Holder] = entry.Balance
	}
	assert.Equal(t, uint64(1_000), byHolder[testFullID("alice")])
	assert.Equal(t, uint64(200), byHolder[testFullID("bob")])
}

func TestGetPropertyHistory(t *testing.T) {
	h := newHarness(t)
	h.bootstrap()
	id := h.listDemoProperty()
	require.NoError(t, h.contract.UpdatePropertyPrice(h.as("alice"), id, 1_250_000))

	entries, err := h.contract.GetPropertyHistory(h.ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2, "listing plus one price update")
	for _, entry := range entries {
		assert.NotEmpty(t, entry.TxID)
		assert.NotEmpty(t, entry.Timestamp)
		assert.False(t, entry.IsDelete)
		assert.Contains(t, entry.Value, "12 Harbour Lane")
	}
}
