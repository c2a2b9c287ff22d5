package enums

// InventoryEventType classifies merchandise ledger movements.
type InventoryEventType string

const (
	InventoryEventReserve InventoryEventType = "reserve"
	InventoryEventRelease InventoryEventType = "release"
)

func (t InventoryEventType) IsValid() bool {
	switch t {
	case InventoryEventReserve, InventoryEventRelease:
		return true
	default:
		return false
	}
}
