package enums

// VisibilityMode gates who may book trips under an event.
type VisibilityMode string

const (
	VisibilityModePublic      VisibilityMode = "public"
	VisibilityModeEarlyAccess VisibilityMode = "early_access"
	VisibilityModePrivate     VisibilityMode = "private"
)

func (m VisibilityMode) IsValid() bool {
	switch m {
	case VisibilityModePublic, VisibilityModeEarlyAccess, VisibilityModePrivate:
		return true
	default:
		return false
	}
}
