package tx

// Type identifies a transaction type
type Type uint16

const (
	TypeUnknown Type = 0

	// Payment moves native funds between accounts
	TypePayment Type = 1

	// TypeAssetIssue creates a new single-supply asset
	TypeAssetIssue Type = 10

	// Vault custody transactions
	TypeVaultCreate Type = 20
	TypeVaultLock   Type = 21
	TypeVaultUnlock Type = 22

	// Swap escrow transactions
	TypeSwapCreate  Type = 30
	TypeSwapExecute Type = 31
	TypeSwapCancel  Type = 32
)

// String returns the canonical name of the transaction type
func (t Type) String() string {
	switch t {
	case TypePayment:
		return "Payment"
	case TypeAssetIssue:
		return "AssetIssue"
	case TypeVaultCreate:
		return "VaultCreate"
	case TypeVaultLock:
		return "VaultLock"
	case TypeVaultUnlock:
		return "VaultUnlock"
	case TypeSwapCreate:
		return "SwapCreate"
	case TypeSwapExecute:
		return "SwapExecute"
	case TypeSwapCancel:
		return "SwapCancel"
	default:
		return "Unknown"
	}
}

// TypeFromName returns the transaction type for a canonical name
func TypeFromName(name string) (Type, bool) {
	switch name {
	case "Payment":
		return TypePayment, true
	case "AssetIssue":
		return TypeAssetIssue, true
	case "VaultCreate":
		return TypeVaultCreate, true
	case "VaultLock":
		return TypeVaultLock, true
	case "VaultUnlock":
		return TypeVaultUnlock, true
	case "SwapCreate":
		return TypeSwapCreate, true
	case "SwapExecute":
		return TypeSwapExecute, true
	case "SwapCancel":
		return TypeSwapCancel, true
	default:
		return TypeUnknown, false
	}
}
