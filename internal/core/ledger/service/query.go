package service

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	addresscodec "github.com/tokenvault/tokenvaultd/internal/codec/address-codec"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/keylet"
	"github.com/tokenvault/tokenvaultd/internal/core/native"
	"github.com/tokenvault/tokenvaultd/internal/core/tx"
)

// getLedgerForQuery resolves a ledger selector: "current" or "" for the
// open ledger, "closed", "validated", or a numeric sequence.
func (s *Service) getLedgerForQuery(ledgerIndex string) (*ledger.Ledger, error) {
	switch ledgerIndex {
	case "", "current":
		if s.openLedger == nil {
			return nil, ErrNotStarted
		}
		return s.openLedger, nil
	case "closed":
		if s.closedLedger == nil {
			return nil, ErrLedgerNotFound
		}
		return s.closedLedger, nil
	case "validated":
		if s.validatedLedger == nil {
			return nil, ErrLedgerNotFound
		}
		return s.validatedLedger, nil
	default:
		seq, err := strconv.ParseUint(ledgerIndex, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid ledger index %q", ledgerIndex)
		}
		if l, ok := s.history[uint32(seq)]; ok {
			return l, nil
		}
		return nil, ErrLedgerNotFound
	}
}

// AccountInfo is the result of an account lookup.
type AccountInfo struct {
	Account           string
	Balance           native.Amount
	Sequence          uint32
	OwnerCount        uint32
	Flags             uint32
	PreviousTxnID     [32]byte
	PreviousTxnLgrSeq uint32
	LedgerIndex       uint32
	Validated         bool
}

// GetAccountInfo retrieves an account root from the selected ledger.
func (s *Service) GetAccountInfo(account string, ledgerIndex string) (*AccountInfo, error) {
	accountID, err := addresscodec.Decode(account)
	if err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	data, err := l.Read(keylet.Account(accountID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("account %s not found", account)
	}

	root, err := tx.ParseAccountRoot(data)
	if err != nil {
		return nil, fmt.Errorf("parse account root: %w", err)
	}

	return &AccountInfo{
		Account:           account,
		Balance:           root.Balance,
		Sequence:          root.Sequence,
		OwnerCount:        root.OwnerCount,
		Flags:             root.Flags,
		PreviousTxnID:     root.PreviousTxnID,
		PreviousTxnLgrSeq: root.PreviousTxnLgrSeq,
		LedgerIndex:       l.Sequence(),
		Validated:         l.IsValidated(),
	}, nil
}

// AssetInfo is the result of an asset lookup.
type AssetInfo struct {
	AssetID     [32]byte
	Issuer      string
	Supply      uint64
	Name        string
	Symbol      string
	URI         string
	Holder      string
	Custodial   bool
	LedgerIndex uint32
	Validated   bool
}

// GetAssetInfo retrieves an asset and its current holder.
func (s *Service) GetAssetInfo(assetID [32]byte, ledgerIndex string) (*AssetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	data, err := l.Read(keylet.Keylet{Type: keylet.TypeAsset, Key: assetID})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("asset %s not found", hexKey(assetID))
	}

	asset, err := tx.ParseAsset(data)
	if err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}

	info := &AssetInfo{
		AssetID:     asset.AssetID,
		Issuer:      addresscodec.Encode(asset.Issuer),
		Supply:      asset.Supply,
		Name:        asset.Name,
		Symbol:      asset.Symbol,
		URI:         asset.URI,
		LedgerIndex: l.Sequence(),
		Validated:   l.IsValidated(),
	}

	// Find the holding carrying the supply. Supply-1 assets have exactly
	// one non-zero holding at any time.
	err = l.ForEach(func(key [32]byte, data []byte) bool {
		if tx.RecordTypeName(data) != "Holding" {
			return true
		}
		holding, err := tx.ParseHolding(data)
		if err != nil || holding.Asset != assetID || holding.Balance == 0 {
			return true
		}
		info.Holder = addresscodec.Encode(holding.Authority)
		info.Custodial = holding.Custodial
		return false
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}

// HoldingInfo is one asset balance under an authority.
type HoldingInfo struct {
	AssetID   [32]byte
	Authority string
	Balance   uint64
	Custodial bool
}

// GetAccountHoldings lists the non-zero holdings controlled directly by
// an account. Custodial holdings are excluded; they belong to vaults.
func (s *Service) GetAccountHoldings(account string, ledgerIndex string) ([]HoldingInfo, error) {
	accountID, err := addresscodec.Decode(account)
	if err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	var holdings []HoldingInfo
	err = l.ForEach(func(key [32]byte, data []byte) bool {
		if tx.RecordTypeName(data) != "Holding" {
			return true
		}
		holding, err := tx.ParseHolding(data)
		if err != nil || holding.Authority != accountID || holding.Balance == 0 {
			return true
		}
		holdings = append(holdings, HoldingInfo{
			AssetID:   holding.Asset,
			Authority: account,
			Balance:   holding.Balance,
			Custodial: holding.Custodial,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return holdings, nil
}

// VaultInfo is the result of a vault lookup.
type VaultInfo struct {
	Owner            string
	AssetID          [32]byte
	State            string
	CustodyAuthority string
	LedgerIndex      uint32
	Validated        bool
}

// GetVaultInfo retrieves the vault an owner holds for an asset.
func (s *Service) GetVaultInfo(owner string, assetID [32]byte, ledgerIndex string) (*VaultInfo, error) {
	ownerID, err := addresscodec.Decode(owner)
	if err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	vaultKeylet := keylet.Vault(ownerID, assetID)
	data, err := l.Read(vaultKeylet)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("vault not found for owner %s", owner)
	}

	vault, err := tx.ParseVault(data)
	if err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}

	info := &VaultInfo{
		Owner:       owner,
		AssetID:     vault.Asset,
		State:       vault.State.String(),
		LedgerIndex: l.Sequence(),
		Validated:   l.IsValidated(),
	}
	if vault.State == tx.VaultLocked {
		authority := keylet.CustodyAuthority(vaultKeylet.Key, vault.Bump)
		info.CustodyAuthority = addresscodec.Encode(authority)
	}
	return info, nil
}

// SwapInfo is the result of a swap lookup.
type SwapInfo struct {
	SwapID      [32]byte
	Seller      string
	AssetID     [32]byte
	Price       native.Amount
	Status      string
	LedgerIndex uint32
	Validated   bool
}

// GetSwapInfo retrieves a swap listing by its key.
func (s *Service) GetSwapInfo(swapID [32]byte, ledgerIndex string) (*SwapInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	data, err := l.Read(keylet.Keylet{Type: keylet.TypeSwap, Key: swapID})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("swap %s not found", hexKey(swapID))
	}

	swap, err := tx.ParseSwap(data)
	if err != nil {
		return nil, fmt.Errorf("parse swap: %w", err)
	}

	return &SwapInfo{
		SwapID:      swapID,
		Seller:      addresscodec.Encode(swap.Seller),
		AssetID:     swap.Asset,
		Price:       swap.Price,
		Status:      swap.Status.String(),
		LedgerIndex: l.Sequence(),
		Validated:   l.IsValidated(),
	}, nil
}

// GetOpenSwaps lists swaps still open for execution, optionally filtered
// by seller.
func (s *Service) GetOpenSwaps(seller string, ledgerIndex string) ([]SwapInfo, error) {
	var sellerID [20]byte
	filterSeller := seller != ""
	if filterSeller {
		id, err := addresscodec.Decode(seller)
		if err != nil {
			return nil, fmt.Errorf("decode seller: %w", err)
		}
		sellerID = id
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	var swaps []SwapInfo
	err = l.ForEach(func(key [32]byte, data []byte) bool {
		if tx.RecordTypeName(data) != "Swap" {
			return true
		}
		swap, err := tx.ParseSwap(data)
		if err != nil || swap.Status != tx.SwapOpen {
			return true
		}
		if filterSeller && swap.Seller != sellerID {
			return true
		}
		swaps = append(swaps, SwapInfo{
			SwapID:      key,
			Seller:      addresscodec.Encode(swap.Seller),
			AssetID:     swap.Asset,
			Price:       swap.Price,
			Status:      swap.Status.String(),
			LedgerIndex: l.Sequence(),
			Validated:   l.IsValidated(),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return swaps, nil
}

// LedgerEntryResult is a raw ledger entry.
type LedgerEntryResult struct {
	Key         [32]byte
	RecordType  string
	Data        []byte
	LedgerIndex uint32
	Validated   bool
}

// GetLedgerEntry retrieves a state entry by its key.
func (s *Service) GetLedgerEntry(entryKey [32]byte, ledgerIndex string) (*LedgerEntryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	data, err := l.Read(keylet.Keylet{Key: entryKey})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("entry %s not found", hexKey(entryKey))
	}

	return &LedgerEntryResult{
		Key:         entryKey,
		RecordType:  tx.RecordTypeName(data),
		Data:        data,
		LedgerIndex: l.Sequence(),
		Validated:   l.IsValidated(),
	}, nil
}

// LedgerInfo summarizes one ledger for queries.
type LedgerInfo struct {
	Sequence    uint32
	Hash        [32]byte
	ParentHash  [32]byte
	CloseTime   time.Time
	Closed      bool
	Validated   bool
	TxCount     int
	StateCount  int
	TotalGrains uint64
}

// GetLedgerInfo summarizes the selected ledger.
func (s *Service) GetLedgerInfo(ledgerIndex string) (*LedgerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.getLedgerForQuery(ledgerIndex)
	if err != nil {
		return nil, err
	}

	return &LedgerInfo{
		Sequence:    l.Sequence(),
		Hash:        l.Hash(),
		ParentHash:  l.ParentHash(),
		CloseTime:   l.CloseTime(),
		Closed:      l.IsClosed(),
		Validated:   l.IsValidated(),
		TxCount:     l.TransactionCount(),
		StateCount:  l.StateEntryCount(),
		TotalGrains: l.TotalGrains(),
	}, nil
}

// ParseEntryKey decodes a 64-character hex string into a state key.
func ParseEntryKey(value string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return key, fmt.Errorf("invalid key: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func hexKey(key [32]byte) string {
	return strings.ToUpper(hex.EncodeToString(key[:]))
}
