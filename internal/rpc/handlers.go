package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

func hashHex(hash [32]byte) string {
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func decodeHash(value string) ([32]byte, *RpcError) {
	key, err := service.ParseEntryKey(value)
	if err != nil {
		return key, ErrInvalidParams
	}
	return key, nil
}

func decodeParams(params json.RawMessage, target any) *RpcError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, target); err != nil {
		return ErrInvalidParams
	}
	return nil
}

// ping

type pingMethod struct{}

func (m *pingMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	return map[string]any{}, nil
}

func (m *pingMethod) RequiredRole() Role { return RoleGuest }

// server_info

type serverInfoMethod struct {
	svc *Services
}

func (m *serverInfoMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	info := m.svc.Ledger.GetServerInfo()
	return map[string]any{
		"info": map[string]any{
			"build_version":          buildVersion,
			"standalone":             info.Standalone,
			"current_ledger_index":   info.CurrentLedgerIndex,
			"closed_ledger_index":    info.ClosedLedgerIndex,
			"validated_ledger_index": info.ValidatedLedgerIndex,
			"validated_ledger_hash":  hashHex(info.ValidatedLedgerHash),
			"open_transaction_count": info.OpenTransactionCount,
			"closed_ledger_count":    info.ClosedLedgerCount,
			"total_grains":           info.TotalGrains,
			"master_account":         info.MasterAccount,
		},
	}, nil
}

func (m *serverInfoMethod) RequiredRole() Role { return RoleGuest }

// buildVersion is stamped at link time.
var buildVersion = "dev"

// SetBuildVersion overrides the version reported by server_info.
func SetBuildVersion(version string) {
	if version != "" {
		buildVersion = version
	}
}

// ledger

type ledgerParams struct {
	LedgerIndex string `json:"ledger_index"`
}

type ledgerMethod struct {
	svc *Services
}

func (m *ledgerMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p ledgerParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	info, err := m.svc.Ledger.GetLedgerInfo(p.LedgerIndex)
	if err != nil {
		if errors.Is(err, service.ErrLedgerNotFound) {
			return nil, ErrLgrNotFound
		}
		return nil, NewRpcError("invalidParams", err.Error())
	}

	return map[string]any{
		"ledger": map[string]any{
			"ledger_index": info.Sequence,
			"ledger_hash":  hashHex(info.Hash),
			"parent_hash":  hashHex(info.ParentHash),
			"close_time":   info.CloseTime.UTC().Format("2006-01-02T15:04:05Z"),
			"closed":       info.Closed,
			"total_grains": info.TotalGrains,
			"tx_count":     info.TxCount,
			"state_count":  info.StateCount,
		},
		"validated": info.Validated,
	}, nil
}

func (m *ledgerMethod) RequiredRole() Role { return RoleGuest }

// ledger_accept

type ledgerAcceptMethod struct {
	svc *Services
}

func (m *ledgerAcceptMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	if !m.svc.Ledger.IsStandalone() {
		return nil, ErrNotStandalone
	}
	seq, err := m.svc.Ledger.AcceptLedger(ctx.Context)
	if err != nil {
		return nil, NewRpcError("internal", err.Error())
	}
	return map[string]any{
		"ledger_current_index": seq + 1,
		"accepted_ledger":      seq,
	}, nil
}

func (m *ledgerAcceptMethod) RequiredRole() Role { return RoleAdmin }

// ledger_entry

type ledgerEntryParams struct {
	Index       string `json:"index"`
	LedgerIndex string `json:"ledger_index"`
}

type ledgerEntryMethod struct {
	svc *Services
}

func (m *ledgerEntryMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p ledgerEntryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Index == "" {
		return nil, ErrInvalidParams
	}

	key, rpcErr := decodeHash(p.Index)
	if rpcErr != nil {
		return nil, rpcErr
	}

	entry, err := m.svc.Ledger.GetLedgerEntry(key, p.LedgerIndex)
	if err != nil {
		return nil, ErrEntryNotFound
	}

	return map[string]any{
		"index":        hashHex(entry.Key),
		"record_type":  entry.RecordType,
		"node_binary":  strings.ToUpper(hex.EncodeToString(entry.Data)),
		"ledger_index": entry.LedgerIndex,
		"validated":    entry.Validated,
	}, nil
}

func (m *ledgerEntryMethod) RequiredRole() Role { return RoleGuest }

// ledger_snapshot

type ledgerSnapshotParams struct {
	Path        string `json:"path"`
	LedgerIndex string `json:"ledger_index"`
}

type ledgerSnapshotMethod struct {
	svc *Services
}

// Handle writes a state snapshot to a file on the server host. Admin
// only; the path is relative to the server's working directory.
func (m *ledgerSnapshotMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p ledgerSnapshotParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Path == "" {
		return nil, ErrInvalidParams
	}

	snap, err := m.svc.Ledger.WriteSnapshotFile(p.Path, p.LedgerIndex)
	if err != nil {
		if errors.Is(err, service.ErrLedgerNotFound) {
			return nil, ErrLgrNotFound
		}
		return nil, NewRpcError("internal", err.Error())
	}

	return map[string]any{
		"path":         p.Path,
		"ledger_index": snap.LedgerSeq,
		"ledger_hash":  hashHex(snap.LedgerHash),
		"state_hash":   hashHex(snap.StateHash),
		"entry_count":  len(snap.Entries),
	}, nil
}

func (m *ledgerSnapshotMethod) RequiredRole() Role { return RoleAdmin }

// submit

type submitParams struct {
	TxJSON json.RawMessage `json:"tx_json"`
}

type submitMethod struct {
	svc *Services
}

func (m *submitMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p submitParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if len(p.TxJSON) == 0 {
		return nil, NewRpcError("invalidParams", "Missing field 'tx_json'.")
	}

	result, err := m.svc.Ledger.SubmitTransaction(p.TxJSON)
	if err != nil {
		return nil, NewRpcError("invalidTransaction", err.Error())
	}

	response := map[string]any{
		"engine_result":         result.Result.String(),
		"engine_result_code":    int(result.Result),
		"engine_result_message": result.Message,
		"applied":               result.Applied,
	}
	if result.Applied {
		response["tx_hash"] = hashHex(result.TxHash)
		response["ledger_current_index"] = result.LedgerSeq
		var txJSON map[string]any
		if err := json.Unmarshal(result.TxJSON, &txJSON); err == nil {
			response["tx_json"] = txJSON
		}
	}
	return response, nil
}

func (m *submitMethod) RequiredRole() Role { return RoleGuest }

// tx

type txParams struct {
	Transaction string `json:"transaction"`
}

type txMethod struct {
	svc *Services
}

func (m *txMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p txParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Transaction == "" {
		return nil, ErrInvalidParams
	}

	hash, rpcErr := decodeHash(p.Transaction)
	if rpcErr != nil {
		return nil, rpcErr
	}

	info, err := m.svc.Ledger.GetTransaction(hash)
	if err != nil {
		return nil, ErrTxnNotFound
	}

	response := map[string]any{
		"hash":         hashHex(info.Hash),
		"ledger_index": info.LedgerSeq,
		"txn_index":    info.TxnSeq,
		"validated":    info.Validated,
	}
	var txJSON map[string]any
	if err := json.Unmarshal(info.TxJSON, &txJSON); err == nil {
		response["tx_json"] = txJSON
	}
	if len(info.Meta) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(info.Meta, &meta); err == nil {
			response["meta"] = meta
		}
	}
	return response, nil
}

func (m *txMethod) RequiredRole() Role { return RoleGuest }

// account_info

type accountParams struct {
	Account     string `json:"account"`
	LedgerIndex string `json:"ledger_index"`
}

type accountInfoMethod struct {
	svc *Services
}

func (m *accountInfoMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Account == "" {
		return nil, NewRpcError("invalidParams", "Missing field 'account'.")
	}

	info, err := m.svc.Ledger.GetAccountInfo(p.Account, p.LedgerIndex)
	if err != nil {
		return nil, ErrAcctNotFound
	}

	return map[string]any{
		"account_data": map[string]any{
			"Account":           info.Account,
			"Balance":           uint64(info.Balance),
			"Sequence":          info.Sequence,
			"OwnerCount":        info.OwnerCount,
			"Flags":             info.Flags,
			"PreviousTxnID":     hashHex(info.PreviousTxnID),
			"PreviousTxnLgrSeq": info.PreviousTxnLgrSeq,
		},
		"ledger_index": info.LedgerIndex,
		"validated":    info.Validated,
	}, nil
}

func (m *accountInfoMethod) RequiredRole() Role { return RoleGuest }

// account_holdings

type accountHoldingsMethod struct {
	svc *Services
}

func (m *accountHoldingsMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p accountParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Account == "" {
		return nil, NewRpcError("invalidParams", "Missing field 'account'.")
	}

	holdings, err := m.svc.Ledger.GetAccountHoldings(p.Account, p.LedgerIndex)
	if err != nil {
		return nil, ErrAcctNotFound
	}

	items := make([]map[string]any, 0, len(holdings))
	for _, h := range holdings {
		items = append(items, map[string]any{
			"asset_id":  hashHex(h.AssetID),
			"balance":   h.Balance,
			"custodial": h.Custodial,
		})
	}
	return map[string]any{
		"account":  p.Account,
		"holdings": items,
	}, nil
}

func (m *accountHoldingsMethod) RequiredRole() Role { return RoleGuest }

// account_tx

type accountTxParams struct {
	Account   string `json:"account"`
	MinLedger int64  `json:"ledger_index_min"`
	MaxLedger int64  `json:"ledger_index_max"`
	Limit     uint32 `json:"limit"`
	Forward   bool   `json:"forward"`
	Marker    *struct {
		LedgerSeq uint32 `json:"ledger"`
		TxnSeq    uint32 `json:"seq"`
	} `json:"marker"`
}

type accountTxMethod struct {
	svc *Services
}

func (m *accountTxMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p accountTxParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Account == "" {
		return nil, NewRpcError("invalidParams", "Missing field 'account'.")
	}

	options := relationaldb.AccountTxPageOptions{
		Limit: p.Limit,
	}
	if p.MinLedger > 0 {
		options.MinLedger = relationaldb.LedgerIndex(p.MinLedger)
	}
	if p.MaxLedger > 0 {
		options.MaxLedger = relationaldb.LedgerIndex(p.MaxLedger)
	}
	if p.Marker != nil {
		options.Marker = &relationaldb.AccountTxMarker{
			LedgerSeq: relationaldb.LedgerIndex(p.Marker.LedgerSeq),
			TxnSeq:    p.Marker.TxnSeq,
		}
	}

	result, err := m.svc.Ledger.GetAccountTransactions(ctx.Context, p.Account, options, p.Forward)
	if err != nil {
		return nil, NewRpcError("internal", err.Error())
	}

	txs := make([]map[string]any, 0, len(result.Transactions))
	for _, row := range result.Transactions {
		item := map[string]any{
			"hash":         hashHex([32]byte(row.Hash)),
			"ledger_index": uint32(row.LedgerSeq),
			"txn_index":    row.TxnSeq,
			"status":       row.Status,
			"validated":    true,
		}
		var txJSON map[string]any
		if err := json.Unmarshal(row.RawTxn, &txJSON); err == nil {
			item["tx_json"] = txJSON
		}
		txs = append(txs, item)
	}

	response := map[string]any{
		"account":      p.Account,
		"transactions": txs,
	}
	if result.Marker != nil {
		response["marker"] = map[string]any{
			"ledger": uint32(result.Marker.LedgerSeq),
			"seq":    result.Marker.TxnSeq,
		}
	}
	return response, nil
}

func (m *accountTxMethod) RequiredRole() Role { return RoleGuest }

// asset_info

type assetInfoParams struct {
	AssetID     string `json:"asset_id"`
	LedgerIndex string `json:"ledger_index"`
}

type assetInfoMethod struct {
	svc *Services
}

func (m *assetInfoMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p assetInfoParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.AssetID == "" {
		return nil, NewRpcError("invalidParams", "Missing field 'asset_id'.")
	}

	assetID, rpcErr := decodeHash(p.AssetID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	info, err := m.svc.Ledger.GetAssetInfo(assetID, p.LedgerIndex)
	if err != nil {
		return nil, ErrEntryNotFound
	}

	return map[string]any{
		"asset": map[string]any{
			"asset_id":  hashHex(info.AssetID),
			"issuer":    info.Issuer,
			"supply":    info.Supply,
			"name":      info.Name,
			"symbol":    info.Symbol,
			"uri":       info.URI,
			"holder":    info.Holder,
			"custodial": info.Custodial,
		},
		"ledger_index": info.LedgerIndex,
		"validated":    info.Validated,
	}, nil
}

func (m *assetInfoMethod) RequiredRole() Role { return RoleGuest }

// vault_info

type vaultInfoParams struct {
	Owner       string `json:"owner"`
	AssetID     string `json:"asset_id"`
	LedgerIndex string `json:"ledger_index"`
}

type vaultInfoMethod struct {
	svc *Services
}

func (m *vaultInfoMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p vaultInfoParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Owner == "" || p.AssetID == "" {
		return nil, NewRpcError("invalidParams", "Fields 'owner' and 'asset_id' are required.")
	}

	assetID, rpcErr := decodeHash(p.AssetID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	info, err := m.svc.Ledger.GetVaultInfo(p.Owner, assetID, p.LedgerIndex)
	if err != nil {
		return nil, ErrEntryNotFound
	}

	vault := map[string]any{
		"owner":    info.Owner,
		"asset_id": hashHex(info.AssetID),
		"state":    info.State,
	}
	if info.CustodyAuthority != "" {
		vault["custody_authority"] = info.CustodyAuthority
	}
	return map[string]any{
		"vault":        vault,
		"ledger_index": info.LedgerIndex,
		"validated":    info.Validated,
	}, nil
}

func (m *vaultInfoMethod) RequiredRole() Role { return RoleGuest }

// swap_info

type swapInfoParams struct {
	SwapID      string `json:"swap_id"`
	LedgerIndex string `json:"ledger_index"`
}

type swapInfoMethod struct {
	svc *Services
}

func (m *swapInfoMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p swapInfoParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.SwapID == "" {
		return nil, NewRpcError("invalidParams", "Missing field 'swap_id'.")
	}

	swapID, rpcErr := decodeHash(p.SwapID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	info, err := m.svc.Ledger.GetSwapInfo(swapID, p.LedgerIndex)
	if err != nil {
		return nil, ErrEntryNotFound
	}

	return map[string]any{
		"swap":         swapResponse(*info),
		"ledger_index": info.LedgerIndex,
		"validated":    info.Validated,
	}, nil
}

func (m *swapInfoMethod) RequiredRole() Role { return RoleGuest }

// swaps

type swapsParams struct {
	Seller      string `json:"seller"`
	LedgerIndex string `json:"ledger_index"`
}

type swapsMethod struct {
	svc *Services
}

func (m *swapsMethod) Handle(ctx *RpcContext, params json.RawMessage) (any, *RpcError) {
	var p swapsParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	swaps, err := m.svc.Ledger.GetOpenSwaps(p.Seller, p.LedgerIndex)
	if err != nil {
		return nil, NewRpcError("invalidParams", err.Error())
	}

	items := make([]map[string]any, 0, len(swaps))
	for _, swap := range swaps {
		items = append(items, swapResponse(swap))
	}
	return map[string]any{"swaps": items}, nil
}

func (m *swapsMethod) RequiredRole() Role { return RoleGuest }

func swapResponse(info service.SwapInfo) map[string]any {
	return map[string]any{
		"swap_id":  hashHex(info.SwapID),
		"seller":   info.Seller,
		"asset_id": hashHex(info.AssetID),
		"price":    uint64(info.Price),
		"status":   info.Status,
	}
}
