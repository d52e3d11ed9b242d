package rpc

import (
	"context"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb"
)

// LedgerService is the surface of the ledger service used by RPC
// handlers. The concrete *service.Service satisfies it; tests install
// fakes.
type LedgerService interface {
	IsStandalone() bool
	GetCurrentLedgerIndex() uint32
	GetClosedLedgerIndex() uint32
	GetValidatedLedgerIndex() uint32
	GetMasterAccount() (string, error)
	GetServerInfo() service.ServerInfo

	SubmitTransaction(txJSON []byte) (*service.SubmitResult, error)
	AcceptLedger(ctx context.Context) (uint32, error)

	GetAccountInfo(account, ledgerIndex string) (*service.AccountInfo, error)
	GetAccountHoldings(account, ledgerIndex string) ([]service.HoldingInfo, error)
	GetAssetInfo(assetID [32]byte, ledgerIndex string) (*service.AssetInfo, error)
	GetVaultInfo(owner string, assetID [32]byte, ledgerIndex string) (*service.VaultInfo, error)
	GetSwapInfo(swapID [32]byte, ledgerIndex string) (*service.SwapInfo, error)
	GetOpenSwaps(seller, ledgerIndex string) ([]service.SwapInfo, error)
	GetLedgerInfo(ledgerIndex string) (*service.LedgerInfo, error)
	GetLedgerEntry(entryKey [32]byte, ledgerIndex string) (*service.LedgerEntryResult, error)
	GetLedgerBySequence(seq uint32) (*ledger.Ledger, error)
	GetTransaction(txHash [32]byte) (*service.TransactionInfo, error)
	WriteSnapshotFile(path, ledgerIndex string) (*service.Snapshot, error)
	GetAccountTransactions(ctx context.Context, account string, options relationaldb.AccountTxPageOptions, forward bool) (*relationaldb.AccountTxResult, error)
}

// Services holds the dependencies shared by all method handlers.
type Services struct {
	Ledger LedgerService
}
