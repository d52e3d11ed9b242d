package grpc

import (
	"context"
	"errors"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LedgerSpecifier identifies which ledger a request targets. Exactly
// one field is set; an empty specifier means the open ledger.
type LedgerSpecifier struct {
	// Shortcut is "current", "closed", or "validated".
	Shortcut string

	// Sequence selects a ledger by sequence number when nonzero.
	Sequence uint32
}

func (spec *LedgerSpecifier) selector() string {
	if spec == nil {
		return "current"
	}
	if spec.Sequence != 0 {
		return formatSequence(spec.Sequence)
	}
	if spec.Shortcut != "" {
		return spec.Shortcut
	}
	return "current"
}

// GetLedgerRequest asks for ledger information.
type GetLedgerRequest struct {
	Specifier *LedgerSpecifier

	// IncludeState requests the raw state entries.
	IncludeState bool

	// Binary requests the serialized ledger header.
	Binary bool
}

// GetLedgerResponse carries ledger information.
type GetLedgerResponse struct {
	LedgerIndex uint32
	LedgerHash  [32]byte
	ParentHash  [32]byte
	TotalGrains uint64
	CloseTime   int64
	Validated   bool
	Closed      bool
	TxCount     int

	// HeaderBlob is set when Binary is true.
	HeaderBlob []byte

	// StateBlob is set when IncludeState is true.
	StateBlob [][]byte
}

// GetLedger retrieves ledger information.
func (s *Server) GetLedger(ctx context.Context, req *GetLedgerRequest) (*GetLedgerResponse, error) {
	if s.ledgerService == nil {
		return nil, status.Error(codes.Internal, "ledger service not available")
	}

	info, err := s.ledgerService.GetLedgerInfo(req.Specifier.selector())
	if err != nil {
		if errors.Is(err, service.ErrLedgerNotFound) {
			return nil, status.Error(codes.NotFound, "ledger not found")
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp := &GetLedgerResponse{
		LedgerIndex: info.Sequence,
		LedgerHash:  info.Hash,
		ParentHash:  info.ParentHash,
		TotalGrains: info.TotalGrains,
		CloseTime:   info.CloseTime.Unix(),
		Validated:   info.Validated,
		Closed:      info.Closed,
		TxCount:     info.TxCount,
	}

	if req.Binary || req.IncludeState {
		l, err := s.ledgerService.GetLedgerBySequence(info.Sequence)
		if err == nil {
			if req.Binary {
				resp.HeaderBlob = l.SerializeHeader()
			}
			if req.IncludeState {
				var blobs [][]byte
				walkErr := l.ForEach(func(key [32]byte, data []byte) bool {
					entry := make([]byte, 32+len(data))
					copy(entry, key[:])
					copy(entry[32:], data)
					blobs = append(blobs, entry)
					return true
				})
				if walkErr != nil {
					return nil, status.Error(codes.Internal, "failed to iterate state")
				}
				resp.StateBlob = blobs
			}
		}
	}

	return resp, nil
}

// GetLedgerEntryRequest asks for one state entry.
type GetLedgerEntryRequest struct {
	Specifier *LedgerSpecifier
	Key       [32]byte
}

// GetLedgerEntryResponse carries one state entry.
type GetLedgerEntryResponse struct {
	LedgerIndex uint32
	Key         [32]byte
	RecordType  string
	Data        []byte
	Validated   bool
}

// GetLedgerEntry retrieves a state entry by key.
func (s *Server) GetLedgerEntry(ctx context.Context, req *GetLedgerEntryRequest) (*GetLedgerEntryResponse, error) {
	if s.ledgerService == nil {
		return nil, status.Error(codes.Internal, "ledger service not available")
	}

	entry, err := s.ledgerService.GetLedgerEntry(req.Key, req.Specifier.selector())
	if err != nil {
		if errors.Is(err, service.ErrLedgerNotFound) {
			return nil, status.Error(codes.NotFound, "ledger not found")
		}
		return nil, status.Error(codes.NotFound, "entry not found")
	}

	return &GetLedgerEntryResponse{
		LedgerIndex: entry.LedgerIndex,
		Key:         entry.Key,
		RecordType:  entry.RecordType,
		Data:        entry.Data,
		Validated:   entry.Validated,
	}, nil
}

// GetAccountRequest asks for an account root.
type GetAccountRequest struct {
	Specifier *LedgerSpecifier
	Account   string
}

// GetAccountResponse carries an account root.
type GetAccountResponse struct {
	Account     string
	Balance     uint64
	Sequence    uint32
	OwnerCount  uint32
	Flags       uint32
	LedgerIndex uint32
	Validated   bool
}

// GetAccount retrieves an account root.
func (s *Server) GetAccount(ctx context.Context, req *GetAccountRequest) (*GetAccountResponse, error) {
	if s.ledgerService == nil {
		return nil, status.Error(codes.Internal, "ledger service not available")
	}
	if req.Account == "" {
		return nil, status.Error(codes.InvalidArgument, "account is required")
	}

	info, err := s.ledgerService.GetAccountInfo(req.Account, req.Specifier.selector())
	if err != nil {
		return nil, status.Error(codes.NotFound, "account not found")
	}

	return &GetAccountResponse{
		Account:     info.Account,
		Balance:     uint64(info.Balance),
		Sequence:    info.Sequence,
		OwnerCount:  info.OwnerCount,
		Flags:       info.Flags,
		LedgerIndex: info.LedgerIndex,
		Validated:   info.Validated,
	}, nil
}

// GetTransactionRequest asks for a transaction by hash.
type GetTransactionRequest struct {
	Hash [32]byte
}

// GetTransactionResponse carries a transaction and its metadata.
type GetTransactionResponse struct {
	Hash        [32]byte
	LedgerIndex uint32
	TxnIndex    uint32
	Validated   bool
	TxBlob      []byte
	MetaBlob    []byte
}

// GetTransaction retrieves a transaction by hash.
func (s *Server) GetTransaction(ctx context.Context, req *GetTransactionRequest) (*GetTransactionResponse, error) {
	if s.ledgerService == nil {
		return nil, status.Error(codes.Internal, "ledger service not available")
	}

	info, err := s.ledgerService.GetTransaction(req.Hash)
	if err != nil {
		return nil, status.Error(codes.NotFound, "transaction not found")
	}

	return &GetTransactionResponse{
		Hash:        info.Hash,
		LedgerIndex: info.LedgerSeq,
		TxnIndex:    info.TxnSeq,
		Validated:   info.Validated,
		TxBlob:      info.TxJSON,
		MetaBlob:    info.Meta,
	}, nil
}
