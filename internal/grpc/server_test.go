package grpc

import (
	"context"
	"testing"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger/genesis"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	_ "github.com/tokenvault/tokenvaultd/internal/core/tx/all"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestGrpcServer(t *testing.T) (*Server, *service.Service) {
	t.Helper()
	svc := service.New(service.Config{
		Standalone: true,
		Genesis:    genesis.DefaultConfig(),
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("service start failed: %v", err)
	}
	server, err := NewServer(DefaultServerConfig(), svc)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, svc
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	bad := &ServerConfig{Address: "no-port", MaxRecvMsgSize: 1, MaxSendMsgSize: 1}
	if err := bad.Validate(); err == nil {
		t.Error("address without port should fail validation")
	}

	bad = &ServerConfig{Address: "127.0.0.1:50051", MaxRecvMsgSize: 0, MaxSendMsgSize: 1}
	if err := bad.Validate(); err == nil {
		t.Error("zero recv size should fail validation")
	}
}

func TestGetLedger(t *testing.T) {
	server, _ := newTestGrpcServer(t)

	resp, err := server.GetLedger(context.Background(), &GetLedgerRequest{
		Specifier: &LedgerSpecifier{Shortcut: "validated"},
		Binary:    true,
	})
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if resp.LedgerIndex != 1 {
		t.Errorf("ledger index = %d, want 1", resp.LedgerIndex)
	}
	if !resp.Validated || !resp.Closed {
		t.Error("genesis should be validated and closed")
	}
	if len(resp.HeaderBlob) == 0 {
		t.Error("binary request should include header blob")
	}

	_, err = server.GetLedger(context.Background(), &GetLedgerRequest{
		Specifier: &LedgerSpecifier{Sequence: 99},
	})
	if status.Code(err) != codes.NotFound {
		t.Errorf("missing ledger = %v, want NotFound", err)
	}
}

func TestGetLedgerDefaultsToCurrent(t *testing.T) {
	server, _ := newTestGrpcServer(t)

	resp, err := server.GetLedger(context.Background(), &GetLedgerRequest{})
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if resp.LedgerIndex != 2 {
		t.Errorf("nil specifier ledger index = %d, want open ledger 2", resp.LedgerIndex)
	}
	if resp.Closed {
		t.Error("open ledger should not be closed")
	}
}

func TestGetAccount(t *testing.T) {
	server, svc := newTestGrpcServer(t)
	master, err := svc.GetMasterAccount()
	if err != nil {
		t.Fatalf("GetMasterAccount failed: %v", err)
	}

	resp, err := server.GetAccount(context.Background(), &GetAccountRequest{Account: master})
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if resp.Balance != genesis.DefaultSupply {
		t.Errorf("balance = %d, want %d", resp.Balance, genesis.DefaultSupply)
	}

	_, err = server.GetAccount(context.Background(), &GetAccountRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty account = %v, want InvalidArgument", err)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	server, _ := newTestGrpcServer(t)

	_, err := server.GetTransaction(context.Background(), &GetTransactionRequest{Hash: [32]byte{1}})
	if status.Code(err) != codes.NotFound {
		t.Errorf("missing transaction = %v, want NotFound", err)
	}
}
