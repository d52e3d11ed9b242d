package grpc

import (
	"errors"
	"net"
	"sync"

	"github.com/tokenvault/tokenvaultd/internal/core/ledger"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	"google.golang.org/grpc"
)

// LedgerReader is the slice of the ledger service the gRPC handlers
// use. *service.Service implements it.
type LedgerReader interface {
	GetCurrentLedgerIndex() uint32
	GetClosedLedgerIndex() uint32
	GetValidatedLedgerIndex() uint32
	GetLedgerInfo(ledgerIndex string) (*service.LedgerInfo, error)
	GetLedgerBySequence(seq uint32) (*ledger.Ledger, error)
	GetLedgerEntry(entryKey [32]byte, ledgerIndex string) (*service.LedgerEntryResult, error)
	GetAccountInfo(account, ledgerIndex string) (*service.AccountInfo, error)
	GetTransaction(txHash [32]byte) (*service.TransactionInfo, error)
}

// Server is the gRPC server for ledger queries.
type Server struct {
	mu sync.RWMutex

	grpcServer    *grpc.Server
	ledgerService LedgerReader
	config        *ServerConfig
	listener      net.Listener
	running       bool
}

// NewServer creates a gRPC server with the given configuration.
func NewServer(cfg *ServerConfig, ledgerSvc LedgerReader) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
	}

	return &Server{
		grpcServer:    grpc.NewServer(opts...),
		ledgerService: ledgerSvc,
		config:        cfg,
	}, nil
}

// Start begins accepting connections. Blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	return s.grpcServer.Serve(listener)
}

// Stop gracefully stops the server, draining open connections.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.grpcServer.GracefulStop()
	s.running = false
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the listen address, or "" before Start.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetGRPCServer returns the underlying grpc.Server so callers can
// register additional services before Start.
func (s *Server) GetGRPCServer() *grpc.Server {
	return s.grpcServer
}
