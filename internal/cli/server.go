package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tokenvault/tokenvaultd/internal/config"
	"github.com/tokenvault/tokenvaultd/internal/core/ledger/service"
	_ "github.com/tokenvault/tokenvaultd/internal/core/tx/all"
	grpcserver "github.com/tokenvault/tokenvaultd/internal/grpc"
	"github.com/tokenvault/tokenvaultd/internal/rpc"
	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore"
	"github.com/tokenvault/tokenvaultd/internal/storage/relationaldb/sqldb"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the tokenvaultd server",
	Long: `Start the tokenvaultd server: the ledger service plus the HTTP
JSON-RPC endpoint, the WebSocket subscription endpoint, and optionally
gRPC. This is the default command when no subcommand is given.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.RunE = runServer
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if standalone {
		cfg.Standalone = true
	}
	rpc.SetBuildVersion(rootCmd.Version)

	// Storage
	nodeStore, err := nodestore.New(cfg.NodeStoreConfig())
	if err != nil {
		return fmt.Errorf("open node store: %w", err)
	}
	defer nodeStore.Close()

	relDB, err := sqldb.NewManager(cfg.RelationalDBConfig())
	if err != nil {
		return fmt.Errorf("create history database: %w", err)
	}
	ctx := context.Background()
	if err := relDB.Open(ctx); err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer relDB.Close(ctx)

	// Ledger service
	ledgerSvc := service.New(service.Config{
		Standalone:   cfg.Standalone,
		Genesis:      cfg.GenesisServiceConfig(),
		NodeStore:    nodeStore,
		RelationalDB: relDB,
	})

	manager := rpc.NewSubscriptionManager()
	ledgerSvc.SetEventHooks(rpc.NewPublisher(manager))

	if err := ledgerSvc.Start(ctx); err != nil {
		return fmt.Errorf("start ledger service: %w", err)
	}
	defer ledgerSvc.Stop(ctx)

	// RPC servers
	rpcServer := rpc.NewServer(&rpc.Services{Ledger: ledgerSvc}, cfg.Server.RequestTimeout)
	wsServer := rpc.NewWebSocketServer(rpcServer, manager)

	mux := http.NewServeMux()
	mux.Handle("/", rpcServer)
	mux.Handle("/rpc", rpcServer)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"tokenvaultd"}`))
	})

	httpServer := &http.Server{Addr: cfg.Server.RPCAddress, Handler: mux}

	var wsHTTPServer *http.Server
	if cfg.Server.WSAddress != "" {
		wsMux := http.NewServeMux()
		wsMux.Handle("/", wsServer)
		wsHTTPServer = &http.Server{Addr: cfg.Server.WSAddress, Handler: wsMux}
	}

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPCAddress != "" {
		grpcCfg := grpcserver.DefaultServerConfig()
		grpcCfg.Address = cfg.Server.GRPCAddress
		grpcSrv, err = grpcserver.NewServer(grpcCfg, ledgerSvc)
		if err != nil {
			return fmt.Errorf("create grpc server: %w", err)
		}
	}

	if !quiet {
		master, _ := ledgerSvc.GetMasterAccount()
		fmt.Println("Starting tokenvaultd")
		fmt.Printf("  standalone:     %v\n", cfg.Standalone)
		fmt.Printf("  master account: %s\n", master)
		fmt.Printf("  JSON-RPC:       http://%s/\n", cfg.Server.RPCAddress)
		if cfg.Server.WSAddress != "" {
			fmt.Printf("  WebSocket:      ws://%s/\n", cfg.Server.WSAddress)
		}
		if cfg.Server.GRPCAddress != "" {
			fmt.Printf("  gRPC:           %s\n", cfg.Server.GRPCAddress)
		}
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	})
	if wsHTTPServer != nil {
		group.Go(func() error {
			if err := wsHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("websocket server: %w", err)
			}
			return nil
		})
	}
	if grpcSrv != nil {
		group.Go(func() error {
			if err := grpcSrv.Start(); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		if wsHTTPServer != nil {
			wsHTTPServer.Shutdown(shutdownCtx)
		}
		if grpcSrv != nil {
			grpcSrv.Stop()
		}
		return nil
	})

	return group.Wait()
}
