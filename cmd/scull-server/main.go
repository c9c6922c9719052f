package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sekai02/scull/internal/api"
	"github.com/sekai02/scull/internal/device"
	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/persistence"
	"github.com/sekai02/scull/internal/storage"
	"github.com/sekai02/scull/internal/sys"
	"github.com/spf13/cobra"
)

var service *api.Service

var (
	addr        string
	quantumFlag string
	qsetFlag    int
	deviceCount int
	memLimit    string
	snapshotDir string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "scull-server",
	Short: "Serve sparse quantum-set memory devices over HTTP",
	Long: `scull-server keeps a set of volatile, sparse memory devices and exposes
open/read/write/seek/release over HTTP. Device contents live in memory only;
snapshots are written to badger when explicitly requested.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	rootCmd.Flags().StringVar(&quantumFlag, "quantum", humanize.IBytes(sys.Quantum), "Quantum size")
	rootCmd.Flags().IntVar(&qsetFlag, "qset", sys.Qset, "Quanta per set")
	rootCmd.Flags().IntVar(&deviceCount, "devices", sys.DeviceCount, "Number of devices")
	rootCmd.Flags().StringVar(&memLimit, "mem-limit", "0", "Memory limit across all devices, 0 for none")
	rootCmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "Badger directory for snapshots, empty keeps them in memory")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (storage.Config, int64, error) {
	quantum, err := humanize.ParseBytes(quantumFlag)
	if err != nil {
		return storage.Config{}, 0, fmt.Errorf("invalid --quantum: %w", err)
	}
	limit, err := humanize.ParseBytes(memLimit)
	if err != nil {
		return storage.Config{}, 0, fmt.Errorf("invalid --mem-limit: %w", err)
	}

	cfg := storage.Config{Quantum: int(quantum), Qset: qsetFlag}
	if err := cfg.Validate(); err != nil {
		return storage.Config{}, 0, err
	}
	return cfg, int64(limit), nil
}

func run() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, limit, err := loadConfig()
	if err != nil {
		return err
	}

	snapshots, err := persistence.Open(snapshotDir)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	deviceMgr := device.NewManager(ids.NewGenerator(), cfg, storage.NewHeapAllocator(limit))
	devices, err := deviceMgr.Setup(deviceCount)
	if err != nil {
		snapshots.Close()
		return err
	}
	for _, dev := range devices {
		slog.Info("Registered device", "id", dev.ID, "name", dev.Name)
	}

	service = api.NewService(deviceMgr, snapshots)

	server := &http.Server{Addr: addr, Handler: newMux()}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server",
		"addr", addr,
		"quantum", humanize.IBytes(uint64(cfg.Quantum)),
		"qset", cfg.Qset,
		"item", humanize.IBytes(uint64(cfg.ItemSize())),
	)
	err = server.ListenAndServe()
	if shutdownErr := service.Shutdown(context.Background()); shutdownErr != nil {
		slog.Error("Teardown failed", "error", shutdownErr)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
