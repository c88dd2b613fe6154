// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/pairpool/config"
	"github.com/luxfi/pairpool/pool"
	"github.com/luxfi/pairpool/program"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pairpool",
		Short:        "Two-asset pool program runner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy the configured pool and execute one program against it",
		RunE:  runProgram,
	}
	runCmd.Flags().String("program", "", "hex encoded program")
	runCmd.Flags().String("caller", "", "caller address")
	runCmd.Flags().String("value", "0", "native value attached to the call")
	runCmd.Flags().Uint64("timestamp", 0, "block timestamp, 0 means now")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address after the run")
	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Disassemble a program",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("program", "", "hex encoded program")
	root.AddCommand(decodeCmd)

	claimCmd := &cobra.Command{
		Use:   "claim-program",
		Short: "Print the program that pays accrued fees to a recipient",
		RunE:  runClaimProgram,
	}
	claimCmd.Flags().String("recipient", "", "fee recipient address")
	root.AddCommand(claimCmd)

	return root
}

func runProgram(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	call, prog, err := parseCall(cmd)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := pool.NewMetrics(reg)
	if err != nil {
		return err
	}
	d, err := deploy(cfg, logger, metrics)
	if err != nil {
		return err
	}

	receipt, err := d.pool.Execute(call, prog)
	if err != nil {
		return err
	}
	if err := d.db.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), newReceiptOutput(receipt)); err != nil {
		return err
	}

	if cfg.MetricsAddr == "" {
		return nil
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
}

func parseCall(cmd *cobra.Command) (pool.Call, []byte, error) {
	progHex, _ := cmd.Flags().GetString("program")
	prog, err := parseProgram(progHex)
	if err != nil {
		return pool.Call{}, nil, err
	}

	callerHex, _ := cmd.Flags().GetString("caller")
	caller, err := config.ParseAddress(callerHex)
	if err != nil {
		return pool.Call{}, nil, fmt.Errorf("caller: %w", err)
	}

	valueStr, _ := cmd.Flags().GetString("value")
	value, err := config.ParseAmount(valueStr)
	if err != nil {
		return pool.Call{}, nil, fmt.Errorf("value: %w", err)
	}

	ts, _ := cmd.Flags().GetUint64("timestamp")
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}
	return pool.Call{Caller: caller, Value: value, Timestamp: ts}, prog, nil
}

func parseProgram(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("program is required")
	}
	prog := common.FromHex(s)
	if len(prog) == 0 {
		return nil, fmt.Errorf("program %q is not hex", s)
	}
	return prog, nil
}

func runDecode(cmd *cobra.Command, _ []string) error {
	progHex, _ := cmd.Flags().GetString("program")
	prog, err := parseProgram(progHex)
	if err != nil {
		return err
	}
	header, instructions, err := program.Disassemble(prog)
	if err != nil {
		return err
	}

	type entry struct {
		Op   string              `json:"op"`
		Args program.Instruction `json:"args"`
	}
	out := struct {
		Capacity     uint16  `json:"capacity"`
		Instructions []entry `json:"instructions"`
	}{Capacity: header.Capacity}
	for _, ins := range instructions {
		out.Instructions = append(out.Instructions, entry{Op: ins.Op().String(), Args: ins})
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func runClaimProgram(cmd *cobra.Command, _ []string) error {
	recipientHex, _ := cmd.Flags().GetString("recipient")
	recipient, err := config.ParseAddress(recipientHex)
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "0x%x\n", pool.ClaimProgram(recipient))
	return err
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
