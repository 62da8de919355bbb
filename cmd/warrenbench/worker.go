package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/log"
	workerpkg "github.com/cuemby/warrenbench/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker node operations",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single Worker process bound to a workload",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, _ := cmd.Flags().GetString("home")
		workload, _ := cmd.Flags().GetString("workload")
		bindAddr, _ := cmd.Flags().GetString("bind-address")
		agentAddr, _ := cmd.Flags().GetString("agent-address")
		agentIndex, _ := cmd.Flags().GetInt("agent-index")
		workerIndex, _ := cmd.Flags().GetInt("worker-index")

		if err := os.MkdirAll(home, 0o755); err != nil {
			return fmt.Errorf("worker: create home %s: %w", home, err)
		}

		reg := workerpkg.NewRegistry()
		reg.Register("noop", workerpkg.NewNoopWorkload)
		if workload != "noop" {
			reg.Register(workload, workerpkg.NewNoopWorkload)
		}

		var agentClient bus.BusClient
		if agentAddr != "" {
			conn, err := bus.Dial(agentAddr, nil)
			if err != nil {
				return fmt.Errorf("worker: dial agent %s: %w", agentAddr, err)
			}
			agentClient = bus.NewBusClient(conn)
		}

		selfAddr := address.NewWorkerAddress(agentIndex, workerIndex).String()
		w := workerpkg.New(selfAddr, home, reg, agentClient)

		lis, err := net.Listen("tcp", bindAddr)
		if err != nil {
			return fmt.Errorf("worker: listen on %s: %w", bindAddr, err)
		}
		srv := bus.NewServer(nil)
		bus.RegisterBusServer(srv, w)
		go func() {
			if err := srv.Serve(lis); err != nil {
				log.Logger.Error().Err(err).Msg("worker: bus server stopped")
			}
		}()
		defer srv.Stop()

		log.Logger.Info().Str("address", selfAddr).Str("bind", bindAddr).Msg("worker: running")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Logger.Warn().Str("address", selfAddr).Msg("worker: shutting down")
		return nil
	},
}

func init() {
	workerCmd.AddCommand(workerRunCmd)

	workerRunCmd.Flags().String("home", "", "Worker home directory for artifact files")
	workerRunCmd.Flags().String("workload", "noop", "Workload class this Worker is expected to run")
	workerRunCmd.Flags().String("bind-address", "127.0.0.1:7901", "Address this Worker's loopback bus server listens on")
	workerRunCmd.Flags().String("agent-address", "", "This Worker's owning Agent's bus address, for performance sample reporting")
	workerRunCmd.Flags().Int("agent-index", 1, "The owning Agent's SimulatorAddress index")
	workerRunCmd.Flags().Int("worker-index", 1, "This Worker's SimulatorAddress index")
	workerRunCmd.MarkFlagRequired("home")
}
