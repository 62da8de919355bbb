package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/credentials"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/address"
	"github.com/cuemby/warrenbench/pkg/agent"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/log"
	"github.com/cuemby/warrenbench/pkg/metrics"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Agent node operations",
}

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an Agent: supervise Worker processes and relay to the Coordinator",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindAddr, _ := cmd.Flags().GetString("bind-address")
		addressIndex, _ := cmd.Flags().GetInt("address-index")
		coordinatorAddr, _ := cmd.Flags().GetString("coordinator-address")
		coordinatorEnrollAddr, _ := cmd.Flags().GetString("coordinator-enroll-address")
		joinToken, _ := cmd.Flags().GetString("join-token")
		homeRoot, _ := cmd.Flags().GetString("home-root")
		workerCount, _ := cmd.Flags().GetInt("workers")
		workload, _ := cmd.Flags().GetString("workload")
		lastSeenTimeout, _ := cmd.Flags().GetInt64("last-seen-timeout")
		metricsAddr, _ := cmd.Flags().GetString("metrics-address")

		if err := os.MkdirAll(homeRoot, 0o755); err != nil {
			return fmt.Errorf("agent: create home root %s: %w", homeRoot, err)
		}

		pm := agent.NewProcessManager(addressIndex, homeRoot)

		selfPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("agent: resolve own executable: %w", err)
		}

		basePort := 7900
		workerPort := func(workerIndex int) string {
			return fmt.Sprintf("127.0.0.1:%d", basePort+workerIndex)
		}

		var serverCreds, upstreamCreds credentials.TransportCredentials
		if joinToken != "" {
			selfID := address.NewAgentAddress(addressIndex).String()
			dnsNames, ips := sansForBindAddr(bindAddr)
			serverCreds, upstreamCreds, err = enrollWithCoordinator(coordinatorEnrollAddr, joinToken, "agent", selfID, dnsNames, ips)
			if err != nil {
				return fmt.Errorf("agent: enroll with coordinator: %w", err)
			}
			log.Logger.Info().Str("address", selfID).Msg("agent: enrolled for mTLS")
		}

		conn := agent.NewConnector(addressIndex, bindAddr, pm, workerPort, coordinatorAddr, upstreamCreds)

		monitor := agent.NewFailureMonitor(pm, bindAddr, "", lastSeenTimeout, func(f benchtypes.FailureOperation) bool {
			return conn.ReportFailure(cmd.Context(), f)
		})
		monitor.Start()
		defer monitor.Stop()

		lis, err := net.Listen("tcp", bindAddr)
		if err != nil {
			return fmt.Errorf("agent: listen on %s: %w", bindAddr, err)
		}
		srv := bus.NewServer(serverCreds)
		bus.RegisterBusServer(srv, conn)
		go func() {
			if err := srv.Serve(lis); err != nil {
				log.Logger.Error().Err(err).Msg("agent: bus server stopped")
			}
		}()
		defer srv.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("bus", true, "listening on "+bindAddr)
		startMetricsServer(metricsAddr)

		for i := 0; i < workerCount; i++ {
			port := basePort + i + 1
			w, err := pm.Launch(agent.LaunchRequest{
				Kind:        benchtypes.WorkerMember,
				VersionSpec: Version,
				Command:     selfPath,
				Args: []string{
					"worker", "run",
					"--workload", workload,
					"--bind-address", fmt.Sprintf("127.0.0.1:%d", port),
					"--agent-address", bindAddr,
					"--log-level", rootLogLevel(cmd),
				},
			})
			if err != nil {
				return fmt.Errorf("agent: launch worker %d: %w", i, err)
			}
			log.Logger.Info().Int("workerIndex", w.Data.WorkerIndex).Str("home", w.HomeDir).Msg("agent: worker launched")
		}
		monitor.StartTimeoutDetection(time.Now())

		log.Logger.Info().Int("addressIndex", addressIndex).Int("workers", workerCount).Msg("agent: running")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Logger.Warn().Msg("agent: shutting down")

		for _, w := range pm.GetWorkerProcesses() {
			if err := pm.Shutdown(w.Data.WorkerIndex, agent.DefaultTerminateWait); err != nil {
				log.Logger.Warn().Err(err).Int("workerIndex", w.Data.WorkerIndex).Msg("agent: worker shutdown did not complete cleanly")
			}
		}
		return nil
	},
}

func rootLogLevel(cmd *cobra.Command) string {
	level, _ := cmd.Root().PersistentFlags().GetString("log-level")
	return level
}

func init() {
	agentCmd.AddCommand(agentRunCmd)

	agentRunCmd.Flags().String("bind-address", "0.0.0.0:7900", "Address this Agent's bus server listens on")
	agentRunCmd.Flags().Int("address-index", 1, "This Agent's 1-based SimulatorAddress index")
	agentRunCmd.Flags().String("coordinator-address", "", "The Coordinator's mTLS bus address")
	agentRunCmd.Flags().String("coordinator-enroll-address", "", "The Coordinator's insecure enroll address; required when --join-token is set")
	agentRunCmd.Flags().String("join-token", "", "Join token to enroll for an mTLS certificate; empty runs without mTLS")
	agentRunCmd.Flags().String("home-root", "./warrenbench-agent-data", "Root directory under which each Worker gets its own home")
	agentRunCmd.Flags().Int("workers", 1, "Number of Worker child processes to launch")
	agentRunCmd.Flags().String("workload", "noop", "Workload class to launch every Worker with")
	agentRunCmd.Flags().Int64("last-seen-timeout", 0, "Seconds of Worker inactivity before a WORKER_TIMEOUT failure fires (0 disables)")
	agentRunCmd.MarkFlagRequired("coordinator-address")
}
