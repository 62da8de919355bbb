package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/config"
	"github.com/cuemby/warrenbench/pkg/coordinator"
	"github.com/cuemby/warrenbench/pkg/failurecontainer"
	"github.com/cuemby/warrenbench/pkg/log"
	"github.com/cuemby/warrenbench/pkg/metrics"
	"github.com/cuemby/warrenbench/pkg/perfstats"
	"github.com/cuemby/warrenbench/pkg/registry"
	"github.com/cuemby/warrenbench/pkg/remoteclient"
	"github.com/cuemby/warrenbench/pkg/security"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Coordinator operations",
}

var coordinatorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a test suite against a fleet of Agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		agentsFile, _ := cmd.Flags().GetString("agents-file")
		suiteFile, _ := cmd.Flags().GetString("suite")
		bindAddr, _ := cmd.Flags().GetString("bind-address")
		enrollAddr, _ := cmd.Flags().GetString("enroll-address")
		joinToken, _ := cmd.Flags().GetString("join-token")
		metricsAddr, _ := cmd.Flags().GetString("metrics-address")

		entries, err := config.LoadAgentsFile(agentsFile)
		if err != nil {
			return err
		}
		suite, err := config.LoadSuite(suiteFile)
		if err != nil {
			return err
		}

		reg := registry.New()
		for _, a := range config.ToAgentData(entries) {
			reg.AddAgent(a)
		}

		fc := failurecontainer.New()
		defer fc.Close()
		perf := perfstats.New()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("registry", true, "seeded")
		metrics.RegisterComponent("bus", false, "starting")

		if joinToken == "" {
			joinToken, err = security.GenerateJoinToken()
			if err != nil {
				return fmt.Errorf("coordinator: generate join token: %w", err)
			}
			log.Logger.Warn().Str("joinToken", joinToken).Msg("coordinator: no --join-token given, generated one; Agents must be started with this value")
		}

		ca := security.NewCertAuthority()
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("coordinator: initialize CA: %w", err)
		}
		enroller := security.NewEnroller(ca, joinToken)

		dnsNames, ips := sansForBindAddr(bindAddr)
		selfCert, err := ca.IssueNodeCertificate("C", "coordinator", dnsNames, ips)
		if err != nil {
			return fmt.Errorf("coordinator: issue own certificate: %w", err)
		}
		certPEM, keyPEM, caPEM, err := security.EncodeCertificate(selfCert, ca.GetRootCACert())
		if err != nil {
			return fmt.Errorf("coordinator: encode own certificate: %w", err)
		}
		serverCreds, clientCreds, err := nodeCredentials(&benchtypes.EnrollCertificate{CertPEM: certPEM, KeyPEM: keyPEM, CAPEM: caPEM})
		if err != nil {
			return fmt.Errorf("coordinator: build TLS credentials: %w", err)
		}

		enrollLis, err := net.Listen("tcp", enrollAddr)
		if err != nil {
			return fmt.Errorf("coordinator: listen on %s: %w", enrollAddr, err)
		}
		enrollSrv := bus.NewServer(nil)
		bus.RegisterBusServer(enrollSrv, coordinator.NewInboundServer(fc, perf, enroller))
		go func() {
			if err := enrollSrv.Serve(enrollLis); err != nil {
				log.Logger.Error().Err(err).Msg("coordinator: enroll server stopped")
			}
		}()
		defer enrollSrv.Stop()
		log.Logger.Info().Str("address", enrollAddr).Msg("coordinator: enroll listener open (insecure, join-token gated)")

		lis, err := net.Listen("tcp", bindAddr)
		if err != nil {
			return fmt.Errorf("coordinator: listen on %s: %w", bindAddr, err)
		}
		srv := bus.NewServer(serverCreds)
		bus.RegisterBusServer(srv, coordinator.NewInboundServer(fc, perf, enroller))
		go func() {
			if err := srv.Serve(lis); err != nil {
				log.Logger.Error().Err(err).Msg("coordinator: bus server stopped")
			}
		}()
		defer srv.Stop()
		metrics.RegisterComponent("bus", true, "listening on "+bindAddr)
		log.Logger.Info().Str("address", bindAddr).Int("agents", len(entries)).Msg("coordinator: bus listening (mTLS)")

		metricsCollector := metrics.NewCollector(reg)
		metricsCollector.Start()
		defer metricsCollector.Stop()
		perfCollector := perfstats.NewCollector(perf)
		perfCollector.Start()
		defer perfCollector.Stop()

		startMetricsServer(metricsAddr)

		conn := remoteclient.NewConnector("C", reg, clientCreds)
		co := coordinator.New(reg, conn, fc)

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Logger.Warn().Msg("coordinator: interrupted, cancelling suite run")
			cancel()
		}()

		result, err := co.RunTestSuite(ctx, suite)
		if err != nil {
			return err
		}

		for _, r := range result.Results {
			status := "passed"
			if r.Failed {
				status = "failed"
			}
			log.Logger.Info().Str("testId", r.TestID).Str("status", status).Msg("coordinator: test complete")
		}
		log.Logger.Info().Int("failures", fc.Count()).Bool("aborted", result.Aborted).Msg("coordinator: suite complete")

		if result.AnyFailed() || result.Aborted {
			return fmt.Errorf("coordinator: suite %s completed with failures", suite.ID)
		}
		return nil
	},
}

func init() {
	coordinatorCmd.AddCommand(coordinatorRunCmd)

	coordinatorRunCmd.Flags().String("agents-file", "", "Path to a newline-delimited agents file (publicIp[,privateIp] per line)")
	coordinatorRunCmd.Flags().String("suite", "", "Path to a YAML test suite descriptor")
	coordinatorRunCmd.Flags().String("bind-address", "0.0.0.0:7800", "Address the Coordinator's mTLS bus server listens on for Agent reports")
	coordinatorRunCmd.Flags().String("enroll-address", "0.0.0.0:7801", "Address the Coordinator's insecure, join-token-gated enrollment listener binds to")
	coordinatorRunCmd.Flags().String("join-token", "", "Shared secret Agents present to enroll for an mTLS certificate (generated and logged if empty)")
	coordinatorRunCmd.MarkFlagRequired("agents-file")
	coordinatorRunCmd.MarkFlagRequired("suite")
}
