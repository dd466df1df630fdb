package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Zereker/peerpump"
)

func newRootCmd() *cobra.Command {
	var s settings

	cmd := &cobra.Command{
		Use:   "peernode",
		Short: "Peer-to-peer TCP telemetry node",
		Long: `Run a node that either listens for peers or dials them. Every
connection carries a periodic "temperature" reading in the key;value;end, format.

Examples:
  # Start a listener
  peernode --role listener --address 127.0.0.1:9001

  # Start a sender connected to two listeners
  peernode --role sender --address 127.0.0.1:9001 --address 127.0.0.1:9002`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, s)
		},
	}

	bindFlags(cmd.Flags(), &s)

	return cmd
}

func bindFlags(flags *pflag.FlagSet, s *settings) {
	flags.StringVarP(&s.role, "role", "r", "listener", "node role: listener or sender")
	flags.StringSliceVarP(&s.addresses, "address", "a", nil, "address to listen on or dial (repeatable)")
	flags.DurationVar(&s.interval, "interval", peerpump.DefaultInterval, "interval between generated messages")
	flags.IntVar(&s.queueSize, "queue-size", peerpump.DefaultQueueCapacity, "outbound queue capacity per connection")
	flags.IntVar(&s.maxFrame, "max-frame", peerpump.DefaultMaxFrameSize, "maximum inbound frame size in bytes")
	flags.DurationVar(&s.idleTimeout, "idle-timeout", peerpump.DefaultIdleTimeout, "connection idle timeout")
	flags.DurationVar(&s.dialTimeout, "dial-timeout", peerpump.DefaultDialTimeout, "timeout for each outbound connection attempt")
	flags.StringVar(&s.envFile, "env-file", defaultEnvFile, "dotenv file with PEER_* and LOG_* variables")
	flags.StringVar(&s.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&s.logFormat, "log-format", "text", "log format: text or json")
}

func run(cmd *cobra.Command, s settings) error {
	if err := loadEnvFile(s.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	rc, err := resolve(cmd.Flags(), s, os.LookupEnv)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), rc.logLevel, rc.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	node, err := peerpump.NewNode(rc.config, peerpump.NodeLoggerOption(logger))
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("shutting down node...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return node.Run(ctx)
}
