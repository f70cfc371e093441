package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tierwatch/tierwatch/internal/config"
	"github.com/tierwatch/tierwatch/internal/infra/redisdecimals"
	"github.com/tierwatch/tierwatch/internal/infra/solanarpc"
	"github.com/tierwatch/tierwatch/internal/infra/solanastream"
	"github.com/tierwatch/tierwatch/internal/mintcache"
	"github.com/tierwatch/tierwatch/internal/notify"
	"github.com/tierwatch/tierwatch/internal/pkg/logger"
	"github.com/tierwatch/tierwatch/internal/pkg/telemetry"
	"github.com/tierwatch/tierwatch/internal/settings"
	"github.com/tierwatch/tierwatch/internal/stream"
)

// runCommand returns the CLI command that starts the full monitoring
// pipeline: decoding, classification, policy evaluation, and notification
// dispatch against the upstream transaction feed. It runs until it
// receives an interrupt or termination signal, or the Stream Driver gives
// up after persistent authentication failure.
func runCommand() *cli.Command {
	return &cli.Command{
		Name:        "run",
		Description: "Starts the monitoring pipeline and runs until interrupted.",
		Usage:       "Loads the policy config, connects to the Solana RPC endpoint, and dispatches notifications until Ctrl+C.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Path to the policy configuration file (programs, thresholds, notification destinations)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "rpc-endpoint",
				Usage:    "Solana JSON-RPC endpoint to poll for transactions",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "rpc-auth-token",
				Usage: "Optional API key appended to the RPC endpoint as an api-key query parameter",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, c.String("config"), c.String("rpc-endpoint"), c.String("rpc-auth-token"))
		},
	}
}

func run(ctx context.Context, configPath, rpcEndpoint, rpcAuthToken string) error {
	s, err := settings.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if err := logger.Init(logger.WithLevel(s.LogLevel)); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	if s.OTLPEndpoint != "" {
		os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", s.OTLPEndpoint)
	}
	telemetryShutdown, err := telemetry.Init(ctx, "tierwatch")
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer telemetryShutdown(ctx)

	policyConfig, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading policy config: %w", err)
	}

	mintDecimals, err := buildMintDecimals(ctx, s, rpcEndpoint, rpcAuthToken)
	if err != nil {
		return fmt.Errorf("building mint decimals cache: %w", err)
	}

	subscriber := solanastream.NewSubscriber(withAuthToken(rpcEndpoint, rpcAuthToken), solanastream.WithPollInterval(s.PollInterval))
	notifier := notify.NewSet(policyConfig.Notifications)

	svc, err := stream.New(policyConfig, subscriber, mintDecimals, notifier,
		stream.WithBackoff(s.BackoffInitial, s.BackoffMax),
		stream.WithDispatchConcurrency(s.DispatchConcurrency),
	)
	if err != nil {
		return fmt.Errorf("building stream service: %w", err)
	}

	done, err := svc.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting stream service: %w", err)
	}
	defer svc.Close()

	quit := make(chan os.Signal, 1)
	defer close(quit)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		return nil
	case err := <-done:
		return err
	}
}

// buildMintDecimals wires the read-through mint-decimals cache: an RPC
// fetch at the bottom, optionally durable in Redis, coalesced and cached
// in memory on top.
func buildMintDecimals(ctx context.Context, s settings.Settings, rpcEndpoint, rpcAuthToken string) (*mintcache.Cache, error) {
	var fetcher mintcache.Fetcher = solanarpc.NewClient(withAuthToken(rpcEndpoint, rpcAuthToken))

	if s.UsesRedis() {
		conn, err := redisdecimals.NewClient(ctx, s.RedisAddr, s.RedisUsername, s.RedisPassword, s.RedisDB)
		if err != nil {
			return nil, err
		}
		fetcher = redisdecimals.MaybeWrap(conn, fetcher)
	}

	return mintcache.New(fetcher), nil
}

// withAuthToken appends token as the api-key query parameter real Solana
// RPC providers (e.g. Helius) expect, when one was supplied.
func withAuthToken(endpoint, token string) string {
	if token == "" {
		return endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}

	q := u.Query()
	q.Set("api-key", token)
	u.RawQuery = q.Encode()
	return u.String()
}
