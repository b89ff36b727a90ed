// Package main provides gatewayd, the cryptocurrency gateway bridge daemon.
package main

import (
	"context"
	"os"
	"time"

	"github.com/fincubator/bitshares-gateway/internal/bookerrpc"
	"github.com/fincubator/bitshares-gateway/internal/broadcaster"
	"github.com/fincubator/bitshares-gateway/internal/chainadapter/memchain"
	"github.com/fincubator/bitshares-gateway/internal/confirmer"
	"github.com/fincubator/bitshares-gateway/internal/gwconfig"
	"github.com/fincubator/bitshares-gateway/internal/health"
	"github.com/fincubator/bitshares-gateway/internal/store"
	"github.com/fincubator/bitshares-gateway/internal/supervisor"
	"github.com/fincubator/bitshares-gateway/internal/validator"
	"github.com/fincubator/bitshares-gateway/internal/watcher"
	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

// blockTime is the simulated chain block time for the in-process reference
// adapter (internal/chainadapter/memchain). A production build links a real
// chain SDK behind chainadapter.Adapter instead.
const blockTime = 3 * time.Second

// configFileDefault is the fixed gateway.yml location. Override with the GATEWAY_CONFIG_FILE env var.
const configFileDefault = "config/gateway.yml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-version" {
		os.Stdout.WriteString("gatewayd " + version + " (commit: " + commit + ")\n")
		os.Exit(0)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	log := logging.New(&logging.Config{Level: logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	configFile := os.Getenv("GATEWAY_CONFIG_FILE")
	if configFile == "" {
		configFile = configFileDefault
	}

	file, err := gwconfig.LoadFile(configFile)
	if err != nil {
		log.Fatal("failed to load gateway.yml", "err", err)
	}
	env := gwconfig.LoadEnv()

	minDeposit, maxDeposit, minWithdrawal, maxWithdrawal, err := file.Thresholds()
	if err != nil {
		log.Fatal("invalid amount thresholds in gateway.yml", "err", err)
	}

	st, err := store.New(env.Database)
	if err != nil {
		log.Fatal("failed to open store", "err", err)
	}
	defer st.Close()
	log.Info("store initialized", "driver", env.Database.Driver)

	chain := memchain.New(blockTime)
	adapter := memchain.NewAdapter(chain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keysFile := "config/." + file.Account + ".keys"
	if err := adapter.Connect(ctx, file.Nodes, keysFile, file.Account); err != nil {
		log.Fatal("failed to connect to chain", "err", err)
	}
	log.Info("chain adapter connected", "account", file.Account, "nodes", file.Nodes)

	limits := validator.Thresholds{
		GatewayAccount: file.Account,
		Asset:          file.CoreAsset,
		AssetCode:      gwconfig.AssetCode(file.CoreAsset),
		MinDeposit:     minDeposit,
		MaxDeposit:     maxDeposit,
		MinWithdrawal:  minWithdrawal,
		MaxWithdrawal:  maxWithdrawal,
	}
	v := validator.New(adapter, limits)

	requiredConfirmations := gwconfig.RequiredConfirmations()

	bookerTransport, err := bookerrpc.DialWS(ctx, env.BookerWSURL(), log)
	if err != nil {
		log.Fatal("failed to connect to booker", "err", err)
	}
	bookerClient := bookerrpc.NewClient(bookerTransport, log)
	gatewayBookerOrder := bookerrpc.NewGatewayBookerOrder(bookerClient)
	notifier := bookerrpc.NewNotifier(gatewayBookerOrder, requiredConfirmations, log)

	w := watcher.New(file.Account, adapter, st, v, notifier.Notify, log)
	c := confirmer.New(adapter, st, notifier.Notify, blockTime, requiredConfirmations, log)
	b := broadcaster.New(file.Account, adapter, st, log)

	bookerServer := bookerrpc.NewBookerGatewayOrderServer(b, adapter, log)

	healthSrv := health.New(env.HTTPAddr(), log)

	sup := supervisor.New(log)
	sup.Add(supervisor.Task{Name: "watch_account_history", Run: w.Run, Restart: true})
	sup.Add(supervisor.Task{Name: "watch_unconfirmed_operations", Run: c.Run, Restart: true})
	sup.Add(supervisor.Task{Name: "broadcast_transactions", Run: b.Run, Restart: true})
	sup.Add(supervisor.Task{Name: "rpc_server.poll", Run: func(ctx context.Context) error {
		return serveBookerRPC(ctx, env, bookerServer, log)
	}, Restart: true})
	sup.Add(supervisor.Task{Name: "http_health", Run: healthSrv.Run, Restart: true})

	healthSrv.Register("watch_account_history", func() bool { return sup.IsAlive("watch_account_history") })
	healthSrv.Register("watch_unconfirmed_operations", func() bool { return sup.IsAlive("watch_unconfirmed_operations") })
	healthSrv.Register("broadcast_transactions", func() bool { return sup.IsAlive("broadcast_transactions") })
	healthSrv.Register("rpc_server.poll", func() bool { return sup.IsAlive("rpc_server.poll") })

	log.Info("gatewayd starting", "version", version, "account", file.Account, "asset", file.CoreAsset)
	_ = sup.Run(ctx)
	log.Info("gatewayd stopped")
}

// serveBookerRPC binds the ZeroMQ REP endpoint carrying booker-initiated
// calls and dispatches them against bookerServer until ctx is cancelled.
func serveBookerRPC(ctx context.Context, env gwconfig.Env, bookerServer *bookerrpc.BookerGatewayOrderServer, log *logging.Logger) error {
	rep, err := bookerrpc.BindZMQRep(env.ZMQAddr(), log)
	if err != nil {
		return err
	}
	defer rep.Close()

	dispatcher := bookerrpc.NewDispatcher(rep, log)
	bookerServer.Register(dispatcher)

	return rep.Serve(ctx)
}
