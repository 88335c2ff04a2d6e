package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"burger-house/internal/config"
	"burger-house/internal/delivery"
	"burger-house/internal/fanout"
	"burger-house/internal/httpapi"
	"burger-house/internal/ledger"
	"burger-house/internal/logging"
	"burger-house/internal/mq"
	"burger-house/internal/notify"
	"burger-house/internal/orders"
	"burger-house/internal/storage"
	"burger-house/internal/storage/memory"
	"burger-house/internal/storage/postgres"
)

func main() {
	mode := flag.String("mode", "api", "api | notifier | all")
	port := flag.Int("port", 0, "http port, overrides HTTP_PORT")
	flag.Parse()

	lg := logging.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		lg.Error("config_load_failed", err, nil)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		lg.Error("store_connect_failed", err, nil)
		os.Exit(1)
	}
	defer cleanup()

	// The broker is optional for the API: without one, status events are
	// dropped and push notifications simply never fire.
	var client *mq.Client
	var events orders.Events = orders.NopEvents{}
	if cfg.Rabbit.Host != "" {
		client, err = mq.Dial(cfg.Rabbit)
		if err != nil {
			lg.Error("rabbitmq_connect_failed", err, nil)
			os.Exit(1)
		}
		defer client.Close()
		events = mq.NewPublisher(client)
	} else {
		lg.Warn("rabbitmq_disabled", map[string]any{"reason": "RABBITMQ_HOST not set"})
	}

	switch *mode {
	case "api":
		if err := runAPI(ctx, cfg, store, events); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "notifier":
		if client == nil {
			fmt.Fprintln(os.Stderr, "notifier mode requires RABBITMQ_HOST")
			os.Exit(2)
		}
		if err := runNotifier(ctx, cfg, store, client); err != nil && ctx.Err() == nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "all":
		if client != nil {
			go func() {
				if err := runNotifier(ctx, cfg, store, client); err != nil && ctx.Err() == nil {
					lg.Error("notifier_stopped", err, nil)
				}
			}()
		}
		if err := runAPI(ctx, cfg, store, events); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode must be api, notifier or all")
		os.Exit(2)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		pg, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, store storage.Store, events orders.Events) error {
	fee, err := decimal.NewFromString(cfg.Orders.DeliveryFee)
	if err != nil {
		return fmt.Errorf("parse ORDERS_DELIVERY_FEE: %w", err)
	}

	lg := ledger.New(store)
	builder := orders.NewBuilder(store, lg, orders.FixedFee{Amount: fee}, events,
		orders.BuilderConfig{StrictItems: cfg.Orders.StrictItems})
	fsm := orders.NewStateMachine(store, lg, events)
	tracker := delivery.NewTracker(store, events)

	streamOpts := fanout.Options{
		Tick:          time.Duration(cfg.Stream.TickMillis) * time.Millisecond,
		Lifetime:      time.Duration(cfg.Stream.LifetimeSeconds) * time.Second,
		Heartbeat:     time.Duration(cfg.Stream.HeartbeatSeconds) * time.Second,
		SnapshotLimit: cfg.Stream.SnapshotLimit,
	}
	kitchenStream := fanout.NewStreamer(fanout.OrderSource{Orders: builder}, streamOpts)
	deliveryStream := fanout.NewStreamer(fanout.DeliverySource{Deliveries: tracker}, streamOpts)

	srv := httpapi.NewServer(builder, fsm, lg, tracker, store.SKUs(), store.Subscriptions(), kitchenStream, deliveryStream)
	return srv.Run(ctx, cfg.HTTP.Port)
}

func runNotifier(ctx context.Context, cfg *config.Config, store storage.Store, client *mq.Client) error {
	transport := notify.NewHTTPTransport(time.Duration(cfg.Push.TimeoutSeconds) * time.Second)
	dispatcher := notify.NewDispatcher(store.Subscriptions(), transport)
	return notify.NewSubscriber(client, dispatcher).Run(ctx)
}
