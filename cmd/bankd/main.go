package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"bankmesh.org/internal/auth"
	"bankmesh.org/internal/config"
	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/events"
	"bankmesh.org/internal/httpapi"
	"bankmesh.org/internal/ledger"
	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/scheduler"
	"bankmesh.org/internal/store/pg"
	"bankmesh.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("BANKMESH_CONFIG"), "path to YAML config")
	flag.Parse()

	log := obs.Component("bankd")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := obs.SetLevel(cfg.Log.Level); err != nil {
		log.WithError(err).Fatal("log level")
	}
	// Инициализация observability (метрики, build_info).
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := stream.New()
	eng := engine.New(
		engine.WithPublisher(bus),
		engine.WithPromoBalance(ledger.Money(cfg.Ledger.PromoBalance)),
		engine.WithDepositRate(cfg.Ledger.DepositRate),
	)
	for _, b := range cfg.Banks {
		info := engine.BankInfo{BIK: ledger.BankID(b.BIK), Name: b.Name, Address: b.Address}
		if err := eng.AddBank(info); err != nil {
			log.WithError(err).WithField("bik", b.BIK).Fatal("add bank")
		}
	}

	users := auth.NewDirectory(cfg.Auth.BcryptCost)
	for _, u := range cfg.Users {
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			log.WithError(err).WithField("login", u.Login).Fatal("seed user")
		}
		if err := users.Add(u.Login, u.Password, role); err != nil {
			log.WithError(err).WithField("login", u.Login).Fatal("seed user")
		}
	}
	tokens, err := auth.NewIssuer(cfg.Auth.Secret, auth.WithIssuer(cfg.Auth.Issuer), auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		log.WithError(err).Fatal("token issuer")
	}

	var (
		wg      sync.WaitGroup
		probe   httpapi.ReadyProbe
		apiOpts = []httpapi.Option{
			httpapi.WithStream(bus),
			httpapi.WithRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
			httpapi.WithAllowedOrigins(cfg.HTTP.AllowOrigins),
		}
		store *pg.Store
	)
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// Хранилище снапшотов и архив переводов (если задан DSN).
	if cfg.Postgres.DSN != "" {
		store = openStore(ctx, log, cfg.Postgres, eng)
		probe.Store = store
		apiOpts = append(apiOpts, httpapi.WithArchive(store))

		archived := bus.Subscribe(ctx)
		run(func() { store.RunArchiver(ctx, archived) })
		job := scheduler.NewSnapshotJob(eng, store, cfg.Scheduler.SnapshotInterval)
		run(func() { job.Run(context.Background()) })
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.WithError(err).Fatal("kafka producer")
		}
		fwd := events.NewForwarder(producer, cfg.Kafka.Topic)
		forwarded := bus.Subscribe(ctx)
		run(func() {
			fwd.Run(ctx, forwarded)
			if err := fwd.Close(); err != nil {
				log.WithError(err).Warn("close kafka producer")
			}
		})
	}

	sched := scheduler.New(eng, cfg.Scheduler.Interval)
	run(func() { sched.Run(ctx) })

	api := httpapi.New(probe, version, eng, users, tokens, apiOpts...)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "version": version}).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http listen")
		}
	}()

	grpcSrv := httpapi.NewGRPCServer(probe)
	go serveGRPC(log, grpcSrv, cfg.GRPC.Addr)

	obs.SetReady(true)
	<-ctx.Done()
	log.Info("shutting down")
	obs.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()

	// Close triggers the final snapshot before the store goes away.
	eng.Close()
	wg.Wait()
	if store != nil {
		_ = store.Close()
	}
	log.Info("stopped")
}

func openStore(ctx context.Context, log *logrus.Entry, cfg config.PostgresConfig, eng *engine.Engine) *pg.Store {
	store, err := pg.Open(cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		log.WithError(err).Fatal("open postgres")
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		log.WithError(err).Fatal("migrate")
	}
	if len(applied) > 0 {
		log.WithField("migrations", applied).Info("migrations applied")
	}

	snap, err := store.Latest(ctx)
	switch {
	case errors.Is(err, pg.ErrNoSnapshot):
		log.Info("no snapshot found, starting empty")
	case err != nil:
		log.WithError(err).Fatal("load snapshot")
	default:
		if err := eng.Import(snap); err != nil {
			log.WithError(err).Fatal("restore snapshot")
		}
	}
	return store
}

func serveGRPC(log *logrus.Entry, srv *grpc.Server, addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("grpc listen")
	}
	log.WithField("addr", addr).Info("grpc listening")
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		log.WithError(err).Error("grpc serve")
	}
}
