package cmd

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/clock"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/logger"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/prometheus"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/shutdown"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/version"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/aggregate"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/benchmarks"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/cache"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/eventBus"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/messages"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/metadata"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/postgres"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/sidecar"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the price feed sidecar",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}
		l.Sugar().Infow("Starting price feed sidecar",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
		)

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}
		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		var meta metadata.PriceFeedMeta
		switch cfg.MetadataConfig.Store {
		case config.MetadataStore_Postgres:
			grm, err := postgres.Connect(cfg, l)
			if err != nil {
				l.Sugar().Fatalw("Failed to setup postgres", zap.Error(err))
			}
			meta = metadata.NewPostgresMetadataStore(grm, l)
		default:
			meta = metadata.NewInMemoryMetadataStore(l)
		}

		c, err := cache.NewInMemoryCache(int(cfg.GetCacheSize()), l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create cache", zap.Error(err))
		}

		var bm aggregate.Benchmarks
		if cfg.IsBenchmarksEnabled() {
			bm = benchmarks.NewBenchmarksClient(nil, &benchmarks.BenchmarksConfig{
				Endpoint: cfg.BenchmarksConfig.Endpoint,
				Timeout:  cfg.BenchmarksConfig.Timeout,
			}, sink, l)
		}

		agg := aggregate.NewAggregator(&aggregate.AggregatorConfig{
			CacheSize:                   int(cfg.GetCacheSize()),
			ReadinessStalenessThreshold: cfg.GetReadinessStalenessThreshold(),
			ReadinessMaxAllowedSlotLag:  cfg.GetReadinessMaxAllowedSlotLag(),
		}, c, eventBus.NewEventBus(l), meta, bm, messages.NewWireCodec(), clock.NewSystemClock(), sink, l)

		sc := sidecar.NewSidecar(&sidecar.SidecarConfig{}, cfg, agg, meta, l)
		if err := sc.LoadMetadata(ctx); err != nil {
			l.Sugar().Fatalw("Failed to load price feeds metadata", zap.Error(err))
		}

		rpcChannel := make(chan bool)
		if err := sc.WithRpcServer(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		promChannel := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := pServer.Start(promChannel); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		go sc.Start(ctx)

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			rpcChannel <- true
			if cfg.PrometheusConfig.Enabled {
				promChannel <- true
			}
			sc.ShutdownChan <- true
		}, cfg.ShutdownWait, l)
	},
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
