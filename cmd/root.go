package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pricefeed-sidecar",
	Short: "Verifies attested price updates and serves them from a bounded in-memory cache",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().Uint64(config.CacheSize, config.DefaultCacheSize, `Number of most recent slots retained per feed`)

	rootCmd.PersistentFlags().Duration(config.ReadinessStalenessThreshold, config.DefaultReadinessStalenessThreshold, `Maximum time since the last completed update for the service to be ready`)
	rootCmd.PersistentFlags().Uint64(config.ReadinessMaxAllowedSlotLag, config.DefaultReadinessMaxAllowedSlotLag, `Maximum number of slots the latest completed slot may trail the latest observed one`)
	rootCmd.PersistentFlags().Duration(config.ReadinessRefreshInterval, 5*time.Second, `How often the grpc health status is refreshed`)

	rootCmd.PersistentFlags().String(config.BenchmarksEndpoint, "", `Historical price service used when the cache cannot answer, e.g. "https://benchmarks.example.com"`)
	rootCmd.PersistentFlags().Duration(config.BenchmarksTimeout, 10*time.Second, `Timeout for benchmarks requests`)

	rootCmd.PersistentFlags().String(config.MetadataStore, string(config.MetadataStore_Memory), `Where feed metadata is kept (memory, postgres)`)
	rootCmd.PersistentFlags().String(config.MetadataFile, "", `json, yaml or toml file used to seed feed metadata at startup`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "sidecar", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "pricefeeds", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL ssl mode (disable, require, verify-ca, verify-full)`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLCert, "", `PostgreSQL client certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLKey, "", `PostgreSQL client key`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLRootCert, "", `PostgreSQL root certificate`)

	rootCmd.PersistentFlags().Int(config.RpcGrpcPort, 7100, `gRPC port`)
	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http port serving /live and /ready`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Duration(config.ShutdownWait, 5*time.Second, `Time to let in-flight updates settle before exiting`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
