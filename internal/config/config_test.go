package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func Test_Config(t *testing.T) {
	t.Run("Flag names map to viper keys", func(t *testing.T) {
		assert.Equal(t, "readiness.staleness_threshold", KebabToSnakeCase(ReadinessStalenessThreshold))
		assert.Equal(t, "rpc.grpc_port", KebabToSnakeCase(RpcGrpcPort))
		assert.Equal(t, "database.db_name", KebabToSnakeCase(DatabaseDbName))
	})
	t.Run("Unset values fall back to defaults", func(t *testing.T) {
		cfg := &Config{}

		assert.Equal(t, uint64(DefaultCacheSize), cfg.GetCacheSize())
		assert.Equal(t, DefaultReadinessStalenessThreshold, cfg.GetReadinessStalenessThreshold())
		assert.Equal(t, uint64(DefaultReadinessMaxAllowedSlotLag), cfg.GetReadinessMaxAllowedSlotLag())
		assert.False(t, cfg.IsBenchmarksEnabled())
	})
	t.Run("Configured values override defaults", func(t *testing.T) {
		cfg := &Config{
			CacheConfig: CacheConfig{Size: 5},
			ReadinessConfig: ReadinessConfig{
				StalenessThreshold: time.Minute,
				MaxAllowedSlotLag:  3,
			},
			BenchmarksConfig: BenchmarksConfig{Endpoint: "https://benchmarks.example.com"},
		}

		assert.Equal(t, uint64(5), cfg.GetCacheSize())
		assert.Equal(t, time.Minute, cfg.GetReadinessStalenessThreshold())
		assert.Equal(t, uint64(3), cfg.GetReadinessMaxAllowedSlotLag())
		assert.True(t, cfg.IsBenchmarksEnabled())
	})
	t.Run("NewConfig reads viper keys", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		viper.Set(KebabToSnakeCase(CacheSize), 42)
		viper.Set(KebabToSnakeCase(ReadinessStalenessThreshold), "45s")
		viper.Set(KebabToSnakeCase(MetadataStore), "POSTGRES")
		viper.Set(KebabToSnakeCase(RpcHttpPort), 8080)

		cfg := NewConfig()
		assert.Equal(t, uint64(42), cfg.CacheConfig.Size)
		assert.Equal(t, 45*time.Second, cfg.ReadinessConfig.StalenessThreshold)
		assert.Equal(t, MetadataStore_Postgres, cfg.MetadataConfig.Store)
		assert.Equal(t, 8080, cfg.RpcConfig.HttpPort)
	})
	t.Run("Unknown metadata stores fall back to memory", func(t *testing.T) {
		assert.Equal(t, MetadataStore_Memory, parseMetadataStoreType("redis"))
	})
	t.Run("Validate", func(t *testing.T) {
		cfg := &Config{MetadataConfig: MetadataConfig{Store: MetadataStore_Postgres}}
		assert.Error(t, cfg.Validate())

		cfg.DatabaseConfig.Host = "localhost"
		assert.Nil(t, cfg.Validate())

		cfg.RpcConfig.HttpPort = 2112
		cfg.PrometheusConfig = PrometheusConfig{Enabled: true, Port: 2112}
		assert.Error(t, cfg.Validate())
	})
}
