package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "PRICEFEED_SIDECAR"

type MetadataStoreType string

const (
	MetadataStore_Memory   MetadataStoreType = "memory"
	MetadataStore_Postgres MetadataStoreType = "postgres"
)

// Flag and viper key names. Flags are kebab-case; viper keys are the snake_case equivalent.
const (
	Debug = "debug"

	CacheSize = "cache.size"

	ReadinessStalenessThreshold = "readiness.staleness-threshold"
	ReadinessMaxAllowedSlotLag  = "readiness.max-allowed-slot-lag"
	ReadinessRefreshInterval    = "readiness.refresh-interval"

	BenchmarksEndpoint = "benchmarks.endpoint"
	BenchmarksTimeout  = "benchmarks.timeout"

	MetadataStore = "metadata.store"
	MetadataFile  = "metadata.file"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	RpcGrpcPort = "rpc.grpc-port"
	RpcHttpPort = "rpc.http-port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	ShutdownWait = "shutdown-wait"
)

const (
	DefaultCacheSize                   = 1000
	DefaultReadinessStalenessThreshold = 30 * time.Second
	// 10 slots is almost 5 seconds.
	DefaultReadinessMaxAllowedSlotLag = 10
)

type CacheConfig struct {
	Size uint64
}

type ReadinessConfig struct {
	StalenessThreshold time.Duration
	MaxAllowedSlotLag  uint64
	RefreshInterval    time.Duration
}

type BenchmarksConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type MetadataConfig struct {
	Store MetadataStoreType
	// File optionally seeds the store with feed metadata at startup.
	File string
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type RpcConfig struct {
	GrpcPort int
	HttpPort int
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug            bool
	CacheConfig      CacheConfig
	ReadinessConfig  ReadinessConfig
	BenchmarksConfig BenchmarksConfig
	MetadataConfig   MetadataConfig
	DatabaseConfig   DatabaseConfig
	RpcConfig        RpcConfig
	DataDogConfig    DataDogConfig
	PrometheusConfig PrometheusConfig
	ShutdownWait     time.Duration
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func parseMetadataStoreType(s string) MetadataStoreType {
	switch MetadataStoreType(strings.ToLower(s)) {
	case MetadataStore_Postgres:
		return MetadataStore_Postgres
	default:
		return MetadataStore_Memory
	}
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		CacheConfig: CacheConfig{
			Size: viper.GetUint64(normalizeFlagName(CacheSize)),
		},

		ReadinessConfig: ReadinessConfig{
			StalenessThreshold: viper.GetDuration(normalizeFlagName(ReadinessStalenessThreshold)),
			MaxAllowedSlotLag:  viper.GetUint64(normalizeFlagName(ReadinessMaxAllowedSlotLag)),
			RefreshInterval:    viper.GetDuration(normalizeFlagName(ReadinessRefreshInterval)),
		},

		BenchmarksConfig: BenchmarksConfig{
			Endpoint: viper.GetString(normalizeFlagName(BenchmarksEndpoint)),
			Timeout:  viper.GetDuration(normalizeFlagName(BenchmarksTimeout)),
		},

		MetadataConfig: MetadataConfig{
			Store: parseMetadataStoreType(viper.GetString(normalizeFlagName(MetadataStore))),
			File:  viper.GetString(normalizeFlagName(MetadataFile)),
		},

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		RpcConfig: RpcConfig{
			GrpcPort: viper.GetInt(normalizeFlagName(RpcGrpcPort)),
			HttpPort: viper.GetInt(normalizeFlagName(RpcHttpPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		ShutdownWait: viper.GetDuration(normalizeFlagName(ShutdownWait)),
	}
}

// GetCacheSize returns the retention depth, falling back to the default when unset.
func (c *Config) GetCacheSize() uint64 {
	if c.CacheConfig.Size == 0 {
		return DefaultCacheSize
	}
	return c.CacheConfig.Size
}

func (c *Config) GetReadinessStalenessThreshold() time.Duration {
	if c.ReadinessConfig.StalenessThreshold <= 0 {
		return DefaultReadinessStalenessThreshold
	}
	return c.ReadinessConfig.StalenessThreshold
}

func (c *Config) GetReadinessMaxAllowedSlotLag() uint64 {
	if c.ReadinessConfig.MaxAllowedSlotLag == 0 {
		return DefaultReadinessMaxAllowedSlotLag
	}
	return c.ReadinessConfig.MaxAllowedSlotLag
}

func (c *Config) IsBenchmarksEnabled() bool {
	return c.BenchmarksConfig.Endpoint != ""
}

func (c *Config) Validate() error {
	if c.MetadataConfig.Store == MetadataStore_Postgres && c.DatabaseConfig.Host == "" {
		return fmt.Errorf("metadata store '%s' requires %s to be set", c.MetadataConfig.Store, DatabaseHost)
	}
	if c.PrometheusConfig.Enabled && c.PrometheusConfig.Port == c.RpcConfig.HttpPort {
		return fmt.Errorf("prometheus port %d collides with the http rpc port", c.PrometheusConfig.Port)
	}
	return nil
}
