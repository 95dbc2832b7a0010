package types

import (
	"fmt"
	"time"
)

type AppConfig struct {
	DebugMode  bool             `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool             `key:"prettyLogs" json:"pretty_logs"`
	Database   DatabaseConfig   `key:"database" json:"database"`
	Map        MapConfig        `key:"map" json:"map"`
	HTTP       HTTPConfig       `key:"http" json:"http"`
	Monitoring MonitoringConfig `key:"monitoring" json:"monitoring"`
}

type DatabaseConfig struct {
	Redis   RedisConfig   `key:"redis" json:"redis"`
	Connect ConnectConfig `key:"connect" json:"connect"`
}

type RedisMode string

var (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Addrs              []string      `key:"addrs" json:"addrs"`
	Mode               RedisMode     `key:"mode" json:"mode"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	MinIdleConns       int           `key:"minIdleConns" json:"min_idle_conns"`
	MaxIdleConns       int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxIdleTime    time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	ConnMaxLifetime    time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRedirects       int           `key:"maxRedirects" json:"max_redirects"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	RouteByLatency     bool          `key:"routeByLatency" json:"route_by_latency"`
}

// ConnectConfig controls how many times a client is dialed before giving up.
// It only applies while establishing the connection; commands are never retried
// by the map itself.
type ConnectConfig struct {
	Retries  uint64        `key:"retries" json:"retries"`
	Interval time.Duration `key:"interval" json:"interval"`
}

type SwapMode string

var (
	// Read the previous value with HGET, then write. Not atomic.
	SwapModeNone SwapMode = "none"
	// WATCH the hash and write inside MULTI/EXEC.
	SwapModeOptimistic SwapMode = "optimistic"
	// Hold a distributed lock around the read and the write.
	SwapModeLock SwapMode = "lock"
)

type MapConfig struct {
	HashKey        string        `key:"hashKey" json:"hash_key"`
	SwapMode       SwapMode      `key:"swapMode" json:"swap_mode"`
	MaxSwapRetries int           `key:"maxSwapRetries" json:"max_swap_retries"`
	LockTtl        time.Duration `key:"lockTtl" json:"lock_ttl"`
	LockRetries    int           `key:"lockRetries" json:"lock_retries"`
}

type HTTPConfig struct {
	Host             string `key:"host" json:"host"`
	Port             int    `key:"port" json:"port"`
	EnablePrettyLogs bool   `key:"enablePrettyLogs" json:"enable_pretty_logs"`
}

func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type MonitoringConfig struct {
	Prometheus PrometheusConfig `key:"prometheus" json:"prometheus"`
}

type PrometheusConfig struct {
	Enabled bool `key:"enabled" json:"enabled"`
	Port    int  `key:"port" json:"port"`
}
