// Package config provides configuration loading and validation for Corvid
// using Viper. Configuration is loaded from YAML files with automatic
// environment variable binding.
//
// Environment variables use the CORVID_ prefix and underscore-separated
// keys:
//   - CORVID_SERVER_UDP_ADDR -> server.udp_addr
//   - CORVID_LOGGING_LEVEL -> logging.level
//   - CORVID_API_ENABLED -> api.enabled
package config

import (
	"os"
	"strings"
)

// ServerConfig contains frontend bind settings.
type ServerConfig struct {
	UDPAddr      string `yaml:"udp_addr"      mapstructure:"udp_addr"`
	TCPAddr      string `yaml:"tcp_addr"      mapstructure:"tcp_addr"`
	EnableUDP    bool   `yaml:"enable_udp"    mapstructure:"enable_udp"`
	EnableTCP    bool   `yaml:"enable_tcp"    mapstructure:"enable_tcp"`
	QueryTimeout string `yaml:"query_timeout" mapstructure:"query_timeout"` // e.g. "4s"
}

// UpstreamConfig is one upstream server entry for a zone, in the shape the
// config file (or the built-in default) uses before it's resolved into a
// zones.UpstreamSpec.
type UpstreamConfig struct {
	// Kind is "udp" or "https".
	Kind string `yaml:"kind" mapstructure:"kind" json:"kind"`
	// Addr is host:port, used when Kind is "udp".
	Addr string `yaml:"addr" mapstructure:"addr" json:"addr,omitempty"`
	// URL is the request URL, used when Kind is "https".
	URL string `yaml:"url" mapstructure:"url" json:"url,omitempty"`
	// Host optionally overrides the HTTP Host header (not the TLS SNI) for "https".
	Host string `yaml:"host" mapstructure:"host" json:"host,omitempty"`
}

// ZoneConfig is one configured zone: a name and its ordered upstream list.
type ZoneConfig struct {
	Name      string           `yaml:"name"      mapstructure:"name"      json:"name"`
	Upstreams []UpstreamConfig `yaml:"upstreams" mapstructure:"upstreams" json:"upstreams"`
}

// UpstreamTimeouts contains transport-level timeouts shared by every
// upstream client, regardless of which zone dispatched to it.
type UpstreamTimeouts struct {
	UDPTimeout string `yaml:"udp_timeout" mapstructure:"udp_timeout"` // e.g. "3s"
	TCPTimeout string `yaml:"tcp_timeout" mapstructure:"tcp_timeout"` // e.g. "5s"
	DoHTimeout string `yaml:"doh_timeout" mapstructure:"doh_timeout"` // e.g. "5s"
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"             json:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"        json:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"       json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"      json:"extra_fields,omitempty"`
}

// APIConfig contains management API settings.
//
// Note: APIKey is intentionally treated as a secret and should not be
// returned by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// StoreConfig points at the persisted zone database backing the
// management API's zone CRUD surface.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig     `yaml:"server"   mapstructure:"server"`
	Zones    []ZoneConfig     `yaml:"zones"    mapstructure:"zones"`
	Upstream UpstreamTimeouts `yaml:"upstream" mapstructure:"upstream"`
	Logging  LoggingConfig    `yaml:"logging"  mapstructure:"logging"`
	API      APIConfig        `yaml:"api"      mapstructure:"api"`
	Store    StoreConfig      `yaml:"store"    mapstructure:"store"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("CORVID_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable
// overrides. This is the main entry point for loading configuration.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (CORVID_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
