package config

import (
	"fmt"
	"time"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/zones"
)

// BuildZoneEntries converts the loaded zone configuration into the
// zones.Entry list zones.NewTable expects. Duplicate names and empty
// upstream lists are already rejected by normalizeConfig during Load, so
// this only translates shapes; zones.NewTable re-validates regardless,
// since it must hold for callers that construct entries without going
// through config.Load (e.g. internal/store rebuilding the table on reload).
func BuildZoneEntries(cfg *Config) ([]zones.Entry, error) {
	entries := make([]zones.Entry, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		ups := make([]zones.UpstreamSpec, 0, len(z.Upstreams))
		for _, u := range z.Upstreams {
			spec, err := buildUpstreamSpec(u)
			if err != nil {
				return nil, fmt.Errorf("zone %q: %w", z.Name, err)
			}
			ups = append(ups, spec)
		}
		entries = append(entries, zones.Entry{
			Zone:      dns.NewName(z.Name),
			Upstreams: ups,
		})
	}
	return entries, nil
}

func buildUpstreamSpec(u UpstreamConfig) (zones.UpstreamSpec, error) {
	switch u.Kind {
	case "udp":
		return zones.UpstreamSpec{Kind: zones.KindUDP, Address: u.Addr}, nil
	case "https":
		return zones.UpstreamSpec{Kind: zones.KindDoH, Address: u.URL, Host: u.Host}, nil
	default:
		return zones.UpstreamSpec{}, fmt.Errorf("unknown upstream kind %q", u.Kind)
	}
}

// ParseDuration parses a config duration string, falling back to def on an
// empty or invalid value rather than failing startup over a cosmetic typo
// in a timeout field — mirroring the teacher's parseWorkers leniency for
// malformed settings.
func ParseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
