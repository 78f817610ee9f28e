package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/corvid/internal/dns"
	"github.com/jroosing/corvid/internal/zones"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetZone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.CreateZone(ctx, ZoneRecord{
		Name: "example.com.",
		Upstreams: []UpstreamRecord{
			{Kind: "udp", Address: "9.9.9.9:53"},
			{Kind: "https", Address: "https://dns.example/dns-query", Host: "dns.example"},
		},
	})
	require.NoError(t, err)

	got, err := s.GetZone(ctx, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "example.com.", got.Name)
	require.Len(t, got.Upstreams, 2)
	assert.Equal(t, "udp", got.Upstreams[0].Kind)
	assert.Equal(t, "9.9.9.9:53", got.Upstreams[0].Address)
	assert.Equal(t, "https", got.Upstreams[1].Kind)
	assert.Equal(t, "dns.example", got.Upstreams[1].Host)
}

func TestGetZoneMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetZone(context.Background(), "nope.")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateZoneRejectsEmptyUpstreams(t *testing.T) {
	s := openTestStore(t)
	err := s.CreateZone(context.Background(), ZoneRecord{Name: "example.com."})
	assert.Error(t, err)
}

func TestUpdateZoneReplacesUpstreams(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateZone(ctx, ZoneRecord{
		Name:      "example.com.",
		Upstreams: []UpstreamRecord{{Kind: "udp", Address: "1.1.1.1:53"}},
	}))

	err := s.UpdateZone(ctx, ZoneRecord{
		Name:      "example.com.",
		Upstreams: []UpstreamRecord{{Kind: "udp", Address: "8.8.8.8:53"}},
	})
	require.NoError(t, err)

	got, err := s.GetZone(ctx, "example.com.")
	require.NoError(t, err)
	require.Len(t, got.Upstreams, 1)
	assert.Equal(t, "8.8.8.8:53", got.Upstreams[0].Address)
}

func TestUpdateZoneMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateZone(context.Background(), ZoneRecord{
		Name:      "nope.",
		Upstreams: []UpstreamRecord{{Kind: "udp", Address: "1.1.1.1:53"}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteZone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateZone(ctx, ZoneRecord{
		Name:      "example.com.",
		Upstreams: []UpstreamRecord{{Kind: "udp", Address: "1.1.1.1:53"}},
	}))
	require.NoError(t, s.DeleteZone(ctx, "example.com."))

	_, err := s.GetZone(ctx, "example.com.")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteZoneMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.DeleteZone(context.Background(), "nope.")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuildZoneTableReflectsPersistedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateZone(ctx, ZoneRecord{
		Name:      "example.com.",
		Upstreams: []UpstreamRecord{{Kind: "udp", Address: "1.1.1.1:53"}},
	}))

	tbl, err := s.BuildZoneTable(ctx)
	require.NoError(t, err)

	ups, ok := tbl.Lookup(dns.NewName("www.example.com."))
	require.True(t, ok)
	require.Len(t, ups, 1)
	assert.Equal(t, zones.KindUDP, ups[0].Kind)
	assert.Equal(t, "1.1.1.1:53", ups[0].Address)
}

func TestSeedFromConfigSkipsExistingZones(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateZone(ctx, ZoneRecord{
		Name:      "example.com.",
		Upstreams: []UpstreamRecord{{Kind: "udp", Address: "1.1.1.1:53"}},
	}))

	err := s.SeedFromConfig(ctx, []zones.Entry{
		{Zone: dns.NewName("example.com."), Upstreams: []zones.UpstreamSpec{{Kind: zones.KindUDP, Address: "9.9.9.9:53"}}},
		{Zone: dns.NewName("other.net."), Upstreams: []zones.UpstreamSpec{{Kind: zones.KindUDP, Address: "8.8.8.8:53"}}},
	})
	require.NoError(t, err)

	all, err := s.ListZones(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	existing, err := s.GetZone(ctx, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1:53", existing.Upstreams[0].Address)
}
