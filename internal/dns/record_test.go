package dns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalParseRecord(t *testing.T, rr Record) Record {
	t.Helper()
	wire, err := MarshalRecord(rr)
	require.NoError(t, err)
	off := 0
	got, err := ParseRecord(wire, &off)
	require.NoError(t, err)
	assert.Equal(t, len(wire), off)
	return got
}

func TestARecordRoundTrip(t *testing.T) {
	rr := NewIPRecord(RRHeader{Name: NewName("example.com"), Class: ClassIN, TTL: 300}, net.IPv4(93, 184, 216, 34))
	got := marshalParseRecord(t, rr)
	ip, ok := got.(*IPRecord)
	require.True(t, ok)
	assert.Equal(t, TypeA, ip.Type())
	assert.Equal(t, "93.184.216.34", ip.Addr.String())
	assert.Equal(t, NewName("example.com"), ip.Header().Name)
}

func TestAAAARecordRoundTrip(t *testing.T) {
	addr := net.ParseIP("2606:2800:220:1:248:1893:25c8:1946")
	rr := NewIPRecord(RRHeader{Name: NewName("example.com"), Class: ClassIN, TTL: 300}, addr)
	got := marshalParseRecord(t, rr)
	ip, ok := got.(*IPRecord)
	require.True(t, ok)
	assert.Equal(t, TypeAAAA, ip.Type())
	assert.True(t, addr.Equal(ip.Addr))
}

func TestCNAMERecordRoundTrip(t *testing.T) {
	rr := NewCNAMERecord(RRHeader{Name: NewName("www.example.com"), Class: ClassIN, TTL: 60}, NewName("example.com"))
	got := marshalParseRecord(t, rr)
	nr, ok := got.(*NameRecord)
	require.True(t, ok)
	assert.Equal(t, TypeCNAME, nr.Type())
	assert.Equal(t, NewName("example.com"), nr.Target)
}

func TestMXRecordRoundTrip(t *testing.T) {
	rr := NewMXRecord(RRHeader{Name: NewName("example.com"), Class: ClassIN, TTL: 3600}, 10, NewName("mail.example.com"))
	got := marshalParseRecord(t, rr)
	mx, ok := got.(*MXRecord)
	require.True(t, ok)
	assert.Equal(t, uint16(10), mx.Preference)
	assert.Equal(t, NewName("mail.example.com"), mx.Exchange)
}

func TestSOARecordRoundTrip(t *testing.T) {
	rr := &SOARecord{
		H:       RRHeader{Name: NewName("example.com"), Class: ClassIN, TTL: 3600},
		MName:   NewName("ns1.example.com"),
		RName:   NewName("hostmaster.example.com"),
		Serial:  2024010100,
		Refresh: 7200,
		Retry:   3600,
		Expire:  1209600,
		Minimum: 300,
	}
	got := marshalParseRecord(t, rr)
	soa, ok := got.(*SOARecord)
	require.True(t, ok)
	assert.Equal(t, rr.MName, soa.MName)
	assert.Equal(t, rr.RName, soa.RName)
	assert.Equal(t, rr.Serial, soa.Serial)
	assert.Equal(t, rr.Minimum, soa.Minimum)
}

func TestTXTRecordRoundTrip(t *testing.T) {
	rr := NewTXTRecord(RRHeader{Name: NewName("example.com"), Class: ClassIN, TTL: 60}, "v=spf1 -all", "second")
	got := marshalParseRecord(t, rr)
	txt, ok := got.(*TXTRecord)
	require.True(t, ok)
	assert.Equal(t, []string{"v=spf1 -all", "second"}, txt.Strings)
}

func TestUnknownTypeParsesToOpaqueRecord(t *testing.T) {
	rr := NewOpaqueRecord(RRHeader{Name: NewName("example.com"), Class: ClassIN, TTL: 60}, RecordType(999), []byte{1, 2, 3})
	got := marshalParseRecord(t, rr)
	op, ok := got.(*OpaqueRecord)
	require.True(t, ok)
	assert.Equal(t, RecordType(999), op.Type())
	assert.Equal(t, []byte{1, 2, 3}, op.Data)
}
