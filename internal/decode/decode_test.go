package decode

import (
	"encoding/json"
	"math"
	"math/big"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueByOID(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 120000000, time.UTC)
	zone := time.FixedZone("CET", 3600)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		oid  uint32
		in   any
		want string
	}{
		{"text", pgtype.TextOID, "hello", "hello"},
		{"varchar", pgtype.VarcharOID, "", ""},
		{"uuid bytes", pgtype.UUIDOID, [16]byte(id), id.String()},
		{"timestamptz", pgtype.TimestamptzOID, ts.In(zone), "2024-03-09T14:05:07.12Z"},
		{"timestamptz infinity", pgtype.TimestamptzOID, pgtype.Infinity, "infinity"},
		{"timestamp", pgtype.TimestampOID, ts, "2024-03-09 14:05:07.120000"},
		{"timestamp whole second", pgtype.TimestampOID, ts.Truncate(time.Second), "2024-03-09 14:05:07.000000"},
		{"date", pgtype.DateOID, time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), "1999-12-31"},
		{"date -infinity", pgtype.DateOID, pgtype.NegativeInfinity, "-infinity"},
		{"time", pgtype.TimeOID, pgtype.Time{Microseconds: 13*3600e6 + 4*60e6 + 5e6 + 42, Valid: true}, "13:04:05.000042"},
		{"int2", pgtype.Int2OID, int16(-7), "-7"},
		{"int4", pgtype.Int4OID, int32(2147483647), "2147483647"},
		{"int8", pgtype.Int8OID, int64(-9223372036854775808), "-9223372036854775808"},
		{"float4", pgtype.Float4OID, float32(1.5), "1.5"},
		{"float8", pgtype.Float8OID, float64(100), "100"},
		{"float8 large", pgtype.Float8OID, 1e21, "1000000000000000000000"},
		{"float8 nan", pgtype.Float8OID, math.NaN(), "NaN"},
		{"float8 -inf", pgtype.Float8OID, math.Inf(-1), "-Infinity"},
		{"bool true", pgtype.BoolOID, true, "t"},
		{"bool false", pgtype.BoolOID, false, "f"},
		{"jsonb object", pgtype.JSONBOID, map[string]any{"a": float64(1)}, `{"a":1}`},
		{"jsonb string", pgtype.JSONBOID, "x", `"x"`},
		{"json raw", pgtype.JSONOID, json.RawMessage(`[1, 2]`), `[1, 2]`},
		{"numeric", pgtype.NumericOID, pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, "123.45"},
		{"bytea", pgtype.ByteaOID, []byte{0xde, 0xad}, `\xdead`},
		{"interval", pgtype.IntervalOID, pgtype.Interval{Months: 14, Days: 3, Microseconds: 4*3600e6 + 5*60e6 + 6e6 + 500000, Valid: true}, "1 year 2 mons 3 days 04:05:06.5"},
		{"interval singular", pgtype.IntervalOID, pgtype.Interval{Months: 1, Days: 1, Valid: true}, "1 mon 1 day"},
		{"interval negative", pgtype.IntervalOID, pgtype.Interval{Days: -1, Microseconds: -90e6, Valid: true}, "-1 days -00:01:30"},
		{"interval zero", pgtype.IntervalOID, pgtype.Interval{Valid: true}, "00:00:00"},
		{"interval long", pgtype.IntervalOID, pgtype.Interval{Microseconds: 100 * 3600e6, Valid: true}, "100:00:00"},
		{"inet host", pgtype.InetOID, netip.MustParsePrefix("192.168.0.1/32"), "192.168.0.1"},
		{"inet network", pgtype.InetOID, netip.MustParsePrefix("10.1.0.0/16"), "10.1.0.0/16"},
		{"inet v6", pgtype.InetOID, netip.MustParsePrefix("::1/128"), "::1"},
		{"cidr host", pgtype.CIDROID, netip.MustParsePrefix("192.168.0.1/32"), "192.168.0.1/32"},
		{"macaddr", pgtype.MacaddrOID, net.HardwareAddr{0x08, 0x00, 0x2b, 0x01, 0x02, 0x03}, "08:00:2b:01:02:03"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Value(tc.oid, tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)

			again, _ := Value(tc.oid, tc.in)
			assert.Equal(t, got, again)
		})
	}
}

func TestValueNull(t *testing.T) {
	for _, oid := range []uint32{pgtype.TextOID, pgtype.Int4OID, pgtype.JSONBOID, 0} {
		_, ok := Value(oid, nil)
		assert.False(t, ok)
	}

	_, ok := Value(pgtype.TimeOID, pgtype.Time{})
	assert.False(t, ok)

	_, ok = Value(pgtype.IntervalOID, pgtype.Interval{})
	assert.False(t, ok)

	_, ok = Value(pgtype.PointOID, pgtype.Point{Valid: true})
	assert.False(t, ok, "point has no decoder")
}

func TestFallbackOrder(t *testing.T) {
	names := make([]string, len(Candidates))
	for i, c := range Candidates {
		names[i] = c.Name
	}
	assert.Equal(t, []string{
		"text", "uuid", "timestamptz", "timestamp", "date", "time",
		"int2", "int4", "int8", "float4", "float8", "bool", "json",
	}, names)

	// A numeric literal delivered as a string stays text.
	got, ok := Fallback("42")
	require.True(t, ok)
	assert.Equal(t, "42", got)

	// An untagged time.Time resolves to the first temporal candidate.
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got, ok = Fallback(ts)
	require.True(t, ok)
	assert.Equal(t, "2024-01-02T03:04:05Z", got)

	got, ok = Fallback(pgtype.Timestamp{Time: ts, Valid: true})
	require.True(t, ok)
	assert.Equal(t, "2024-01-02 03:04:05.000000", got)

	got, ok = Fallback(pgtype.Date{Time: ts, Valid: true})
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", got)

	got, ok = Fallback([]any{"a", true})
	require.True(t, ok)
	assert.Equal(t, `["a",true]`, got)

	_, ok = Fallback(struct{}{})
	assert.False(t, ok)
}

func TestUnknownOIDFallsBack(t *testing.T) {
	const citextOID = 99999
	assert.False(t, Known(citextOID))

	got, ok := Value(citextOID, "MiXeD")
	require.True(t, ok)
	assert.Equal(t, "MiXeD", got)

	got, ok = Value(citextOID, int32(5))
	require.True(t, ok)
	assert.Equal(t, "5", got)
}

func TestMismatchedOIDFallsBack(t *testing.T) {
	// Declared int4 but the driver handed back text, as happens with
	// custom casts over the simple protocol.
	got, ok := Value(pgtype.Int4OID, "17")
	require.True(t, ok)
	assert.Equal(t, "17", got)
}
