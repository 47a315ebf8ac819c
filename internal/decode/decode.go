// Package decode renders PostgreSQL column values as canonical text.
//
// Values arrive already decoded by pgx (rows.Values), together with the
// column's type OID. A value is resolved first through the decoder bound to
// its OID and, when the OID is unknown or its decoder rejects the value,
// through a fixed ordered list of candidates where the first match wins.
package decode

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Canonical layouts.
const (
	TimestampLayout = "2006-01-02 15:04:05.000000"
	DateLayout      = "2006-01-02"
)

// Func converts a single value to text. ok is false when the value is not
// of the kind the decoder handles.
type Func func(v any) (text string, ok bool)

// Candidate is one entry of the ordered fallback list.
type Candidate struct {
	Name   string
	Decode Func
}

// Candidates is the fallback order. Some values are accepted by more than
// one candidate (a time.Time fits every temporal kind), so the order decides
// the result and must not change.
var Candidates = []Candidate{
	{"text", Text},
	{"uuid", UUID},
	{"timestamptz", Timestamptz},
	{"timestamp", Timestamp},
	{"date", Date},
	{"time", TimeOfDay},
	{"int2", Int16},
	{"int4", Int32},
	{"int8", Int64},
	{"float4", Float32},
	{"float8", Float64},
	{"bool", Bool},
	{"json", JSON},
}

var byOID = map[uint32]Func{
	pgtype.TextOID:        Text,
	pgtype.VarcharOID:     Text,
	pgtype.BPCharOID:      Text,
	pgtype.NameOID:        Text,
	pgtype.UUIDOID:        UUID,
	pgtype.TimestamptzOID: oneOf(Timestamptz, temporal(formatTimestamptz)),
	pgtype.TimestampOID:   oneOf(Timestamp, temporal(formatTimestamp)),
	pgtype.DateOID:        oneOf(Date, temporal(formatDate)),
	pgtype.TimeOID:        TimeOfDay,
	pgtype.Int2OID:        Int16,
	pgtype.Int4OID:        Int32,
	pgtype.Int8OID:        Int64,
	pgtype.Float4OID:      Float32,
	pgtype.Float8OID:      Float64,
	pgtype.BoolOID:        Bool,
	pgtype.JSONOID:        JSON,
	pgtype.JSONBOID:       JSON,
	pgtype.NumericOID:     Numeric,
	pgtype.ByteaOID:       Bytea,
	pgtype.IntervalOID:    Interval,
	pgtype.InetOID:        Inet,
	pgtype.CIDROID:        CIDR,
	pgtype.MacaddrOID:     Macaddr,
}

// Value decodes v, a column value of type oid, to its canonical text.
// It returns false for SQL NULL and for values no decoder understands.
func Value(oid uint32, v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if fn, ok := byOID[oid]; ok {
		if s, ok := fn(v); ok {
			return s, true
		}
	}
	return Fallback(v)
}

// Fallback tries every candidate in order.
func Fallback(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	for _, c := range Candidates {
		if s, ok := c.Decode(v); ok {
			return s, true
		}
	}
	return "", false
}

// Known reports whether oid has an exact decoder.
func Known(oid uint32) bool {
	_, ok := byOID[oid]
	return ok
}

func Text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case pgtype.Text:
		return s.String, s.Valid
	}
	return "", false
}

func UUID(v any) (string, bool) {
	switch u := v.(type) {
	case [16]byte:
		return uuid.UUID(u).String(), true
	case uuid.UUID:
		return u.String(), true
	case pgtype.UUID:
		if !u.Valid {
			return "", false
		}
		return uuid.UUID(u.Bytes).String(), true
	}
	return "", false
}

// Timestamptz accepts pgtype.Timestamptz and bare time.Time values. In the
// fallback order it is the first temporal candidate, so an untagged
// time.Time is rendered as an instant.
func Timestamptz(v any) (string, bool) {
	switch t := v.(type) {
	case time.Time:
		return formatTimestamptz(t), true
	case pgtype.Timestamptz:
		if !t.Valid {
			return "", false
		}
		if t.InfinityModifier != pgtype.Finite {
			return t.InfinityModifier.String(), true
		}
		return formatTimestamptz(t.Time), true
	}
	return "", false
}

func Timestamp(v any) (string, bool) {
	t, ok := v.(pgtype.Timestamp)
	if !ok || !t.Valid {
		return "", false
	}
	if t.InfinityModifier != pgtype.Finite {
		return t.InfinityModifier.String(), true
	}
	return formatTimestamp(t.Time), true
}

func Date(v any) (string, bool) {
	d, ok := v.(pgtype.Date)
	if !ok || !d.Valid {
		return "", false
	}
	if d.InfinityModifier != pgtype.Finite {
		return d.InfinityModifier.String(), true
	}
	return formatDate(d.Time), true
}

func TimeOfDay(v any) (string, bool) {
	t, ok := v.(pgtype.Time)
	if !ok || !t.Valid {
		return "", false
	}
	us := t.Microseconds
	h := us / int64(time.Hour/time.Microsecond)
	us -= h * int64(time.Hour/time.Microsecond)
	m := us / int64(time.Minute/time.Microsecond)
	us -= m * int64(time.Minute/time.Microsecond)
	s := us / int64(time.Second/time.Microsecond)
	us -= s * int64(time.Second/time.Microsecond)
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, us), true
}

func Int16(v any) (string, bool) {
	i, ok := v.(int16)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(int64(i), 10), true
}

func Int32(v any) (string, bool) {
	i, ok := v.(int32)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(int64(i), 10), true
}

func Int64(v any) (string, bool) {
	i, ok := v.(int64)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(i, 10), true
}

func Float32(v any) (string, bool) {
	f, ok := v.(float32)
	if !ok {
		return "", false
	}
	return formatFloat(float64(f), 32), true
}

func Float64(v any) (string, bool) {
	f, ok := v.(float64)
	if !ok {
		return "", false
	}
	return formatFloat(f, 64), true
}

func Bool(v any) (string, bool) {
	b, ok := v.(bool)
	if !ok {
		return "", false
	}
	if b {
		return "t", true
	}
	return "f", true
}

// JSON renders anything encoding/json can marshal, which is what pgx yields
// for json and jsonb columns.
func JSON(v any) (string, bool) {
	switch j := v.(type) {
	case json.RawMessage:
		return string(j), true
	case map[string]any, []any, string, float64, bool:
		b, err := json.Marshal(j)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	return "", false
}

func Numeric(v any) (string, bool) {
	n, ok := v.(pgtype.Numeric)
	if !ok || !n.Valid {
		return "", false
	}
	dv, err := n.Value()
	if err != nil {
		return "", false
	}
	s, ok := dv.(string)
	return s, ok
}

func Bytea(v any) (string, bool) {
	b, ok := v.([]byte)
	if !ok {
		return "", false
	}
	return `\x` + hex.EncodeToString(b), true
}

// Interval renders the server's default interval style, for example
// "1 year 2 mons -3 days 04:05:06.5".
func Interval(v any) (string, bool) {
	iv, ok := v.(pgtype.Interval)
	if !ok || !iv.Valid {
		return "", false
	}

	var parts []string
	unit := func(n int64, name string) {
		if n == 0 {
			return
		}
		if n != 1 {
			name += "s"
		}
		parts = append(parts, strconv.FormatInt(n, 10)+" "+name)
	}
	unit(int64(iv.Months/12), "year")
	unit(int64(iv.Months%12), "mon")
	unit(int64(iv.Days), "day")

	if iv.Microseconds != 0 || len(parts) == 0 {
		parts = append(parts, clock(iv.Microseconds))
	}
	return strings.Join(parts, " "), true
}

// clock formats a signed duration in microseconds as [-]HH:MM:SS[.ffffff]
// with trailing zeros of the fraction dropped. Hours are not wrapped.
func clock(us int64) string {
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	sec := us / 1e6
	frac := us % 1e6

	s := fmt.Sprintf("%s%02d:%02d:%02d", sign, sec/3600, sec/60%60, sec%60)
	if frac != 0 {
		s += "." + strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	}
	return s
}

// Inet omits the prefix length of a single host, as the server does.
func Inet(v any) (string, bool) {
	p, ok := v.(netip.Prefix)
	if !ok || !p.IsValid() {
		return "", false
	}
	if p.IsSingleIP() {
		return p.Addr().String(), true
	}
	return p.String(), true
}

func CIDR(v any) (string, bool) {
	p, ok := v.(netip.Prefix)
	if !ok || !p.IsValid() {
		return "", false
	}
	return p.String(), true
}

func Macaddr(v any) (string, bool) {
	mac, ok := v.(net.HardwareAddr)
	if !ok {
		return "", false
	}
	return mac.String(), true
}

func oneOf(fns ...Func) Func {
	return func(v any) (string, bool) {
		for _, fn := range fns {
			if s, ok := fn(v); ok {
				return s, true
			}
		}
		return "", false
	}
}

// temporal adapts a layout function to bare time.Time values and the
// infinity markers pgx returns for infinite timestamps and dates.
func temporal(format func(time.Time) string) Func {
	return func(v any) (string, bool) {
		switch t := v.(type) {
		case time.Time:
			return format(t), true
		case pgtype.InfinityModifier:
			if t == pgtype.Finite {
				return "", false
			}
			return t.String(), true
		}
		return "", false
	}
}

func formatTimestamptz(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}
