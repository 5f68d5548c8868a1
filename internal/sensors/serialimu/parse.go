package serialimu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"headtrack/internal/sensors"
)

// errSkip marks blank and comment lines.
var errSkip = errors.New("serialimu: skip line")

var kindCodes = map[string]sensors.Kind{
	"A": sensors.Accelerometer,
	"G": sensors.Gyroscope,
	"U": sensors.GyroscopeUncalibrated,
	"M": sensors.Magnetometer,
}

// KindCode returns the single-letter line prefix for k.
func KindCode(k sensors.Kind) string {
	for code, kind := range kindCodes {
		if kind == k {
			return code
		}
	}
	return ""
}

// ParseKindCode is the inverse of KindCode. It ignores case.
func ParseKindCode(code string) (sensors.Kind, bool) {
	k, ok := kindCodes[strings.ToUpper(strings.TrimSpace(code))]
	return k, ok
}

// ParseLine decodes one line of the form
//
//	<kind>,<timestamp_ns>,<x>,<y>,<z>[,<bx>,<by>,<bz>]
//
// where kind is A, G, U or M. Only U lines may carry the three bias values.
// Lines starting with '#' are comments.
func ParseLine(line string) (sensors.Sample, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return sensors.Sample{}, errSkip
	}
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return sensors.Sample{}, fmt.Errorf("serialimu: want at least 5 fields, got %d", len(fields))
	}

	kind, ok := kindCodes[strings.ToUpper(strings.TrimSpace(fields[0]))]
	if !ok {
		return sensors.Sample{}, fmt.Errorf("serialimu: unknown sensor kind %q", fields[0])
	}
	n := len(fields) - 2
	if n != 3 && !(kind == sensors.GyroscopeUncalibrated && n == 6) {
		return sensors.Sample{}, fmt.Errorf("serialimu: %s line has %d values", kind, n)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return sensors.Sample{}, fmt.Errorf("serialimu: timestamp: %w", err)
	}
	values := make([]float32, n)
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[2+i]), 32)
		if err != nil {
			return sensors.Sample{}, fmt.Errorf("serialimu: value %d: %w", i, err)
		}
		values[i] = float32(v)
	}
	return sensors.Sample{Kind: kind, Values: values, TimestampNs: ts}, nil
}

// FormatLine is the inverse of ParseLine.
func FormatLine(s sensors.Sample) string {
	var b strings.Builder
	b.WriteString(KindCode(s.Kind))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(s.TimestampNs, 10))
	for _, v := range s.Values {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	return b.String()
}
