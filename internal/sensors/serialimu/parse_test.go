package serialimu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"headtrack/internal/sensors"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want sensors.Sample
	}{
		{"A,100,0,9.81,0", sensors.Sample{Kind: sensors.Accelerometer, Values: []float32{0, 9.81, 0}, TimestampNs: 100}},
		{" g , 200 , 0.1, -0.2 ,0.3 ", sensors.Sample{Kind: sensors.Gyroscope, Values: []float32{0.1, -0.2, 0.3}, TimestampNs: 200}},
		{"U,300,1,2,3,0.1,0.2,0.3", sensors.Sample{Kind: sensors.GyroscopeUncalibrated, Values: []float32{1, 2, 3, 0.1, 0.2, 0.3}, TimestampNs: 300}},
		{"U,301,1,2,3", sensors.Sample{Kind: sensors.GyroscopeUncalibrated, Values: []float32{1, 2, 3}, TimestampNs: 301}},
		{"M,400,0,-40,-20", sensors.Sample{Kind: sensors.Magnetometer, Values: []float32{0, -40, -20}, TimestampNs: 400}},
	}
	for _, tc := range cases {
		got, err := ParseLine(tc.line)
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.want, got, tc.line)
	}
}

func TestParseLine_Skips(t *testing.T) {
	for _, line := range []string{"", "   ", "# header"} {
		if _, err := ParseLine(line); !errors.Is(err, errSkip) {
			t.Fatalf("line=%q err=%v want errSkip", line, err)
		}
	}
}

func TestParseLine_Errors(t *testing.T) {
	for _, line := range []string{
		"A,1,2,3",
		"X,1,0,0,0",
		"A,1,0,0,0,1,1,1",
		"U,1,0,0,0,1",
		"A,abc,0,0,0",
		"A,1,0,nope,0",
	} {
		_, err := ParseLine(line)
		if err == nil || errors.Is(err, errSkip) {
			t.Fatalf("line=%q err=%v want parse error", line, err)
		}
	}
}

func TestFormatLine_RoundTrip(t *testing.T) {
	s := sensors.Sample{Kind: sensors.GyroscopeUncalibrated, Values: []float32{0.5, -1.25, 3, 0.01, 0, -0.02}, TimestampNs: 123456789}
	line := FormatLine(s)
	require.Equal(t, "U,123456789,0.5,-1.25,3,0.01,0,-0.02", line)
	got, err := ParseLine(line)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestPortOptions(t *testing.T) {
	o, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	require.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, o)

	_, err = PortOptions{DataBits: 9}.Normalize()
	require.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	require.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalize()
	require.Error(t, err)

	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	require.Equal(t, 9600, mode.BaudRate)
	require.Equal(t, 8, mode.DataBits)
}

func TestParseKindCode(t *testing.T) {
	for _, k := range DefaultKinds {
		got, ok := ParseKindCode(strings.ToLower(KindCode(k)))
		require.True(t, ok)
		require.Equal(t, k, got)
	}
	_, ok := ParseKindCode("Q")
	require.False(t, ok)
}
