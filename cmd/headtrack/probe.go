package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"headtrack/internal/config"
	"headtrack/internal/sensors"
)

var probeKinds = []sensors.Kind{
	sensors.Accelerometer,
	sensors.Gyroscope,
	sensors.GyroscopeUncalibrated,
	sensors.Magnetometer,
}

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:        "probe",
		SuggestFor: []string{"pro", "prob"},
		Short:      "list the sensors the configured source offers",
		Long: `probe opens the configured sensor source and prints the default sensor
for every kind, followed by the gyroscope the capture loop would select.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return probe(cmd.OutOrStdout(), a.cfg.Sensors)
		},
	}
}

func probe(w io.Writer, cfg config.SensorsConfig) error {
	p, closeFn, err := openPlatform(cfg)
	if err != nil {
		return err
	}
	defer closeSource(closeFn)

	fmt.Fprintf(w, "source: %s\n", cfg.Source)
	for _, k := range probeKinds {
		s, ok := p.DefaultSensor(k)
		if !ok {
			fmt.Fprintf(w, "%-24s -\n", k)
			continue
		}
		fmt.Fprintf(w, "%-24s %s\n", k, s.Name)
	}
	if g, ok := sensors.SelectGyroscope(p, quirksFor(cfg)); ok {
		fmt.Fprintf(w, "selected gyroscope: %s (%s)\n", g.Kind, g.Name)
	} else {
		fmt.Fprintln(w, "selected gyroscope: none")
	}
	return nil
}
