package main

import (
	"context"
	"errors"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"headtrack/internal/config"
	"headtrack/internal/heading"
	"headtrack/internal/sensors"
	"headtrack/internal/tracker"
)

func newRunCmd(a *app) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:        "run",
		SuggestFor: []string{"ru", "start"},
		Short:      "track head orientation and log the heading",
		Long: `run starts tracking with the configured sensor source and logs the head
pose every poll interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if duration > 0 {
				var stop context.CancelFunc
				ctx, stop = context.WithTimeout(ctx, duration)
				defer stop()
			}
			return runTracking(ctx, a.cfg, logReading)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func runTracking(ctx context.Context, cfg config.Config, onReading func(heading.Reading)) error {
	rot, err := tracker.ParseRotation(cfg.Tracker.DisplayRotation)
	if err != nil {
		return err
	}
	p, closeFn, err := openPlatform(cfg.Sensors)
	if err != nil {
		return err
	}
	defer closeSource(closeFn)

	loop := sensors.NewLoop(p, quirksFor(cfg.Sensors))
	t := tracker.New(loop, tracker.NewSystemClock(), tracker.StaticDisplay{R: rot})
	if err := t.SetNeckModelFactor(cfg.Tracker.NeckModelFactor); err != nil {
		return err
	}
	t.SetGyroBiasEstimationEnabled(cfg.Tracker.GyroBiasEstimation)

	poller, err := heading.New(t, cfg.Poll.Interval, onReading)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"source":   cfg.Sensors.Source,
		"interval": cfg.Poll.Interval,
		"rotation": int(rot),
	}).Info("headtrack starting")
	t.StartTracking()
	defer t.StopTracking()

	err = poller.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info("headtrack stopping")
		return nil
	}
	return err
}

func logReading(r heading.Reading) {
	log.WithFields(log.Fields{
		"heading": round1(r.HeadingDeg),
		"pitch":   round1(r.PitchDeg),
		"roll":    round1(r.RollDeg),
	}).Info("heading")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
