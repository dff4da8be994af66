package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
)

// MeasurementPM is the InfluxDB measurement of power module samples.
const MeasurementPM = "power_module"

// pointWriter is the part of the InfluxDB client used by InfluxSink.
type pointWriter interface {
	WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error
	Close() error
}

// InfluxSink writes samples to InfluxDB v3.
type InfluxSink struct {
	client pointWriter
}

// NewInfluxSink connects to the InfluxDB database of cfg.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.URL,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}
	return &InfluxSink{client: client}, nil
}

// Name returns "influxdb".
func (s *InfluxSink) Name() string { return "influxdb" }

// Write writes one point per sample.
func (s *InfluxSink) Write(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	points := make([]*influxdb3.Point, 0, len(samples))
	for _, sm := range samples {
		points = append(points, samplePoint(sm))
	}
	if err := s.client.WritePoints(ctx, points); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *InfluxSink) Close() error {
	return s.client.Close()
}

func samplePoint(sm Sample) *influxdb3.Point {
	tags := map[string]string{
		"node":  strconv.Itoa(int(sm.Node)),
		"pm":    strconv.Itoa(sm.PM),
		"group": strconv.Itoa(sm.Group),
	}
	if sm.Vendor != "" {
		tags["vendor"] = sm.Vendor
	}
	fields := map[string]any{
		"voltage":     sm.Output.Volts(),
		"current":     sm.Output.Amps(),
		"power":       sm.Watts(),
		"temperature": int64(sm.Temperature),
		"state":       int64(sm.State),
		"fault":       sm.Fault,
		"flags":       strings.Join(sm.Flags, ","),
		"interlink":   sm.Interlink.String(),
	}
	return influxdb3.NewPoint(MeasurementPM, tags, fields, sm.Time)
}
