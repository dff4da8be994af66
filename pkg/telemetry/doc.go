// Package telemetry polls the power modules of a bridge and writes the
// samples to time series stores.
//
// A Monitor reads a bridge snapshot every interval, turns every power
// module into a Sample and hands the batch to its sinks. InfluxSink
// writes points to InfluxDB v3; ClickHouseSink queues samples and inserts
// them in batches. A sink that fails is logged and skipped, the monitor
// keeps polling.
package telemetry
