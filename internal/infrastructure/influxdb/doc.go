// Package influxdb records polled point values in InfluxDB.
//
// Connect pings the server and refuses to start when the configured bucket
// is missing. Values are then written through the batching write API of
// influxdb-client-go v2.
//
// # Measurements
//
//	point_values       tags: service, device, point, type, unit
//	                   fields: value (float) or raw (string)
//	point_read_errors  tags: service, device, point
//	                   fields: count
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Error("influx write", "error", err) })
//
//	client.WritePointValue(influxdb.PointValue{...})
package influxdb
