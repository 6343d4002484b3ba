package influxdb

import (
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementPointValues holds every polled point value.
	MeasurementPointValues = "point_values"

	// MeasurementReadErrors counts failed point reads.
	MeasurementReadErrors = "point_read_errors"
)

// PointValue is one polled reading.
type PointValue struct {
	Service string // driver service name
	Device  string
	Point   string
	Type    string // declared point type
	Unit    string
	Value   string // as returned by the driver
	Time    time.Time
}

// WritePointValue records a polled value in the point_values measurement.
//
// Numeric and boolean values are stored in the "value" field as float so
// they can be aggregated; anything else is stored in the "raw" field.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WritePointValue(influxdb.PointValue{
//	    Service: "graylogic-driver-modbus", Device: "meter-1",
//	    Point: "voltage", Type: "float", Value: "231.4", Time: time.Now(),
//	})
func (c *Client) WritePointValue(v PointValue) {
	if c.closed.Load() {
		return
	}
	c.writeAPI.WritePoint(newValuePoint(v))
}

// WriteReadError records a failed read of one point.
func (c *Client) WriteReadError(service, device, point string, ts time.Time) {
	if c.closed.Load() {
		return
	}
	c.writeAPI.WritePoint(newReadErrorPoint(service, device, point, ts))
}

func newValuePoint(v PointValue) *write.Point {
	tags := map[string]string{
		"service": v.Service,
		"device":  v.Device,
		"point":   v.Point,
	}
	if v.Type != "" {
		tags["type"] = v.Type
	}
	if v.Unit != "" {
		tags["unit"] = v.Unit
	}

	fields := map[string]any{}
	if f, ok := numeric(v.Value); ok {
		fields["value"] = f
	} else {
		fields["raw"] = v.Value
	}

	ts := v.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementPointValues, tags, fields, ts)
}

func newReadErrorPoint(service, device, point string, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementReadErrors,
		map[string]string{"service": service, "device": device, "point": point},
		map[string]any{"count": int64(1)},
		ts,
	)
}

// numeric converts a driver value to float64. Booleans become 0 or 1.
func numeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
