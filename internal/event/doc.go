// Package event defines the change notifications the authority publishes
// after every profile, device, point, driver info or point info mutation,
// and the JSON and CBOR codecs that carry them over MQTT.
//
// Ordering is only guaranteed per topic; consumers must tolerate events of
// different kinds arriving in any order.
package event
