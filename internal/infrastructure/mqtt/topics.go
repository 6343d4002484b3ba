package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes of the driver topic hierarchy.
const (
	// TopicPrefixDriver is the base for all per-driver topics:
	// graylogic/driver/{service}/...
	TopicPrefixDriver = "graylogic/driver"

	// TopicPrefixAuthority is the base for the authority's own topics.
	TopicPrefixAuthority = "graylogic/authority"
)

// Topics builds the topics of one driver, identified by its service name.
//
//	topics := mqtt.Topics{Service: "graylogic-driver-modbus"}
//	topics.Event("device", "upsert")
//	// Returns: "graylogic/driver/graylogic-driver-modbus/event/device/upsert"
type Topics struct {
	Service string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", TopicPrefixDriver, t.Service)
}

// Event returns the topic a change event of the given kind and operation is
// published on.
//
// Example: graylogic/driver/{service}/event/point_info/delete
func (t Topics) Event(kind, op string) string {
	return fmt.Sprintf("%s/event/%s/%s", t.base(), kind, op)
}

// Events returns the wildcard covering every change event of the driver.
//
// Example: graylogic/driver/{service}/event/#
func (t Topics) Events() string {
	return t.base() + "/event/#"
}

// Value returns the topic a polled point value is published on.
//
// Example: graylogic/driver/{service}/value/meter-1/voltage
func (t Topics) Value(device, point string) string {
	return fmt.Sprintf("%s/value/%s/%s", t.base(), device, point)
}

// Values returns the wildcard covering every point value of the driver.
func (t Topics) Values() string {
	return t.base() + "/value/+/+"
}

// Status returns the retained online/offline topic of the driver. It also
// carries the Last Will message.
//
// Example: graylogic/driver/{service}/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// AuthorityStatus returns the retained online/offline topic of the authority.
func AuthorityStatus() string {
	return TopicPrefixAuthority + "/status"
}

// ParseEventTopic splits an event topic into its service, kind and
// operation. It reports false for any other topic.
func ParseEventTopic(topic string) (service, kind, op string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixDriver+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "event" {
		return "", "", "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", "", "", false
		}
	}
	return parts[0], parts[2], parts[3], true
}
