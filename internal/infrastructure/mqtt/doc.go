// Package mqtt provides MQTT connectivity for the driver agent and the
// configuration authority.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - A retained online/offline status with Last Will and Testament
//
// # Topics
//
// Everything a driver sees or emits lives under one prefix:
//
//	graylogic/driver/{service}/event/{kind}/{op}   change events from the authority
//	graylogic/driver/{service}/value/{device}/{point}   polled point values (retained)
//	graylogic/driver/{service}/status              online/offline (retained, LWT)
//
// The authority publishes change events; the agent subscribes to
// Topics.Events() and applies them to its cache.
//
// # Usage
//
//	topics := mqtt.Topics{Service: cfg.Driver.ServiceName}
//	client, err := mqtt.Connect(cfg.MQTT, topics.Status())
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Events(), 1, handler)
package mqtt
