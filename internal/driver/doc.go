// Package driver defines the contract between the agent and a protocol
// driver, and the resolved attribute values handed across it.
//
// A driver reads its connection settings from driverInfo and its addressing
// from pointInfo using the typed accessors:
//
//	port, err := driver.Attribute(driverInfo, "port", driver.AttributeInfo.Int)
//	scale, err := driver.Attribute(pointInfo, "multiple", driver.AttributeInfo.Float)
package driver
