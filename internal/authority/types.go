package authority

// Point read/write modes.
const (
	RWReadOnly  = 0
	RWWriteOnly = 1
	RWReadWrite = 2
)

// Driver is a registered driver instance.
// ServiceName and the Host:Port pair are unique authority-wide; Name is not.
type Driver struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ServiceName string `json:"service_name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Description string `json:"description,omitempty"`
}

// Attribute is a named, typed configuration slot declared by a driver,
// either at driver scope or at point scope. Value is the default.
type Attribute struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Type        string `json:"type"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	DriverID    int64  `json:"driver_id"`
}

// Profile is a device template owned by one driver.
type Profile struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	DriverID int64  `json:"driver_id"`
}

// Device is a concrete instance of a profile.
type Device struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ProfileID   int64  `json:"profile_id"`
	Description string `json:"description,omitempty"`
}

// Point is a named measurable or controllable slot on a profile.
type Point struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	RW        int    `json:"rw"`
	Unit      string `json:"unit,omitempty"`
	ProfileID int64  `json:"profile_id"`
}

// Readable reports whether the point may be polled.
func (p Point) Readable() bool {
	return p.RW == RWReadOnly || p.RW == RWReadWrite
}

// Writable reports whether the point accepts writes.
func (p Point) Writable() bool {
	return p.RW == RWWriteOnly || p.RW == RWReadWrite
}

// DriverInfo binds a value to one driver-scoped attribute for one profile.
type DriverInfo struct {
	ID                int64  `json:"id"`
	DriverAttributeID int64  `json:"driver_attribute_id"`
	Value             string `json:"value"`
	ProfileID         int64  `json:"profile_id"`
}

// PointInfo binds a value to one point-scoped attribute for one device point.
type PointInfo struct {
	ID               int64  `json:"id"`
	PointAttributeID int64  `json:"point_attribute_id"`
	Value            string `json:"value"`
	DeviceID         int64  `json:"device_id"`
	PointID          int64  `json:"point_id"`
}
