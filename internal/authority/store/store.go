package store

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/database"
)

// New returns an authority.Client backed by the SQLite tables created by
// the authority_schema migration. The caller owns db and must have migrated it.
func New(db *database.DB) *authority.Client {
	return &authority.Client{
		Drivers:          &drivers{table: table[authority.Driver]{db: db, s: driverSchema}},
		DriverAttributes: &table[authority.Attribute]{db: db, s: attributeSchema("driver_attributes")},
		PointAttributes:  &table[authority.Attribute]{db: db, s: attributeSchema("point_attributes")},
		Profiles:         &table[authority.Profile]{db: db, s: profileSchema},
		Devices:          &table[authority.Device]{db: db, s: deviceSchema},
		Points:           &table[authority.Point]{db: db, s: pointSchema},
		DriverInfos:      &table[authority.DriverInfo]{db: db, s: driverInfoSchema},
		PointInfos:       &table[authority.PointInfo]{db: db, s: pointInfoSchema},
	}
}

// drivers adds the unique-key lookups used during registration.
type drivers struct {
	table[authority.Driver]
}

func (d *drivers) GetByServiceName(ctx context.Context, serviceName string) (*authority.Driver, error) {
	return d.getBy(ctx, "service_name = ?", serviceName)
}

func (d *drivers) GetByHostPort(ctx context.Context, host string, port int) (*authority.Driver, error) {
	return d.getBy(ctx, "host = ? AND port = ?", host, port)
}

func (d *drivers) getBy(ctx context.Context, cond string, args ...any) (*authority.Driver, error) {
	query := "SELECT " + d.selectList() + " FROM drivers WHERE " + cond //nolint:gosec // constants
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying drivers: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying drivers: %w", err)
		}
		return nil, authority.ErrNotFound
	}
	var r authority.Driver
	if err := d.s.scan(rows, &r); err != nil {
		return nil, fmt.Errorf("scanning drivers: %w", err)
	}
	return &r, nil
}

var driverSchema = schema[authority.Driver]{
	table:   "drivers",
	columns: []string{"name", "service_name", "host", "port", "description"},
	values: func(d *authority.Driver) []any {
		return []any{d.Name, d.ServiceName, d.Host, d.Port, d.Description}
	},
	scan: func(s scanner, d *authority.Driver) error {
		return s.Scan(&d.ID, &d.Name, &d.ServiceName, &d.Host, &d.Port, &d.Description)
	},
	id:    func(d *authority.Driver) *int64 { return &d.ID },
	where: func(authority.Filter) ([]string, []any) { return nil, nil },
	check: func(d *authority.Driver) error { return d.Validate() },
}

func attributeSchema(tableName string) schema[authority.Attribute] {
	return schema[authority.Attribute]{
		table:   tableName,
		columns: []string{"name", "display_name", "type", "value", "description", "driver_id"},
		values: func(a *authority.Attribute) []any {
			return []any{a.Name, a.DisplayName, a.Type, a.Value, a.Description, a.DriverID}
		},
		scan: func(s scanner, a *authority.Attribute) error {
			return s.Scan(&a.ID, &a.Name, &a.DisplayName, &a.Type, &a.Value, &a.Description, &a.DriverID)
		},
		id: func(a *authority.Attribute) *int64 { return &a.ID },
		where: func(f authority.Filter) ([]string, []any) {
			c := (&conds{}).add("driver_id", f.DriverID)
			return c.where, c.args
		},
		check: func(a *authority.Attribute) error { return a.Validate() },
	}
}

var profileSchema = schema[authority.Profile]{
	table:   "profiles",
	columns: []string{"name", "driver_id"},
	values:  func(p *authority.Profile) []any { return []any{p.Name, p.DriverID} },
	scan: func(s scanner, p *authority.Profile) error {
		return s.Scan(&p.ID, &p.Name, &p.DriverID)
	},
	id: func(p *authority.Profile) *int64 { return &p.ID },
	where: func(f authority.Filter) ([]string, []any) {
		c := (&conds{}).add("driver_id", f.DriverID)
		return c.where, c.args
	},
	check: func(p *authority.Profile) error { return p.Validate() },
}

var deviceSchema = schema[authority.Device]{
	table:   "devices",
	columns: []string{"name", "profile_id", "description"},
	values:  func(d *authority.Device) []any { return []any{d.Name, d.ProfileID, d.Description} },
	scan: func(s scanner, d *authority.Device) error {
		return s.Scan(&d.ID, &d.Name, &d.ProfileID, &d.Description)
	},
	id: func(d *authority.Device) *int64 { return &d.ID },
	where: func(f authority.Filter) ([]string, []any) {
		c := (&conds{}).add("profile_id", f.ProfileID)
		return c.where, c.args
	},
	check: func(d *authority.Device) error { return d.Validate() },
}

var pointSchema = schema[authority.Point]{
	table:   "points",
	columns: []string{"name", "type", "rw", "unit", "profile_id"},
	values: func(p *authority.Point) []any {
		return []any{p.Name, p.Type, p.RW, p.Unit, p.ProfileID}
	},
	scan: func(s scanner, p *authority.Point) error {
		return s.Scan(&p.ID, &p.Name, &p.Type, &p.RW, &p.Unit, &p.ProfileID)
	},
	id: func(p *authority.Point) *int64 { return &p.ID },
	where: func(f authority.Filter) ([]string, []any) {
		c := (&conds{}).add("profile_id", f.ProfileID)
		return c.where, c.args
	},
	check: func(p *authority.Point) error { return p.Validate() },
}

var driverInfoSchema = schema[authority.DriverInfo]{
	table:   "driver_infos",
	columns: []string{"driver_attribute_id", "value", "profile_id"},
	values: func(i *authority.DriverInfo) []any {
		return []any{i.DriverAttributeID, i.Value, i.ProfileID}
	},
	scan: func(s scanner, i *authority.DriverInfo) error {
		return s.Scan(&i.ID, &i.DriverAttributeID, &i.Value, &i.ProfileID)
	},
	id: func(i *authority.DriverInfo) *int64 { return &i.ID },
	where: func(f authority.Filter) ([]string, []any) {
		c := (&conds{}).add("profile_id", f.ProfileID).add("driver_attribute_id", f.AttributeID)
		return c.where, c.args
	},
	check: func(i *authority.DriverInfo) error { return i.Validate() },
}

var pointInfoSchema = schema[authority.PointInfo]{
	table:   "point_infos",
	columns: []string{"point_attribute_id", "value", "device_id", "point_id"},
	values: func(i *authority.PointInfo) []any {
		return []any{i.PointAttributeID, i.Value, i.DeviceID, i.PointID}
	},
	scan: func(s scanner, i *authority.PointInfo) error {
		return s.Scan(&i.ID, &i.PointAttributeID, &i.Value, &i.DeviceID, &i.PointID)
	},
	id: func(i *authority.PointInfo) *int64 { return &i.ID },
	where: func(f authority.Filter) ([]string, []any) {
		c := (&conds{}).add("device_id", f.DeviceID).add("point_id", f.PointID).add("point_attribute_id", f.AttributeID)
		return c.where, c.args
	},
	check: func(i *authority.PointInfo) error { return i.Validate() },
}
