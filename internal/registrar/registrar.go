package registrar

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
)

// Logger defines the logging interface used by the Registrar.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var knownTypes = []string{
	driver.TypeInt, driver.TypeLong, driver.TypeFloat,
	driver.TypeDouble, driver.TypeBoolean, driver.TypeString,
}

// Registrar registers the driver identity with the authority and reconciles
// the driver's declared attribute definitions against the stored ones.
type Registrar struct {
	client     *authority.Client
	identity   Identity
	driverDefs []config.AttributeConfig
	pointDefs  []config.AttributeConfig
	logger     Logger

	// localHost resolves the advertised host when the identity has none.
	localHost func() (string, error)
}

// New creates a Registrar for the driver described by cfg.
func New(client *authority.Client, cfg config.DriverConfig) *Registrar {
	return &Registrar{
		client:     client,
		identity:   IdentityFrom(cfg),
		driverDefs: cfg.DriverAttributes,
		pointDefs:  cfg.PointAttributes,
		logger:     noopLogger{},
		localHost:  LocalHost,
	}
}

// SetLogger sets the logger for the registrar.
func (r *Registrar) SetLogger(logger Logger) {
	r.logger = logger
}

// Validate resolves the advertised host if needed and checks the identity
// and the declared attributes. Failures match ErrInvalidIdentity.
func (r *Registrar) Validate() (Identity, error) {
	id := r.identity
	if id.Host == "" {
		host, err := r.localHost()
		if err != nil {
			return id, fmt.Errorf("%w: resolving local host: %w", ErrInvalidIdentity, err)
		}
		id.Host = host
	}
	if err := id.Validate(); err != nil {
		return id, err
	}
	if err := validateDefs("driver", r.driverDefs); err != nil {
		return id, err
	}
	if err := validateDefs("point", r.pointDefs); err != nil {
		return id, err
	}
	return id, nil
}

func validateDefs(scope string, defs []config.AttributeConfig) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if !namePattern.MatchString(d.Name) {
			return fmt.Errorf("%w: %s attribute name %q", ErrInvalidIdentity, scope, d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate %s attribute %q", ErrInvalidIdentity, scope, d.Name)
		}
		seen[d.Name] = true
		if !slices.Contains(knownTypes, d.Type) {
			return fmt.Errorf("%w: %s attribute %q has unknown type %q", ErrInvalidIdentity, scope, d.Name, d.Type)
		}
	}
	return nil
}

// Register validates the identity, upserts it, and reconciles the driver
// and point attribute definitions, in that order. It returns the driver id
// the authority assigned. Every step is idempotent, so a failed Register
// can simply be retried.
func (r *Registrar) Register(ctx context.Context) (int64, error) {
	id, err := r.Validate()
	if err != nil {
		return 0, err
	}

	driverID, err := r.upsertIdentity(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := r.reconcile(ctx, scope{
		name:     "driver",
		repo:     r.client.DriverAttributes,
		declared: r.driverDefs,
		inUse: func(ctx context.Context, attrID int64) (bool, error) {
			return authority.Exists(ctx, r.client.DriverInfos, authority.Filter{AttributeID: attrID})
		},
	}, driverID); err != nil {
		return driverID, err
	}

	if err := r.reconcile(ctx, scope{
		name:     "point",
		repo:     r.client.PointAttributes,
		declared: r.pointDefs,
		inUse: func(ctx context.Context, attrID int64) (bool, error) {
			return authority.Exists(ctx, r.client.PointInfos, authority.Filter{AttributeID: attrID})
		},
	}, driverID); err != nil {
		return driverID, err
	}

	r.logger.Info("driver registered",
		"driver_id", driverID,
		"service_name", id.ServiceName,
		"host", id.Host,
		"port", id.Port,
	)
	return driverID, nil
}

// upsertIdentity keys the driver by service name. A known service is updated
// in place and the authority's unique host:port constraint rejects a clash;
// a new one is added unless its host and port are taken.
func (r *Registrar) upsertIdentity(ctx context.Context, id Identity) (int64, error) {
	record := authority.Driver{
		Name:        id.Name,
		ServiceName: id.ServiceName,
		Host:        id.Host,
		Port:        id.Port,
		Description: id.Description,
	}

	existing, err := r.client.Drivers.GetByServiceName(ctx, id.ServiceName)
	switch {
	case err == nil:
		if existing.Name != id.Name {
			r.logger.Warn("driver name differs from the registered one",
				"service_name", id.ServiceName, "registered", existing.Name, "declared", id.Name)
		}
		record.ID = existing.ID
		if _, err := r.client.Drivers.Update(ctx, &record); err != nil {
			return 0, fmt.Errorf("updating driver %q: %w", id.ServiceName, err)
		}
		return existing.ID, nil
	case errors.Is(err, authority.ErrNotFound):
	default:
		return 0, fmt.Errorf("looking up driver %q: %w", id.ServiceName, err)
	}

	if err := r.checkHostPort(ctx, id); err != nil {
		return 0, err
	}
	added, err := r.client.Drivers.Add(ctx, &record)
	if err != nil {
		return 0, fmt.Errorf("adding driver %q: %w", id.ServiceName, err)
	}
	r.logger.Info("driver added", "driver_id", added.ID, "service_name", id.ServiceName)
	return added.ID, nil
}

// checkHostPort fails with ErrPortOccupied when a driver is registered on
// the identity's host and port.
func (r *Registrar) checkHostPort(ctx context.Context, id Identity) error {
	other, err := r.client.Drivers.GetByHostPort(ctx, id.Host, id.Port)
	switch {
	case errors.Is(err, authority.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("looking up %s:%d: %w", id.Host, id.Port, err)
	default:
		return fmt.Errorf("%w: %s:%d is used by %q", ErrPortOccupied, id.Host, id.Port, other.ServiceName)
	}
}
