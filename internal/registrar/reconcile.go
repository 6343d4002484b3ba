package registrar

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
)

// scope is one attribute family: where its definitions live and how to tell
// whether a definition is still referenced by values.
type scope struct {
	name     string
	repo     authority.Repository[authority.Attribute]
	declared []config.AttributeConfig
	inUse    func(ctx context.Context, attrID int64) (bool, error)
}

// reconcile makes the stored definitions of driverID match the declared ones
// by name: matching names are updated keeping their ids, new names are
// created, and stale names are deleted unless values still reference them.
// The first failure aborts the scope.
func (r *Registrar) reconcile(ctx context.Context, s scope, driverID int64) error {
	stored, err := authority.ListAll(ctx, s.repo, authority.Filter{DriverID: driverID})
	if err != nil {
		return fmt.Errorf("listing %s attributes: %w", s.name, err)
	}
	byName := make(map[string]authority.Attribute, len(stored))
	for _, a := range stored {
		byName[a.Name] = a
	}

	declared := make(map[string]config.AttributeConfig, len(s.declared))
	for _, d := range s.declared {
		declared[d.Name] = d
	}

	var updated, created, deleted int
	for _, name := range slices.Sorted(maps.Keys(declared)) {
		d := declared[name]
		record := authority.Attribute{
			Name:        d.Name,
			DisplayName: d.DisplayName,
			Type:        d.Type,
			Value:       d.Value,
			Description: d.Description,
			DriverID:    driverID,
		}

		if existing, ok := byName[name]; ok {
			record.ID = existing.ID
			if _, err := s.repo.Update(ctx, &record); err != nil {
				return fmt.Errorf("updating %s attribute %q: %w", s.name, name, err)
			}
			updated++
			continue
		}
		if _, err := s.repo.Add(ctx, &record); err != nil {
			return fmt.Errorf("adding %s attribute %q: %w", s.name, name, err)
		}
		created++
	}

	for _, name := range slices.Sorted(maps.Keys(byName)) {
		if _, ok := declared[name]; ok {
			continue
		}
		stale := byName[name]
		used, err := s.inUse(ctx, stale.ID)
		if err != nil {
			return fmt.Errorf("checking references to %s attribute %q: %w", s.name, name, err)
		}
		if used {
			return fmt.Errorf("%w: %s attribute %q (id %d)", ErrAttributeInUse, s.name, name, stale.ID)
		}
		if _, err := s.repo.Delete(ctx, stale.ID); err != nil {
			return fmt.Errorf("deleting %s attribute %q: %w", s.name, name, err)
		}
		deleted++
	}

	r.logger.Info("attributes reconciled",
		"scope", s.name,
		"driver_id", driverID,
		"updated", updated,
		"created", created,
		"deleted", deleted,
	)
	return nil
}
