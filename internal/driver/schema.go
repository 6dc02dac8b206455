package driver

import (
	"context"
	"fmt"
	"sort"
)

// Schema creates and upgrades the application schema. Versions start at 1.
type Schema interface {
	Version() int
	Create(ctx context.Context, conn *Connection) error
	Migrate(ctx context.Context, conn *Connection, oldVersion, newVersion int) error
}

// AfterVersion runs Fn once the schema was migrated to Version.
type AfterVersion struct {
	Version int
	Fn      func(ctx context.Context, conn *Connection) error
}

func userVersion(ctx context.Context, c *Connection) (int, error) {
	var v int
	if err := c.QueryValue(ctx, &v, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func setUserVersion(ctx context.Context, c *Connection, v int) error {
	if _, err := c.Exec(ctx, fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	return nil
}

// applySchema creates the schema on a new database or migrates an older one,
// running the callbacks whose version lies in between.
func (f *Factory) applySchema(ctx context.Context, c *Connection) error {
	if f.schema == nil {
		return nil
	}
	want := f.schema.Version()
	have, err := userVersion(ctx, c)
	if err != nil {
		return err
	}

	switch {
	case have == want:
		return nil
	case have == 0:
		f.logf("Creating schema version %d", want)
		if err := f.schema.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return setUserVersion(ctx, c, want)
	case have > want:
		return fmt.Errorf("%w: database schema version %d is newer than %d", ErrIllegalState, have, want)
	}

	callbacks := make([]AfterVersion, 0, len(f.opts.afterVersion))
	for _, av := range f.opts.afterVersion {
		if av.Version > have && av.Version <= want {
			callbacks = append(callbacks, av)
		}
	}
	sort.SliceStable(callbacks, func(i, j int) bool { return callbacks[i].Version < callbacks[j].Version })

	cur := have
	for _, av := range callbacks {
		if av.Version > cur {
			if err := f.migrateSchema(ctx, c, cur, av.Version); err != nil {
				return err
			}
			cur = av.Version
		}
		if err := av.Fn(ctx, c); err != nil {
			return fmt.Errorf("failed to run callback after version %d: %w", av.Version, err)
		}
	}
	if cur < want {
		if err := f.migrateSchema(ctx, c, cur, want); err != nil {
			return err
		}
	}
	return setUserVersion(ctx, c, want)
}

func (f *Factory) migrateSchema(ctx context.Context, c *Connection, from, to int) error {
	f.logf("Migrating schema from version %d to %d", from, to)
	if err := f.schema.Migrate(ctx, c, from, to); err != nil {
		return fmt.Errorf("failed to migrate schema from %d to %d: %w", from, to, err)
	}
	return nil
}
