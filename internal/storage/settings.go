package storage

import (
	"context"
	"database/sql"
	"errors"

	"expensetracker/internal/core"
	"expensetracker/internal/observable"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetSettingsOnce returns the settings row; ok is false while it does not
// exist yet.
func (s *Store) GetSettingsOnce(ctx context.Context) (core.Settings, bool, error) {
	settings, ok, err := readSettings(ctx, s.db)
	if err != nil {
		return core.Settings{}, false, fault("get settings", err)
	}
	return settings, ok, nil
}

func readSettings(ctx context.Context, q querier) (core.Settings, bool, error) {
	var (
		currency string
		theme    int
	)
	err := q.QueryRowContext(ctx,
		`SELECT currency, themeModeStatus FROM settings ORDER BY id LIMIT 1`).Scan(&currency, &theme)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, false, nil
	}
	if err != nil {
		return core.Settings{}, false, err
	}
	return core.Settings{Currency: core.Currency(currency), ThemeMode: core.ThemeMode(theme)}, true, nil
}

// CreateSettingsIfAbsent inserts settings only when no row exists and
// reports whether it did.
func (s *Store) CreateSettingsIfAbsent(ctx context.Context, settings core.Settings) (bool, error) {
	var created bool
	err := s.write(ctx, "create settings", tableSettings, func(ctx context.Context) (bool, error) {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (currency, themeModeStatus)
			 SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM settings)`,
			string(settings.Currency), int(settings.ThemeMode))
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		created = n > 0
		return created, err
	})
	return created, err
}

// UpsertSettings replaces the settings row in place, creating it if absent.
func (s *Store) UpsertSettings(ctx context.Context, settings core.Settings) error {
	return s.write(ctx, "upsert settings", tableSettings, func(ctx context.Context) (bool, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return false, err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			`UPDATE settings SET currency = ?, themeModeStatus = ?`,
			string(settings.Currency), int(settings.ThemeMode))
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO settings (currency, themeModeStatus) VALUES (?, ?)`,
				string(settings.Currency), int(settings.ThemeMode)); err != nil {
				return false, err
			}
		}
		return true, tx.Commit()
	})
}

// UpdateCurrency sets the currency column. It is a no-op while the row is
// absent.
func (s *Store) UpdateCurrency(ctx context.Context, c core.Currency) error {
	return s.updateSettingsColumn(ctx, "update currency",
		`UPDATE settings SET currency = ?`, string(c))
}

// UpdateTheme sets the theme flag. It is a no-op while the row is absent.
func (s *Store) UpdateTheme(ctx context.Context, m core.ThemeMode) error {
	return s.updateSettingsColumn(ctx, "update theme",
		`UPDATE settings SET themeModeStatus = ?`, int(m))
}

func (s *Store) updateSettingsColumn(ctx context.Context, op, query string, arg any) error {
	return s.write(ctx, op, tableSettings, func(ctx context.Context) (bool, error) {
		res, err := s.db.ExecContext(ctx, query, arg)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n > 0, err
	})
}

// ObserveSettings delivers the settings row whenever it changes. Nothing is
// delivered until the row exists.
func (s *Store) ObserveSettings(ctx context.Context) *observable.Stream[core.Settings] {
	stream, sctx := observable.NewStream[core.Settings](ctx)
	if !s.startStream() {
		stream.Finish(ErrClosed)
		return stream
	}

	changes, unsubscribe := s.hub.subscribe(tableSettings)
	go func() {
		defer s.streams.Done()
		finish := func(err error) {
			unsubscribe()
			stream.Finish(err)
		}

		var (
			last core.Settings
			seen bool
		)
		for {
			settings, ok, err := readSettings(sctx, s.db)
			if err != nil {
				if sctx.Err() != nil {
					finish(nil)
				} else {
					finish(fault("observe settings", err))
				}
				return
			}
			if ok && (!seen || settings != last) {
				stream.Emit(settings)
				last, seen = settings, true
			}

			select {
			case <-changes:
			case <-sctx.Done():
				finish(nil)
				return
			case <-s.closing:
				finish(nil)
				return
			}
		}
	}()

	return stream
}
