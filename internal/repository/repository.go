// Package repository translates calendar days and semantic settings into
// store primitives. Apart from the day boundary computation and the
// settings bootstrap it forwards calls unchanged.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/observable"
	"expensetracker/internal/storage"
)

// Defaults for the settings row created on first run. They are defined
// nowhere else.
const (
	DefaultCurrency  = core.IndianRupee
	DefaultThemeMode = core.ThemeLight
)

// DefaultSettings is the row EnsureDefaultSettingsExist creates.
var DefaultSettings = core.Settings{Currency: DefaultCurrency, ThemeMode: DefaultThemeMode}

type Repository struct {
	store  *storage.Store
	loc    *time.Location
	logger *slog.Logger
}

type Option func(*Repository)

// WithLocation sets the time zone calendar days are cut in. Defaults to
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(store *storage.Store, opts ...Option) *Repository {
	r := &Repository{store: store, loc: time.Local, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the calendar time zone.
func (r *Repository) Location() *time.Location {
	return r.loc
}

// GetExpensesForDate streams the expenses dated on day, local midnight to
// local midnight, most recent first.
func (r *Repository) GetExpensesForDate(ctx context.Context, day core.Day) *observable.Stream[[]core.Expense] {
	start, end := day.Bounds(r.loc)
	r.logger.DebugContext(ctx, "Loading expenses for day",
		append(applog.NewFields().WithDay(day).ToSlice(), "start", start, "end", end)...)
	return r.store.QueryExpensesInRange(ctx, start, end)
}

// EnsureDefaultSettingsExist creates the settings row with the defaults if
// it does not exist. Calling it again leaves the row untouched.
func (r *Repository) EnsureDefaultSettingsExist(ctx context.Context) error {
	if _, ok, err := r.store.GetSettingsOnce(ctx); err != nil {
		return fmt.Errorf("read settings: %w", err)
	} else if ok {
		return nil
	}

	created, err := r.store.CreateSettingsIfAbsent(ctx, DefaultSettings)
	if err != nil {
		return fmt.Errorf("create default settings: %w", err)
	}
	if created {
		r.logger.InfoContext(ctx, "Default settings created",
			applog.NewFields().WithSettings(DefaultSettings).ToSlice()...)
	}
	return nil
}

func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) error {
	_, err := r.store.InsertExpense(ctx, e)
	return err
}

func (r *Repository) DeleteExpense(ctx context.Context, e core.Expense) error {
	return r.store.DeleteExpense(ctx, e)
}

func (r *Repository) UpdateCurrency(ctx context.Context, c core.Currency) error {
	return r.store.UpdateCurrency(ctx, c)
}

func (r *Repository) UpdateThemeMode(ctx context.Context, m core.ThemeMode) error {
	return r.store.UpdateTheme(ctx, m)
}

func (r *Repository) ObserveSettings(ctx context.Context) *observable.Stream[core.Settings] {
	return r.store.ObserveSettings(ctx)
}
