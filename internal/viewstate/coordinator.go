// Package viewstate owns the state a screen observes: the expenses of the
// selected day, their running total, the display currency and the theme.
//
// Derived state is never written by commands. Commands go to the repository
// and the results come back through the live subscriptions, so what is
// displayed is always what the store holds.
package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/observable"
)

// Repository is what the coordinator needs from the data layer.
type Repository interface {
	GetExpensesForDate(ctx context.Context, day core.Day) *observable.Stream[[]core.Expense]
	EnsureDefaultSettingsExist(ctx context.Context) error
	InsertExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, e core.Expense) error
	UpdateCurrency(ctx context.Context, c core.Currency) error
	UpdateThemeMode(ctx context.Context, m core.ThemeMode) error
	ObserveSettings(ctx context.Context) *observable.Stream[core.Settings]
}

type Coordinator struct {
	Expenses    *observable.Value[[]core.Expense]
	Total       *observable.Value[decimal.Decimal]
	Currency    *observable.Value[core.Currency]
	ThemeMode   *observable.Value[core.ThemeMode]
	SelectedDay *observable.Value[core.Day]

	repo    Repository
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
	onError func(error)

	ctx      context.Context
	cancel   context.CancelFunc
	streams  sync.WaitGroup
	commands sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	loadCancel context.CancelFunc

	// generation identifies the current day subscription; applyMu makes the
	// generation check and the state write one step.
	generation atomic.Uint64
	applyMu    sync.Mutex
}

type Option func(*Coordinator)

// WithLocation sets the time zone used to pick "today". Defaults to
// time.Local; it should match the repository's.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorHandler receives the storage faults of fire-and-forget commands
// and failed subscriptions. Faults are logged when no handler is set.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Coordinator) {
		c.onError = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New bootstraps the coordinator: it makes sure the settings row exists,
// starts observing it and loads today's expenses, in that order. ctx bounds
// the coordinator's lifetime together with Close.
func New(ctx context.Context, repo Repository, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		Expenses:    observable.NewValue([]core.Expense{}),
		Total:       observable.NewValue(decimal.Zero),
		Currency:    observable.NewValue(core.Currency("")),
		ThemeMode:   observable.NewValue(core.ThemeLight),
		SelectedDay: observable.NewValue(core.Day{}),
		repo:        repo,
		loc:         time.Local,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := repo.EnsureDefaultSettingsExist(c.ctx); err != nil {
		c.cancel()
		return nil, fmt.Errorf("ensure default settings: %w", err)
	}
	c.observeSettings()
	c.LoadExpensesForDate(core.DayOf(c.now(), c.loc))

	c.logger.InfoContext(ctx, "View state ready", applog.FieldDay, c.SelectedDay.Get().String())
	return c, nil
}

func (c *Coordinator) observeSettings() {
	stream := c.repo.ObserveSettings(c.ctx)
	c.streams.Add(1)
	go func() {
		defer c.streams.Done()
		defer stream.Close()
		for {
			select {
			case <-c.ctx.Done():
				return
			case s, ok := <-stream.Updates():
				if !ok {
					if err := stream.Err(); err != nil {
						c.fail("observe settings", err)
					}
					return
				}
				c.Currency.Set(s.Currency)
				c.ThemeMode.Set(s.ThemeMode)
			}
		}
	}()
}

// LoadExpensesForDate makes day the selected day. The previous day's
// subscription is cancelled first; anything it still delivers is dropped.
func (c *Coordinator) LoadExpensesForDate(day core.Day) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.loadCancel != nil {
		c.loadCancel()
	}
	gen := c.generation.Add(1)
	ctx, cancel := context.WithCancel(c.ctx)
	c.loadCancel = cancel
	c.streams.Add(1)
	c.mu.Unlock()

	c.selectDay(gen, day)
	stream := c.repo.GetExpensesForDate(ctx, day)

	go func() {
		defer c.streams.Done()
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case rows, ok := <-stream.Updates():
				if !ok {
					if err := stream.Err(); err != nil && ctx.Err() == nil {
						c.fail("load expenses for "+day.String(), err)
					}
					return
				}
				c.apply(gen, rows)
			}
		}
	}()
}

// selectDay publishes day unless a newer day has been selected since gen.
func (c *Coordinator) selectDay(gen uint64, day core.Day) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.generation.Load() != gen {
		return
	}
	c.SelectedDay.Set(day)
}

// apply publishes rows unless a newer day has been selected since gen.
// Total is set first so Expenses listeners read the matching total.
func (c *Coordinator) apply(gen uint64, rows []core.Expense) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.generation.Load() != gen {
		return
	}
	c.Total.Set(core.SumAmounts(rows))
	c.Expenses.Set(rows)
}

// InsertExpense saves a new expense. The caller validates title and amount.
func (c *Coordinator) InsertExpense(title string, amount decimal.Decimal, date time.Time) {
	e := core.Expense{Title: title, Amount: amount, Date: date}
	c.run("insert expense", func(ctx context.Context) error {
		return c.repo.InsertExpense(ctx, e)
	})
}

func (c *Coordinator) DeleteExpense(e core.Expense) {
	c.run("delete expense", func(ctx context.Context) error {
		return c.repo.DeleteExpense(ctx, e)
	})
}

// Undo re-creates a deleted expense under a new id.
func (c *Coordinator) Undo(deleted core.Expense) {
	e := deleted.Equivalent()
	c.run("undo delete", func(ctx context.Context) error {
		return c.repo.InsertExpense(ctx, e)
	})
}

func (c *Coordinator) UpdateCurrency(currency core.Currency) {
	c.run("update currency", func(ctx context.Context) error {
		return c.repo.UpdateCurrency(ctx, currency)
	})
}

func (c *Coordinator) UpdateThemeModeStatus(mode core.ThemeMode) {
	c.run("update theme", func(ctx context.Context) error {
		return c.repo.UpdateThemeMode(ctx, mode)
	})
}

// run executes a command in the background. It never blocks the caller.
func (c *Coordinator) run(op string, fn func(context.Context) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("Command dropped after close", applog.FieldOperation, op)
		return
	}
	c.commands.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.commands.Done()
		if err := fn(c.ctx); err != nil {
			c.fail(op, err)
		}
	}()
}

// fail reports err, wrapped with op, to the error handler or the log.
func (c *Coordinator) fail(op string, err error) {
	if c.onError != nil {
		c.onError(fmt.Errorf("%s: %w", op, err))
		return
	}
	c.logger.Error("View state command failed",
		applog.NewFields().WithOperation(op).WithError(err).ToSlice()...)
}

// Wait blocks until every command issued so far has finished. Live
// subscriptions keep running.
func (c *Coordinator) Wait() {
	c.commands.Wait()
}

// Close waits for in-flight commands, then tears down both subscriptions.
// Commands issued after Close are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.commands.Wait()
	c.cancel()
	c.streams.Wait()
}
