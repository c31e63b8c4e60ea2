package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/observable"
)

// InsertExpense stores e. An ID of 0 lets SQLite assign a fresh id; any
// other ID replaces the row holding it. The stored id is returned.
func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	var id int64
	err := s.write(ctx, "insert expense", tableExpenses, func(ctx context.Context) (bool, error) {
		var idArg any
		if e.ID != 0 {
			idArg = e.ID
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO expenses (id, title, amount, date) VALUES (?, ?, ?, ?)`,
			idArg, e.Title, e.Amount.InexactFloat64(), e.Millis())
		if err != nil {
			return false, err
		}
		id, err = res.LastInsertId()
		return true, err
	})
	if err != nil {
		return 0, err
	}

	saved := e
	saved.ID = id
	s.logger.DebugContext(ctx, "Expense saved",
		append(applog.NewFields().WithExpense(saved).ToSlice(), applog.FieldDate, e.Millis())...)

	return id, nil
}

// DeleteExpense removes the row with e's id. Deleting a missing row is not
// an error.
func (s *Store) DeleteExpense(ctx context.Context, e core.Expense) error {
	return s.write(ctx, "delete expense", tableExpenses, func(ctx context.Context) (bool, error) {
		res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, e.ID)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			s.logger.DebugContext(ctx, "Expense to delete not found", applog.FieldExpenseID, e.ID)
		}
		return n > 0, nil
	})
}

// ExpensesInRange returns the expenses dated within [start, end] epoch
// milliseconds, most recent first.
func (s *Store) ExpensesInRange(ctx context.Context, start, end int64) ([]core.Expense, error) {
	version := s.hub.version(tableExpenses)
	key := fmt.Sprintf("%d:%d:%d", start, end, version)
	if s.cache != nil {
		if rows, ok := s.cache.Get(key); ok {
			return append([]core.Expense(nil), rows...), nil
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, amount, date FROM expenses
		 WHERE date BETWEEN ? AND ?
		 ORDER BY date DESC, id DESC`, start, end)
	if err != nil {
		return nil, fault("query expenses", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e      core.Expense
			amount float64
			millis int64
		)
		if err := rows.Scan(&e.ID, &e.Title, &amount, &millis); err != nil {
			return nil, fault("scan expense", err)
		}
		e.Amount = decimal.NewFromFloat(amount)
		e.Date = time.UnixMilli(millis)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("query expenses", err)
	}

	if s.cache != nil {
		s.cache.Set(key, append([]core.Expense(nil), expenses...))
	}
	return expenses, nil
}

// QueryExpensesInRange is the live form of ExpensesInRange: the stream
// delivers the current result at once and the full result again after every
// committed change to the expenses table.
func (s *Store) QueryExpensesInRange(ctx context.Context, start, end int64) *observable.Stream[[]core.Expense] {
	stream, sctx := observable.NewStream[[]core.Expense](ctx)
	if !s.startStream() {
		stream.Finish(ErrClosed)
		return stream
	}

	// Subscribe before the first query so no commit between the two is missed
	changes, unsubscribe := s.hub.subscribe(tableExpenses)
	go func() {
		defer s.streams.Done()
		finish := func(err error) {
			unsubscribe()
			stream.Finish(err)
		}

		for {
			expenses, err := s.ExpensesInRange(sctx, start, end)
			if err != nil {
				if sctx.Err() != nil {
					err = nil
				}
				finish(err)
				return
			}
			stream.Emit(expenses)

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
