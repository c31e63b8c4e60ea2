package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/observable"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "data", "expenses.db")
	}
	s, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func expense(title, amount string, at time.Time) core.Expense {
	return core.Expense{Title: title, Amount: decimal.RequireFromString(amount), Date: at}
}

// next waits for the next emission of a stream.
func next[T any](t *testing.T, s *observable.Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.Updates():
		if !ok {
			t.Fatalf("stream ended: %v", s.Err())
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("no emission within 2s")
	}
	var zero T
	return zero
}

func titles(list []core.Expense) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	s := openTestStore(t, Options{Path: path})

	version, dirty, err := SchemaVersion(DSN(path))
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("version=%d dirty=%v, want 2 clean", version, dirty)
	}

	// Reopening an up-to-date database is fine
	s.Close()
	s2, err := Open(context.Background(), Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2.Close()
}

func TestInsertAndRangeOrderedDescending(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	id1, err := s.InsertExpense(ctx, expense("Coffee", "4.50", base))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id2, err := s.InsertExpense(ctx, expense("Lunch", "12.00", base.Add(4*time.Hour)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Fatalf("ids not distinct: %d %d", id1, id2)
	}

	got, err := s.ExpensesInRange(ctx, base.UnixMilli(), base.Add(5*time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if !equalStrings(titles(got), []string{"Lunch", "Coffee"}) {
		t.Fatalf("order = %v", titles(got))
	}
	if got[1].ID != id1 || !got[1].Amount.Equal(decimal.RequireFromString("4.5")) {
		t.Fatalf("coffee row = %+v", got[1])
	}
	if got[0].Millis() != base.Add(4*time.Hour).UnixMilli() {
		t.Fatalf("date round trip lost precision: %d", got[0].Millis())
	}
}

func TestRangeIsClosedInterval(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Millisecond)

	for _, e := range []core.Expense{
		expense("before", "1", start.Add(-time.Millisecond)),
		expense("first", "1", start),
		expense("last", "1", end),
		expense("after", "1", end.Add(time.Millisecond)),
	} {
		if _, err := s.InsertExpense(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.ExpensesInRange(ctx, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if !equalStrings(titles(got), []string{"last", "first"}) {
		t.Fatalf("titles = %v", titles(got))
	}
}

func TestInsertWithExistingIDReplaces(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	id, err := s.InsertExpense(ctx, expense("Coffee", "4.50", at))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	replacement := expense("Tea", "3.00", at)
	replacement.ID = id
	if got, err := s.InsertExpense(ctx, replacement); err != nil || got != id {
		t.Fatalf("replace: id=%d err=%v", got, err)
	}

	got, _ := s.ExpensesInRange(ctx, at.UnixMilli(), at.UnixMilli())
	if len(got) != 1 || got[0].Title != "Tea" || got[0].ID != id {
		t.Fatalf("rows = %+v", got)
	}
}

func TestDeleteExpense(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	id, _ := s.InsertExpense(ctx, expense("Coffee", "4.50", at))
	if err := s.DeleteExpense(ctx, core.Expense{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.ExpensesInRange(ctx, at.UnixMilli(), at.UnixMilli())
	if len(got) != 0 {
		t.Fatalf("row still present: %+v", got)
	}

	if err := s.DeleteExpense(ctx, core.Expense{ID: 9999}); err != nil {
		t.Fatalf("deleting a missing id should be a no-op, got %v", err)
	}
}

func TestLiveRangeQueryReemitsOnChange(t *testing.T) {
	s := openTestStore(t, Options{CacheSize: 16})
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	start, end := day.UnixMilli(), day.Add(24*time.Hour).UnixMilli()-1

	stream := s.QueryExpensesInRange(ctx, start, end)
	defer stream.Close()

	if got := next(t, stream); len(got) != 0 {
		t.Fatalf("initial = %v", titles(got))
	}

	id, _ := s.InsertExpense(ctx, expense("Coffee", "4.50", day.Add(9*time.Hour)))
	if got := next(t, stream); !equalStrings(titles(got), []string{"Coffee"}) {
		t.Fatalf("after insert = %v", titles(got))
	}

	s.InsertExpense(ctx, expense("Lunch", "12.00", day.Add(13*time.Hour)))
	if got := next(t, stream); !equalStrings(titles(got), []string{"Lunch", "Coffee"}) {
		t.Fatalf("after second insert = %v", titles(got))
	}

	s.DeleteExpense(ctx, core.Expense{ID: id})
	if got := next(t, stream); !equalStrings(titles(got), []string{"Lunch"}) {
		t.Fatalf("after delete = %v", titles(got))
	}
}

func TestLiveRangeQueryEndsOnClose(t *testing.T) {
	s := openTestStore(t, Options{})
	stream := s.QueryExpensesInRange(context.Background(), 0, 1)
	next(t, stream)

	stream.Close()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream.Updates():
			if !ok {
				if stream.Err() != nil {
					t.Fatalf("unexpected err: %v", stream.Err())
				}
				if n := s.hub.subscribers(tableExpenses); n != 0 {
					t.Fatalf("subscribers left: %d", n)
				}
				return
			}
		case <-deadline:
			t.Fatalf("stream not finished after Close")
		}
	}
}

func TestStoreCloseEndsStreams(t *testing.T) {
	s, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stream := s.QueryExpensesInRange(context.Background(), 0, 1)
	next(t, stream)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-stream.Updates(); ok {
		t.Fatalf("stream still open after store close")
	}

	if _, err := s.InsertExpense(context.Background(), expense("x", "1", time.Now())); !errors.Is(err, ErrClosed) {
		t.Fatalf("insert after close: %v", err)
	}
	if late := s.QueryExpensesInRange(context.Background(), 0, 1); !errors.Is(late.Err(), ErrClosed) {
		t.Fatalf("query after close: %v", late.Err())
	}
}

func TestStorageFaultsAreMarked(t *testing.T) {
	s := openTestStore(t, Options{})
	s.db.Close() // medium unavailable

	_, err := s.InsertExpense(context.Background(), expense("x", "1", time.Now()))
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected storage fault, got %v", err)
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Op != "insert expense" {
		t.Fatalf("expected *Error with op, got %#v", err)
	}

	stream := s.QueryExpensesInRange(context.Background(), 0, 1)
	if _, ok := <-stream.Updates(); ok {
		t.Fatalf("expected stream to fail")
	}
	if !errors.Is(stream.Err(), core.ErrStorage) {
		t.Fatalf("stream err = %v", stream.Err())
	}
}

func TestConcurrentWritesAreSerialized(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.InsertExpense(ctx, expense("e", "1", at.Add(time.Duration(i)*time.Second))); err != nil {
				t.Errorf("insert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.ExpensesInRange(ctx, at.UnixMilli(), at.Add(time.Minute).UnixMilli())
	if err != nil || len(got) != 20 {
		t.Fatalf("rows=%d err=%v", len(got), err)
	}
	if total := core.SumAmounts(got); !total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("total = %s", total)
	}
}

func TestRangeCacheNeverServesStaleRows(t *testing.T) {
	s := openTestStore(t, Options{CacheSize: 4, CacheTTL: time.Hour})
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first, _ := s.ExpensesInRange(ctx, 0, at.UnixMilli())
	if len(first) != 0 {
		t.Fatalf("expected empty")
	}
	s.InsertExpense(ctx, expense("Coffee", "4.50", at))

	got, _ := s.ExpensesInRange(ctx, 0, at.UnixMilli())
	if len(got) != 1 {
		t.Fatalf("cache served stale rows: %v", titles(got))
	}

	// Mutating a result must not leak into the cache
	got[0].Title = "mutated"
	again, _ := s.ExpensesInRange(ctx, 0, at.UnixMilli())
	if again[0].Title != "Coffee" {
		t.Fatalf("cache entry aliased caller slice")
	}
	if s.RangeCache() == nil {
		t.Fatalf("cache should be enabled")
	}
}

func TestStoreLogsThroughConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentStore, Output: &buf})
	s := openTestStore(t, Options{Logger: logger.Logger})
	ctx := context.Background()

	id, err := s.InsertExpense(ctx, expense("Coffee", "4.50", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteExpense(ctx, core.Expense{ID: id + 100}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Store opened",
		"Expense saved",
		fmt.Sprintf("expense_id=%d", id),
		"title=Coffee",
		"amount=4.5",
		fmt.Sprintf("expense_id=%d", id+100),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "component=app") {
		t.Errorf("store records fell back to the default logger:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.Contains(line, "component=store") {
			t.Errorf("record without store component: %s", line)
		}
	}
}
