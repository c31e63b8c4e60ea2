// Package console is a line-oriented front end over the view state. It
// validates input before anything reaches the core and re-renders the day
// whenever the expense list changes.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/viewstate"
)

const stripRadius = 3

var (
	errUsage       = errors.New("usage")
	errNoSuchEntry = errors.New("no such entry")
	errOutOfRange  = errors.New("day outside calendar range")
)

type Console struct {
	coord *viewstate.Coordinator
	in    io.Reader

	outMu sync.Mutex
	out   io.Writer

	loc        *time.Location
	now        func() time.Time
	undoWindow time.Duration
	months     int
	logger     *slog.Logger

	mu          sync.Mutex
	lastDeleted *core.Expense
	deletedAt   time.Time
}

type Option func(*Console)

func WithLocation(loc *time.Location) Option {
	return func(c *Console) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		if now != nil {
			c.now = now
		}
	}
}

// WithUndoWindow sets how long a deleted expense can be restored.
func WithUndoWindow(d time.Duration) Option {
	return func(c *Console) {
		if d > 0 {
			c.undoWindow = d
		}
	}
}

// WithCalendarMonths limits day selection to this many months either side
// of today.
func WithCalendarMonths(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.months = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(coord *viewstate.Coordinator, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		coord:      coord,
		in:         in,
		out:        out,
		loc:        time.Local,
		now:        time.Now,
		undoWindow: 4 * time.Second,
		months:     24,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run reads commands until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := c.coord.Expenses.Subscribe(c.render)
	defer unsubscribe()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		case line := <-lines:
			quit, err := c.Execute(line)
			if err != nil {
				c.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
			c.prompt()
		}
	}
}

// Execute runs one command line. User mistakes are returned as errors and
// leave the state untouched.
func (c *Console) Execute(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "add":
		return false, c.add(args)
	case "list", "ls":
		c.render(c.coord.Expenses.Get())
	case "day":
		return false, c.selectDay(args)
	case "today":
		c.coord.LoadExpensesForDate(core.DayOf(c.now(), c.loc))
	case "next":
		return false, c.moveTo(c.coord.SelectedDay.Get().AddDays(1))
	case "prev":
		return false, c.moveTo(c.coord.SelectedDay.Get().AddDays(-1))
	case "strip":
		c.strip()
	case "del", "rm":
		return false, c.del(args)
	case "undo":
		return false, c.undo()
	case "currency":
		return false, c.currency(args)
	case "theme":
		next := c.coord.ThemeMode.Get().Toggle()
		c.coord.UpdateThemeModeStatus(next)
		c.printf("Theme set to %s\n", next)
	case "help", "?":
		c.help()
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
	return false, nil
}

func (c *Console) add(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add <amount> <title>", errUsage)
	}
	amount, err := core.ParseAmount(args[0])
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[0], err)
	}
	e := core.Expense{
		Title:  strings.Join(args[1:], " "),
		Amount: amount,
		Date:   c.now(),
	}
	if err := e.Validate(); err != nil {
		return err
	}
	c.coord.InsertExpense(e.Title, e.Amount, e.Date)
	return nil
}

func (c *Console) selectDay(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: day <YYYY-MM-DD>", errUsage)
	}
	day, err := core.ParseDay(args[0])
	if err != nil {
		return err
	}
	return c.moveTo(day)
}

func (c *Console) moveTo(day core.Day) error {
	today := core.DayOf(c.now(), c.loc)
	if day.Before(today.AddMonths(-c.months)) || day.After(today.AddMonths(c.months)) {
		return fmt.Errorf("%s: %w", day, errOutOfRange)
	}
	c.coord.LoadExpensesForDate(day)
	return nil
}

func (c *Console) del(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: del <n>", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	rows := c.coord.Expenses.Get()
	if err != nil || n < 1 || n > len(rows) {
		return fmt.Errorf("%s: %w", args[0], errNoSuchEntry)
	}
	e := rows[n-1]

	c.mu.Lock()
	c.lastDeleted = &e
	c.deletedAt = c.now()
	c.mu.Unlock()

	c.coord.DeleteExpense(e)
	c.printf("Deleted %q. Type undo within %s to restore it.\n", e.Title, c.undoWindow)
	return nil
}

func (c *Console) undo() error {
	c.mu.Lock()
	deleted, at := c.lastDeleted, c.deletedAt
	c.lastDeleted = nil
	c.mu.Unlock()

	if deleted == nil || c.now().Sub(at) > c.undoWindow {
		return errors.New("nothing to undo")
	}
	c.coord.Undo(*deleted)
	c.printf("Restored %q\n", deleted.Title)
	return nil
}

func (c *Console) currency(args []string) error {
	current := c.coord.Currency.Get()
	if len(args) == 0 {
		for i, cur := range core.Currencies() {
			mark := " "
			if cur == current {
				mark = "*"
			}
			c.printf("%s %d. %s\n", mark, i+1, cur)
		}
		return nil
	}

	arg := strings.Join(args, " ")
	var chosen core.Currency
	if n, err := strconv.Atoi(arg); err == nil {
		all := core.Currencies()
		if n < 1 || n > len(all) {
			return fmt.Errorf("currency %d: %w", n, core.ErrInvalidCurrency)
		}
		chosen = all[n-1]
	} else {
		chosen, err = core.ParseCurrency(arg)
		if err != nil {
			return fmt.Errorf("currency %q: %w", arg, err)
		}
	}
	c.coord.UpdateCurrency(chosen)
	c.printf("Currency set to %s\n", chosen)
	return nil
}

func (c *Console) strip() {
	selected := c.coord.SelectedDay.Get()
	today := core.DayOf(c.now(), c.loc)
	var b strings.Builder
	for _, d := range core.Strip(selected, stripRadius) {
		label := fmt.Sprintf("%s %02d", d.Start(c.loc).Weekday().String()[:3], d.Day)
		switch {
		case d.Equal(selected):
			fmt.Fprintf(&b, "[%s] ", label)
		case d.Equal(today):
			fmt.Fprintf(&b, "(%s) ", label)
		default:
			fmt.Fprintf(&b, " %s  ", label)
		}
	}
	c.printf("%s %d\n%s\n", selected.Month, selected.Year, strings.TrimRight(b.String(), " "))
}

func (c *Console) render(rows []core.Expense) {
	day := c.coord.SelectedDay.Get()
	total := core.FormatTotal(c.coord.Currency.Get(), c.coord.Total.Get())

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s  Total: %s\n", day, total)
	if len(rows) == 0 {
		b.WriteString("  No expenses\n")
	}
	for i, e := range rows {
		fmt.Fprintf(&b, "  %d. %-24s %10s  %s\n", i+1, e.Title, e.Amount.StringFixed(2), e.Date.In(c.loc).Format("15:04"))
	}
	c.printf("%s", b.String())
}

func (c *Console) help() {
	c.printf(`Commands:
  add <amount> <title>   record an expense now
  list                   show the selected day
  day <YYYY-MM-DD>       select a day
  today | next | prev    move the selection
  strip                  show the days around the selection
  del <n>                delete entry n
  undo                   restore the last deleted entry
  currency [n|code]      list or choose the display currency
  theme                  toggle light and dark
  quit
`)
}

func (c *Console) prompt() {
	c.printf("> ")
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Warn("Console write failed", applog.FieldError, err)
	}
}
