package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ThemeLight ThemeMode = 0
	ThemeDark  ThemeMode = 1
)

const (
	IndianRupee   Currency = "₹ - Indian Rupee"
	USDollar      Currency = "$ - US Dollar"
	Euro          Currency = "€ - Euro"
	BritishPound  Currency = "£ - British Pound"
	JapaneseYen   Currency = "¥ - Japanese Yen"
	maxTitleRunes          = 200
)

type (
	// Currency is the display code of the global currency setting.
	Currency string

	// ThemeMode is the persisted theme flag: 0 light, 1 dark.
	ThemeMode int

	Expense struct {
		ID     int64 // 0 until the store assigns one
		Title  string
		Amount decimal.Decimal
		Date   time.Time
	}

	// Settings is the singleton preferences row.
	Settings struct {
		Currency  Currency
		ThemeMode ThemeMode
	}
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrStorage marks faults of the underlying storage medium.
	ErrStorage = errors.New("storage fault")
)

var currencies = []Currency{IndianRupee, USDollar, Euro, BritishPound, JapaneseYen}

// Currencies returns the selectable currencies in display order.
func Currencies() []Currency {
	return append([]Currency(nil), currencies...)
}

func (c Currency) Valid() bool {
	for _, known := range currencies {
		if c == known {
			return true
		}
	}
	return false
}

// Symbol returns the leading symbol of the code, e.g. "₹".
func (c Currency) Symbol() string {
	for _, r := range string(c) {
		return string(r)
	}
	return ""
}

// Name returns the human part of the code, e.g. "Indian Rupee".
func (c Currency) Name() string {
	if _, name, ok := strings.Cut(string(c), " - "); ok {
		return name
	}
	return string(c)
}

// ParseCurrency matches a full code, a symbol or a case-insensitive name.
func ParseCurrency(s string) (Currency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidCurrency
	}
	for _, c := range currencies {
		if s == string(c) || s == c.Symbol() || strings.EqualFold(s, c.Name()) {
			return c, nil
		}
	}
	return "", ErrInvalidCurrency
}

func (m ThemeMode) IsDark() bool {
	return m == ThemeDark
}

func (m ThemeMode) Toggle() ThemeMode {
	if m.IsDark() {
		return ThemeLight
	}
	return ThemeDark
}

func (m ThemeMode) Valid() bool {
	return m == ThemeLight || m == ThemeDark
}

func (m ThemeMode) String() string {
	if m.IsDark() {
		return "dark"
	}
	return "light"
}

// Millis returns the expense instant in epoch milliseconds.
func (e Expense) Millis() int64 {
	return e.Date.UnixMilli()
}

// Equivalent returns a copy without its id so that inserting it creates a
// new record.
func (e Expense) Equivalent() Expense {
	e.ID = 0
	return e
}

// Validate checks user input before it is handed to the core. The store
// itself never validates.
func (e Expense) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len([]rune(title)) > maxTitleRunes {
		return ErrTitleTooLong
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
