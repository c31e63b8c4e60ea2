package log

import (
	"expensetracker/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldExpenseID = "expense_id"
	FieldTitle     = "title"
	FieldAmount    = "amount"
	FieldDay       = "day"
	FieldDate      = "date"
	FieldCurrency  = "currency"
	FieldThemeMode = "theme_mode"
	FieldPath      = "path"
	FieldVersion   = "schema_version"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentStore      = "store"
	ComponentRepository = "repository"
	ComponentViewState  = "viewstate"
	ComponentConsole    = "console"
	ComponentCache      = "cache"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds the fields identifying an expense record.
func (f LogFields) WithExpense(e core.Expense) LogFields {
	if e.ID != 0 {
		f[FieldExpenseID] = e.ID
	}
	f[FieldTitle] = e.Title
	f[FieldAmount] = e.Amount.String()
	return f
}

// WithDay adds the calendar day field.
func (f LogFields) WithDay(day core.Day) LogFields {
	f[FieldDay] = day.String()
	return f
}

// WithSettings adds the settings fields.
func (f LogFields) WithSettings(s core.Settings) LogFields {
	f[FieldCurrency] = string(s.Currency)
	f[FieldThemeMode] = s.ThemeMode.String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
