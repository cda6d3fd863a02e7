package tape

import (
	"fmt"

	apperrors "tapestrat/internal/errors"
)

func errColumnCount(names, cols int) error {
	return apperrors.NewParsingError(fmt.Sprintf("tape has %d column names but %d columns", names, cols), nil)
}

func errDuplicateColumn(name string) error {
	return apperrors.NewParsingError(fmt.Sprintf("duplicate tape column %q", name), nil).
		WithContext("column", name)
}

func errColumnLength(name string, got, want int) error {
	return apperrors.NewParsingError(fmt.Sprintf("column %q has %d values, expected %d", name, got, want), nil).
		WithContext("column", name)
}

func errBlankID(field string, row int) error {
	return apperrors.NewAppValidationError(fmt.Sprintf("row %d has a blank %s", row, field)).
		WithContext("row", row)
}

func errDuplicateID(field, id string, first, second int) error {
	return apperrors.NewAppValidationError(fmt.Sprintf("duplicate %s %q in rows %d and %d", field, id, first, second)).
		WithContext("id", id)
}
