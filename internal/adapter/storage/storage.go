package storage

import (
	"errors"
	"fmt"

	"fx-history-service/pkg/utils"
)

var ErrInvalidLimit = errors.New("query limit must be positive")

func validateDate(date string) error {
	if _, err := utils.ParseDate(date); err != nil {
		return fmt.Errorf("invalid rate date %q: %w", date, err)
	}
	return nil
}
