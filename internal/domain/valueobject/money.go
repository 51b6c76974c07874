package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/hive-backend/internal/pkg/apperror"
)

// Суммы хранятся в минимальных единицах валюты (центах), доля пчелы задаётся десятичной дробь.

// NewPrice проверяет цену задания. 0 означает бесплатное задание.
func NewPrice(amount int64) (int64, error) {
	if amount < 0 {
		return 0, apperror.New(apperror.ErrCodeValidation, "цена не может быть отрицательной")
	}
	return amount, nil
}

// ParseShare разбирает долю пчелы при split, допустимы значения строго между 0 и 1.
func ParseShare(raw string) (decimal.Decimal, error) {
	share, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "доля пчелы должна быть десятичным числом")
	}
	if err := ValidateShare(share); err != nil {
		return decimal.Zero, err
	}
	return share, nil
}

// ValidateShare проверяет диапазон (0, 1).
func ValidateShare(share decimal.Decimal) error {
	if share.LessThanOrEqual(decimal.Zero) || share.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperror.New(apperror.ErrCodeValidation, "доля пчелы должна быть в интервале (0, 1)")
	}
	return nil
}

// SplitAmount делит сумму: пчеле floor(amount*share), владельцу остаток. Сумма частей всегда равна amount.
func SplitAmount(amount int64, beeShare decimal.Decimal) (beePart, ownerPart int64, err error) {
	if amount < 0 {
		return 0, 0, fmt.Errorf("split amount: negative amount %d", amount)
	}
	if err := ValidateShare(beeShare); err != nil {
		return 0, 0, err
	}

	beePart = decimal.NewFromInt(amount).Mul(beeShare).Floor().IntPart()
	ownerPart = amount - beePart
	return beePart, ownerPart, nil
}
