package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/doculedger/doculedger/internal/domain"
)

// dateLayouts are the formats accepted for the date field. The contract asks
// for ISO dates; the rest cover what models and bank exports actually emit.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02.01.2006",
	"2006-01-02T15:04:05Z07:00",
}

// normalizeRecord coerces one raw candidate record into a validated
// rawTransaction. A rejected record returns an error describing the defect;
// the caller converts it into a warning and drops the record.
func normalizeRecord(m map[string]any) (*rawTransaction, error) {
	dateStr, err := getStringField(m, "date", true)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}

	amount, err := getNumberField(m, "amount")
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("zero amount")
	}

	desc, err := getStringField(m, "description", false)
	if err != nil {
		return nil, err
	}

	txType := parseType(m, amount)

	categoryLabel, err := getStringField(m, "category", false)
	if err != nil {
		return nil, err
	}

	return &rawTransaction{
		Date:        date,
		Description: strings.TrimSpace(desc),
		Amount:      math.Abs(amount),
		Type:        txType,
		Category:    domain.CoerceCategory(categoryLabel),
	}, nil
}

// parseType reads the record's type field, falling back to the amount's
// sign: negative means expense, positive means income.
func parseType(m map[string]any, amount float64) domain.TransactionType {
	if v, ok := m["type"]; ok {
		if s, ok := v.(string); ok {
			switch domain.TransactionType(strings.ToLower(strings.TrimSpace(s))) {
			case domain.TypeIncome:
				return domain.TypeIncome
			case domain.TypeExpense:
				return domain.TypeExpense
			}
		}
	}
	if amount < 0 {
		return domain.TypeExpense
	}
	return domain.TypeIncome
}

func parseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("invalid date %q", s)
}

func getStringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getNumberField reads a required numeric field. Models occasionally quote
// numbers, so numeric strings are accepted too.
func getNumberField(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %q", key, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}
