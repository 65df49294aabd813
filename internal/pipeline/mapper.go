package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrHeaderNotMapped means the CSV header row had no recognizable date or
// amount column. The caller falls back to AI extraction over the raw text
// instead of giving up on the file.
var ErrHeaderNotMapped = errors.New("csv header does not map to required fields (date, amount)")

// headerAliases maps each canonical field onto its known header spellings
// across the supported locales (English, Swedish, Spanish). This table is a
// versioned contract: adding a language means adding aliases, never renaming
// the canonical field names. Aliases are matched after normalization
// (lowercase, punctuation stripped).
var headerAliases = map[string][]string{
	"date": {
		"date", "transaction date", "posting date", "booking date", "value date",
		"datum", "transaktionsdatum", "bokforingsdatum",
		"fecha", "fecha de operacion",
	},
	"description": {
		"description", "details", "merchant", "payee", "narrative", "text", "memo",
		"beskrivning", "meddelande", "rubrik",
		"descripcion", "concepto",
	},
	"amount": {
		"amount", "value", "sum", "debit amount", "credit amount",
		"belopp", "summa",
		"cantidad", "importe",
	},
	"type": {
		"type", "transaction type", "debit credit", "direction",
		"typ", "transaktionstyp",
		"tipo",
	},
	"category": {
		"category",
		"kategori",
		"categoria",
	},
}

// Keyword sets used to read a type column. Sign of the amount decides when
// no keyword matches.
var (
	expenseKeywords = []string{"expense", "debit", "utgift", "köp", "gasto", "cargo"}
	incomeKeywords  = []string{"income", "credit", "inkomst", "insättning", "ingreso", "abono", "deposit"}
)

// columnMap holds the resolved header name for each canonical field. Empty
// string means the file has no such column.
type columnMap struct {
	date        string
	description string
	amount      string
	typ         string
	category    string
}

// MapRows maps heterogeneous CSV rows onto candidate transaction records
// (the same shape the extraction model produces) without invoking the AI
// model. Rows missing a parseable date or amount are skipped with a warning;
// the file aborts only when the header itself is unusable.
func MapRows(headers []string, rows []map[string]string) ([]map[string]any, []Warning, error) {
	cols := resolveColumns(headers)
	if cols.date == "" || cols.amount == "" {
		return nil, nil, ErrHeaderNotMapped
	}

	var warnings []Warning
	candidates := make([]map[string]any, 0, len(rows))

	for i, row := range rows {
		amount, err := parseAmount(row[cols.amount])
		if err != nil {
			warnings = append(warnings, Warning{
				Kind:    WarnRecordValidation,
				Message: fmt.Sprintf("row %d skipped: %v", i+1, err),
			})
			continue
		}

		date := strings.TrimSpace(row[cols.date])
		if date == "" {
			warnings = append(warnings, Warning{
				Kind:    WarnRecordValidation,
				Message: fmt.Sprintf("row %d skipped: missing date", i+1),
			})
			continue
		}

		candidate := map[string]any{
			"date":   date,
			"amount": amount,
		}
		if cols.description != "" {
			candidate["description"] = strings.TrimSpace(row[cols.description])
		}
		if cols.category != "" {
			candidate["category"] = strings.TrimSpace(row[cols.category])
		}
		if cols.typ != "" {
			if txType, ok := parseTypeColumn(row[cols.typ]); ok {
				candidate["type"] = txType
			}
		}

		candidates = append(candidates, candidate)
	}

	return candidates, warnings, nil
}

func resolveColumns(headers []string) columnMap {
	var cols columnMap
	assign := func(target *string, header string) {
		if *target == "" {
			*target = header
		}
	}

	for _, header := range headers {
		norm := normalizeHeader(header)
		if norm == "" {
			continue
		}
		switch {
		case matchesAlias(norm, headerAliases["date"]):
			assign(&cols.date, header)
		case matchesAlias(norm, headerAliases["description"]):
			assign(&cols.description, header)
		case matchesAlias(norm, headerAliases["amount"]):
			assign(&cols.amount, header)
		case matchesAlias(norm, headerAliases["type"]):
			assign(&cols.typ, header)
		case matchesAlias(norm, headerAliases["category"]):
			assign(&cols.category, header)
		}
	}
	return cols
}

// matchesAlias accepts an exact normalized match or an alias appearing as a
// word inside a longer header ("transaction amount (SEK)" still maps).
func matchesAlias(normalized string, aliases []string) bool {
	for _, alias := range aliases {
		if normalized == alias || strings.Contains(normalized, alias) {
			return true
		}
	}
	return false
}

// normalizeHeader lowercases a header, strips diacritic-free punctuation and
// collapses runs of whitespace, so "Fecha de operación:" and "fecha de
// operacion" compare equal.
func normalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(stripDiacritic(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripDiacritic folds the accented letters that appear in the supported
// locales' headers onto their ASCII base.
func stripDiacritic(r rune) rune {
	switch r {
	case 'å', 'ä', 'á', 'à':
		return 'a'
	case 'é', 'è':
		return 'e'
	case 'í':
		return 'i'
	case 'ö', 'ó':
		return 'o'
	case 'ú', 'ü':
		return 'u'
	case 'ñ':
		return 'n'
	default:
		return r
	}
}

// parseAmount reads a localized amount string: surrounding whitespace and
// embedded spaces are dropped, and a lone comma is treated as the decimal
// separator ("1 234,56" -> 1234.56). Mixed "1,234.56" keeps the dot.
func parseAmount(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ' ' {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, errors.New("missing amount")
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	return amount, nil
}

// parseTypeColumn reads an explicit type or debit/credit column. It returns
// false when the value matched no known keyword, leaving the decision to the
// amount's sign.
func parseTypeColumn(value string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(value))
	if norm == "" {
		return "", false
	}
	for _, kw := range expenseKeywords {
		if strings.Contains(norm, kw) {
			return "expense", true
		}
	}
	for _, kw := range incomeKeywords {
		if strings.Contains(norm, kw) {
			return "income", true
		}
	}
	return "", false
}
