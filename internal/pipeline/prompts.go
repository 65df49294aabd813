package pipeline

import (
	"strings"

	"github.com/doculedger/doculedger/internal/domain"
)

// buildExtractionPrompt constructs the fixed instruction sent with every
// extraction request. The output contract is strict: a single JSON object,
// positive amounts, and categories limited to the canonical set.
func buildExtractionPrompt() string {
	var b strings.Builder

	b.WriteString("You are a financial document analyzer. Analyze this document ")
	b.WriteString("(invoice, bank statement, receipt, or transaction list) and extract ALL transactions.\n\n")

	b.WriteString("Return ONLY a valid JSON object with this exact structure:\n")
	b.WriteString("{\n")
	b.WriteString("  \"doc_type\": \"invoice|bank_statement|receipt|csv\",\n")
	b.WriteString("  \"currency\": \"SEK|USD|EUR|etc\",\n")
	b.WriteString("  \"summary\": \"brief description of the document\",\n")
	b.WriteString("  \"transactions\": [\n")
	b.WriteString("    {\n")
	b.WriteString("      \"date\": \"YYYY-MM-DD\",\n")
	b.WriteString("      \"description\": \"transaction description\",\n")
	b.WriteString("      \"amount\": 123.45,\n")
	b.WriteString("      \"category\": \"" + categoryList("|") + "\",\n")
	b.WriteString("      \"type\": \"expense|income\"\n")
	b.WriteString("    }\n")
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Extract every single transaction you can find.\n")
	b.WriteString("- Amounts must be positive numbers.\n")
	b.WriteString("- Use \"income\" for money received, \"expense\" for money spent.\n")
	b.WriteString("- Omit a transaction entirely if its date cannot be determined.\n")
	b.WriteString("- Categories must be exactly one of: " + categoryList(", ") + ".\n")
	b.WriteString("- Return ONLY raw JSON. Do NOT wrap the response in code fences.\n")
	b.WriteString("- Do NOT use ```json or any Markdown.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}

func categoryList(sep string) string {
	cats := domain.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, sep)
}
