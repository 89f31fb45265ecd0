package llm

import (
	"strings"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
)

// guidance carries per-field extraction instructions sent to the model.
// Fields without an entry get the generic instruction only.
var guidance = map[string]string{
	"bank_name": "The official name of the issuing bank, usually the most prominent " +
		"text in the top-left quadrant next to the bank logo. Prefer the issuing bank " +
		"over clearing stamps and never confuse it with the payee. Normalize to the " +
		"registered name (e.g. 'HDFC Bank' -> 'HDFC BANK LTD').",
	"bank_branch": "The branch name or location printed directly below or next to the " +
		"bank name, often after a 'Branch:' or IFSC label. Combine consecutive lines " +
		"when the branch address is split.",
	"account_number": "The customer account number, near labels like 'A/C No.' or " +
		"'Account No.', typically 9-18 digits. Remove spaces and hyphens. Output " +
		"'Not Found' when definitively absent.",
	"date": "The issue date from the DD MM YYYY boxes in the top-right corner. " +
		"Read digit by digit, using the box structure as the guide, and output " +
		"YYYY-MM-DD.",
	"payee_name": "The party the cheque is payable to, on the line starting with " +
		"'PAY' or 'PAY TO'. Exclude the label itself and any trailing 'OR BEARER'.",
	"amount_words": "The amount written out in words on the 'RUPEES' line, combined " +
		"across lines, excluding the word 'only' decorations.",
	"amount_numeric": "The courtesy amount inside the box on the right, digits and " +
		"decimal point only, without currency symbols or grouping commas.",
	"currency": "The currency of the cheque as a short code, INR unless the layout " +
		"clearly indicates a foreign-currency instrument.",
	"issuer_name": "The account holder who signed the cheque, printed near the " +
		"signature area at the bottom right, above or below the signature line.",
	"IFSC": "The 11-character IFSC code (4 letters, a zero, 6 alphanumerics), " +
		"usually near the branch details.",
	"micr_scan_instrument_number": "From the MICR band at the bottom: the leading " +
		"6-digit cheque/instrument number between ⑆ symbols.",
	"micr_scan_payee_details": "From the MICR band: the 9-digit city-bank-branch " +
		"sort code between ⑆ and ⑉ symbols.",
	"micr_scan_micr_acno": "From the MICR band: the 6-digit account-related field " +
		"following the sort code.",
	"micr_scan_instrument_type": "From the MICR band: the trailing 2-digit " +
		"transaction/instrument type code.",
}

// BuildInstruction assembles the instruction text for one cheque image
// from the declared field schema. The reply contract at the end is what
// DecodePayload later enforces.
func BuildInstruction(defs []fields.Definition) string {
	var b strings.Builder
	b.WriteString("You are a meticulous bank cheque data extraction system. ")
	b.WriteString("Analyze the attached scanned cheque image and extract the fields listed below. ")
	b.WriteString("Read printed and handwritten text, tolerate skew and poor scan quality, ")
	b.WriteString("and use cross-field checks (IFSC prefix vs bank name, amount words vs numeric) ")
	b.WriteString("to resolve ambiguity.\n\nFields to extract:\n")

	for _, d := range defs {
		b.WriteString("- ")
		b.WriteString(d.Name)
		if g, ok := guidance[d.Name]; ok {
			b.WriteString(": ")
			b.WriteString(g)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nReply with ONLY a JSON object, no commentary, of the form:\n")
	b.WriteString(`{
  "full_text": "<all legible text on the cheque>",
  "extracted_fields": [
    {
      "field_name": "<one of the field names above>",
      "value": "<extracted value, or null if not found>",
      "confidence": <0.0-1.0>,
      "source_text": "<the exact text span the value came from, or null>",
      "reason": "<mandatory when confidence is below 0.8: why it is uncertain>",
      "language": "<language of the source text, or null>"
    }
  ]
}`)
	b.WriteString("\nInclude exactly one entry per requested field, in the order listed.")
	return b.String()
}
