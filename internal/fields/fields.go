// Package fields declares the fixed schema of values extracted from a
// cheque scan. The report's columns are bounded by this list: keys the
// model invents outside of it are never projected into the output.
package fields

// Normalization selects the post-processing transform applied to an
// extracted value before it is reported.
type Normalization int

const (
	NormalizeNone Normalization = iota
	NormalizeDate
	NormalizeAmount
)

// Definition describes one field the model is asked to extract.
type Definition struct {
	ID        int
	Name      string
	Normalize Normalization
}

// Cheque is the declared cheque field schema, in report column order.
var Cheque = []Definition{
	{ID: 1, Name: "bank_name"},
	{ID: 2, Name: "bank_branch"},
	{ID: 3, Name: "account_number"},
	{ID: 4, Name: "date", Normalize: NormalizeDate},
	{ID: 5, Name: "payee_name"},
	{ID: 6, Name: "amount_words"},
	{ID: 7, Name: "amount_numeric", Normalize: NormalizeAmount},
	{ID: 8, Name: "currency"},
	{ID: 9, Name: "issuer_name"},
	{ID: 10, Name: "IFSC"},
	{ID: 11, Name: "micr_scan_instrument_number"},
	{ID: 12, Name: "micr_scan_payee_details"},
	{ID: 13, Name: "micr_scan_micr_acno"},
	{ID: 14, Name: "micr_scan_instrument_type"},
}
