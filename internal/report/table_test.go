package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/llm"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestAggregate_ColumnDerivation(t *testing.T) {
	outcomes := []extract.Outcome{
		{
			Path: "batch1/cheque_001.jpg",
			Fields: []llm.Field{
				{FieldName: "amount_numeric", Value: strPtr("1500.00"), Confidence: floatPtr(0.97)},
			},
		},
		{
			Path: "batch1/cheque_002.jpg",
			Err:  "malformed model output after 3 attempts",
		},
	}

	table := Aggregate(outcomes, fields.Cheque)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"folder_name", "filepath", "amount_numeric", "amount_numeric_conf", "error"}, table.Columns)

	assert.Equal(t, "batch1", table.Rows[0]["folder_name"])
	assert.Equal(t, "cheque_001.jpg", table.Rows[0]["filepath"])
	assert.Equal(t, "1500.00", table.Rows[0]["amount_numeric"])
	assert.Equal(t, "0.97", table.Rows[0]["amount_numeric_conf"])
	assert.Empty(t, table.Rows[0]["error"])

	assert.Equal(t, "malformed model output after 3 attempts", table.Rows[1]["error"])
}

func TestAggregate_NoConfidenceMeansNoConfColumn(t *testing.T) {
	outcomes := []extract.Outcome{
		{Path: "a.jpg", Fields: []llm.Field{{FieldName: "bank_name", Value: strPtr("SBI")}}},
		{Path: "b.jpg", Fields: []llm.Field{{FieldName: "bank_name", Value: strPtr("HDFC BANK LTD")}}},
	}

	table := Aggregate(outcomes, fields.Cheque)

	assert.Equal(t, []string{"folder_name", "filepath", "bank_name"}, table.Columns)
	assert.NotContains(t, table.Columns, "bank_name_conf")
	assert.NotContains(t, table.Columns, "error")
}

func TestAggregate_NullValueStillClaimsValueColumn(t *testing.T) {
	// A field the model reported but could not read anywhere in the
	// batch: the value column must exist (empty) alongside its
	// sub-columns, never the sub-columns alone.
	outcomes := []extract.Outcome{
		{Path: "a.jpg", Fields: []llm.Field{
			{FieldName: "account_number", Value: nil, Confidence: floatPtr(0.1), Reason: strPtr("digits illegible")},
		}},
		{Path: "b.jpg", Fields: []llm.Field{
			{FieldName: "account_number", Value: nil, Confidence: floatPtr(0.2)},
		}},
	}

	table := Aggregate(outcomes, fields.Cheque)

	assert.Equal(t, []string{"folder_name", "filepath", "account_number", "account_number_conf", "account_number_reason"}, table.Columns)
	assert.Empty(t, table.Rows[0]["account_number"])
	assert.Equal(t, "0.1", table.Rows[0]["account_number_conf"])
}

func TestAggregate_ReasonColumnOnlyWhenPopulated(t *testing.T) {
	outcomes := []extract.Outcome{
		{Path: "a.jpg", Fields: []llm.Field{
			{FieldName: "date", Value: strPtr("2024-03-15"), Confidence: floatPtr(0.4), Reason: strPtr("date boxes smudged")},
			{FieldName: "payee_name", Value: strPtr("Ramesh Kumar"), Confidence: floatPtr(0.99)},
		}},
	}

	table := Aggregate(outcomes, fields.Cheque)

	assert.Contains(t, table.Columns, "date_reason")
	assert.NotContains(t, table.Columns, "payee_name_reason")
	assert.Equal(t, "date boxes smudged", table.Rows[0]["date_reason"])
}

func TestAggregate_DeclaredOrderAndUnknownKeysDropped(t *testing.T) {
	outcomes := []extract.Outcome{
		{Path: "a.jpg", Fields: []llm.Field{
			{FieldName: "IFSC", Value: strPtr("HDFC0000123")},
			{FieldName: "made_up_field", Value: strPtr("should never appear")},
			{FieldName: "bank_name", Value: strPtr("HDFC BANK LTD")},
		}},
	}

	table := Aggregate(outcomes, fields.Cheque)

	// Declared schema order, not reply order.
	assert.Equal(t, []string{"folder_name", "filepath", "bank_name", "IFSC"}, table.Columns)
	assert.NotContains(t, table.Columns, "made_up_field")
}

func TestAggregate_RowOrderFollowsOutcomes(t *testing.T) {
	outcomes := []extract.Outcome{
		{Path: "z/last_finished_first.jpg"},
		{Path: "a/first_finished_last.jpg"},
	}

	table := Aggregate(outcomes, fields.Cheque)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "last_finished_first.jpg", table.Rows[0]["filepath"])
	assert.Equal(t, "first_finished_last.jpg", table.Rows[1]["filepath"])
}

func TestAggregate_TopLevelEntriesGroupAsRoot(t *testing.T) {
	table := Aggregate([]extract.Outcome{{Path: "cheque.png"}}, fields.Cheque)
	assert.Equal(t, "root", table.Rows[0]["folder_name"])
}

func TestWriteCSV_Idempotent(t *testing.T) {
	outcomes := []extract.Outcome{
		{Path: "batch1/a.jpg", Fields: []llm.Field{
			{FieldName: "amount_numeric", Value: strPtr("1500.00"), Confidence: floatPtr(0.97)},
		}},
		{Path: "batch1/b.jpg", Err: "endpoint server_error (status 503): down"},
	}

	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")

	require.NoError(t, WriteCSV(Aggregate(outcomes, fields.Cheque), first))
	require.NoError(t, WriteCSV(Aggregate(outcomes, fields.Cheque), second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "re-aggregating the same outcomes must yield byte-identical reports")
}

func TestReadCSV_RoundTrip(t *testing.T) {
	outcomes := []extract.Outcome{
		{Path: "batch1/a.jpg", Fields: []llm.Field{
			{FieldName: "bank_name", Value: strPtr("SBI"), Confidence: floatPtr(0.9)},
		}},
		{Path: "batch1/b.jpg", Err: "boom"},
	}
	table := Aggregate(outcomes, fields.Cheque)

	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, WriteCSV(table, path))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, got.Columns)
	require.Len(t, got.Rows, len(table.Rows))
	assert.Equal(t, table.Rows[0]["bank_name"], got.Rows[0]["bank_name"])
	assert.Equal(t, table.Rows[1]["error"], got.Rows[1]["error"])
}

func TestRenderXLSX_ProducesWorkbook(t *testing.T) {
	table := Aggregate([]extract.Outcome{
		{Path: "a.jpg", Fields: []llm.Field{{FieldName: "bank_name", Value: strPtr("SBI")}}},
	}, fields.Cheque)

	workbook, err := RenderXLSX(table)
	require.NoError(t, err)
	assert.NotEmpty(t, workbook)
	// XLSX files are ZIP containers.
	assert.Equal(t, []byte{'P', 'K'}, workbook[:2])
}
