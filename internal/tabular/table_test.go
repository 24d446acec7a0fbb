package tabular

import "testing"

func TestIsNumeric(t *testing.T) {
	table := &Table{
		Columns: []string{"num", "mixed", "thousands", "empty"},
		Rows: [][]string{
			{"1.5", "1", "1,200", ""},
			{"-3", "abc", "12,000.5", ""},
			{"", "2", "7", ""},
		},
	}

	if !table.IsNumeric(0) {
		t.Error("numeric column with blanks should be numeric")
	}
	if table.IsNumeric(1) {
		t.Error("mixed column should not be numeric")
	}
	if !table.IsNumeric(2) {
		t.Error("comma-grouped numbers should be numeric")
	}
	if table.IsNumeric(3) {
		t.Error("all-empty column should not be numeric")
	}
}

func TestIsDateTime(t *testing.T) {
	table := &Table{
		Columns: []string{"iso", "slash", "not_dates"},
		Rows: [][]string{
			{"2024-01-02 10:00:00", "01/02/2024", "tomorrow"},
			{"2024-01-03", "01/03/2024 12:30", "S1"},
		},
	}

	if !table.IsDateTime(0) {
		t.Error("ISO-style column should parse as datetime")
	}
	if !table.IsDateTime(1) {
		t.Error("slash-style column should parse as datetime")
	}
	if table.IsDateTime(2) {
		t.Error("free text should not parse as datetime")
	}
}

func TestUniqueRatio(t *testing.T) {
	table := &Table{
		Columns: []string{"station"},
		Rows: [][]string{
			{"S1"}, {"S1"}, {"S2"}, {"S2"}, {"S1"},
			{"S1"}, {"S2"}, {"S1"}, {"S2"}, {"S1"},
		},
	}

	if got := table.UniqueRatio(0); got != 0.2 {
		t.Errorf("unique ratio: expected 0.2, got %v", got)
	}
	if got := (&Table{Columns: []string{"x"}}).UniqueRatio(0); got != 0 {
		t.Errorf("empty table ratio: expected 0, got %v", got)
	}
}

func TestColumnHelpers(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Rows: [][]string{
			{"1", "x"},
			{"2"}, // short row
			{"3", "x"},
		},
	}

	if got := table.ColumnIndex("b"); got != 1 {
		t.Errorf("ColumnIndex(b): expected 1, got %d", got)
	}
	if got := table.ColumnIndex("missing"); got != -1 {
		t.Errorf("ColumnIndex(missing): expected -1, got %d", got)
	}
	if got := table.ColumnValues(1); len(got) != 2 {
		t.Errorf("ColumnValues(1): expected 2 values (short row skipped), got %v", got)
	}
	if got := table.UniqueValues(1); len(got) != 1 || got[0] != "x" {
		t.Errorf("UniqueValues(1): expected [x], got %v", got)
	}
}
