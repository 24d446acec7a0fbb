package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTempCSV(t, "Station_ID , Date_Time,Result\nS1,2024-01-02 10:00:00,3.5\nS2,2024-01-02 11:00:00,4.1\n")

	table, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Station_ID", "Date_Time", "Result"}
	if len(table.Columns) != len(want) {
		t.Fatalf("columns: expected %v, got %v", want, table.Columns)
	}
	for i, c := range want {
		if table.Columns[i] != c {
			t.Errorf("column %d: expected %q (trimmed), got %q", i, c, table.Columns[i])
		}
	}
	if table.RowCount() != 2 {
		t.Errorf("rows: expected 2, got %d", table.RowCount())
	}
}

func TestReadCSVToleratesRaggedRows(t *testing.T) {
	path := writeTempCSV(t, "a,b,c\n1,2\n1,2,3,4\n")

	table, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.RowCount() != 2 {
		t.Errorf("rows: expected 2, got %d", table.RowCount())
	}
}

func TestReadEmptyCSVFails(t *testing.T) {
	path := writeTempCSV(t, "")
	if _, err := ReadFile(path); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestReadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Station_ID", "Date_Time", "Result"},
		{"S1", "2024-01-02 10:00:00", 3.5},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	table, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Columns) != 3 || table.Columns[0] != "Station_ID" {
		t.Errorf("unexpected columns: %v", table.Columns)
	}
	if table.RowCount() != 1 {
		t.Errorf("rows: expected 1, got %d", table.RowCount())
	}
}
