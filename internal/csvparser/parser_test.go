package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_HeaderAndRecords(t *testing.T) {
	input := "\uFEFFSource,Drawing Number\n" +
		`C:\dwg\A-100.dwg,B-100` + "\n" +
		",\n" +
		`"C:\dwg\A, 200.dwg",B-200` + "\n"

	table, err := parse(strings.NewReader(input), "list.csv", config.CSVSettings{Delimiter: ","})
	require.NoError(t, err)

	assert.Equal(t, []string{"Source", "Drawing Number"}, table.Headers)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 2, table.Records[0].SheetRow)
	assert.Equal(t, `C:\dwg\A-100.dwg`, table.Records[0].Cell(0))
	assert.Equal(t, 4, table.Records[1].SheetRow)
	assert.Equal(t, `C:\dwg\A, 200.dwg`, table.Records[1].Cell(0))
	assert.Equal(t, "B-200", table.Records[1].Cell(1))
}

func TestParse_HeaderRowAndDelimiterAlias(t *testing.T) {
	input := "Drawing list for project 42\n" +
		"Source\tDrawing Number\n" +
		"a.dwg\tB-1\n"

	table, err := parse(strings.NewReader(input), "list.txt", config.CSVSettings{Delimiter: "tab", HeaderRow: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"Source", "Drawing Number"}, table.Headers)
	require.Len(t, table.Records, 1)
	assert.Equal(t, 3, table.Records[0].SheetRow)
	assert.Equal(t, "B-1", table.Records[0].Cell(1))
}

func TestParse_CommentLines(t *testing.T) {
	input := "Source;Drawing Number\n# skipped\na.dwg;B-1\n"

	table, err := parse(strings.NewReader(input), "list.csv", config.CSVSettings{Delimiter: ";", Comment: "#"})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "a.dwg", table.Records[0].Cell(0))
}

func TestParse_NoHeader(t *testing.T) {
	_, err := parse(strings.NewReader(""), "empty.csv", config.CSVSettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.csv")
	require.NoError(t, os.WriteFile(path, []byte("Source,Drawing Number\na.dwg,B-1\n"), 0644))

	table, err := Parse(path, config.CSVSettings{Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, path, table.SourceFile)
	assert.Len(t, table.Records, 1)

	_, err = Parse(filepath.Join(t.TempDir(), "missing.csv"), config.CSVSettings{})
	assert.Error(t, err)
}
