package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV(t *testing.T) {
	input := "zip,claims\n40422,100\n42501,25\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{{"40422", "100"}, {"42501", "25"}}, rows)
	assert.Equal(t, []string{"zip", "claims"}, <-headerCh)
}

func TestStreamCSVTabDelimited(t *testing.T) {
	input := "a\tb\tc\n1\t2\t3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
	})
	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestStreamCSVCommentsAndTrim(t *testing.T) {
	input := "# state totals\nKY , 98765\nTN,43210\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Comment:   '#',
		TrimSpace: true,
	})
	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, [][]string{{"KY", "98765"}, {"TN", "43210"}}, rows)
}

func TestStreamCSVVariableFieldCounts(t *testing.T) {
	input := "a,b,c\nshort,row\n1,2,3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows := collectRows(t, rowCh, errCh)
	assert.Len(t, rows, 3)
	assert.Len(t, rows[1], 2)
}

func TestStreamCSVCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}
