package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	return rows, <-errCh
}

func TestStreamCSV_SemicolonDelimited(t *testing.T) {
	input := "123456789;ACME SCI;75;102\n;DUPONT;75;103\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
	})

	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"123456789", "ACME SCI", "75", "102"}, rows[0])
	assert.Equal(t, "", rows[1][0])
}

func TestStreamCSV_HeaderRow(t *testing.T) {
	input := "siren;denomination\n123456789;ACME\n"
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"siren", "denomination"}, <-headerCh)
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " 123456789 , ACME \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		TrimSpace: true,
	})

	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"123456789", "ACME"}, rows[0])
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\nc,d\n"), CSVOptions{})
	_, err := collect(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
