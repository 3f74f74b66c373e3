package exportsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/alama/core/grade"
)

func TestExcelExporter_Export(t *testing.T) {
	updated := time.Date(2024, 6, 30, 14, 5, 0, 0, time.UTC)
	grades := []grade.Grade{
		{Course: "Algebra", Grade: 12.5, UpdatedAt: updated},
		{Course: "Physics", Grade: 0, UpdatedAt: updated},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter().Export(&buf, grades))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Course", "Grade", "Updated"},
		{"Algebra", "12.5", "2024-06-30 14:05"},
		{"Physics", "0", "2024-06-30 14:05"},
	}, rows)
}

func TestExcelExporter_Export_empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter().Export(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{headers}, rows)
}
