package exportsvc

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/alama/core/grade"
)

const (
	sheetName = "Grades"
	timeFmt   = "2006-01-02 15:04"
)

var headers = []string{"Course", "Grade", "Updated"}

// ExcelExporter writes grades to an .xlsx workbook.
type ExcelExporter struct{}

var _ grade.Exporter = (*ExcelExporter)(nil) // interface compliance check

func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

func (ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (ExcelExporter) Extension() string { return ".xlsx" }

func (ExcelExporter) Export(w io.Writer, grades []grade.Grade) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()

	if err = f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	for col, h := range headers {
		if err = setCell(f, col+1, 1, h); err != nil {
			return err
		}
	}
	for i, grd := range grades {
		row := i + 2
		if err = setCell(f, 1, row, grd.Course); err != nil {
			return err
		}
		if err = setCell(f, 2, row, grd.Grade); err != nil {
			return err
		}
		if err = setCell(f, 3, row, grd.UpdatedAt.Format(timeFmt)); err != nil {
			return err
		}
	}

	if err = f.SetColWidth(sheetName, "A", "A", 32); err != nil {
		return errors.Wrap(err, "sizing columns")
	}
	if err = f.SetColWidth(sheetName, "C", "C", 18); err != nil {
		return errors.Wrap(err, "sizing columns")
	}

	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return errors.Wrap(err, "naming cell")
	}
	return errors.Wrapf(f.SetCellValue(sheetName, cell, value), "setting cell %s", cell)
}
