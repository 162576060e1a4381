package orders

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName       = "Pedidos"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeaders = []string{"ID", "Descrição", "Valor", "Pago", "Status", "Telefone", "Criado em"}

// Workbook renders orders as an XLSX file, one order per row.
func Workbook(list []Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	for i, o := range list {
		row := i + 2
		paid := "Não"
		if o.Paid {
			paid = "Sim"
		}
		values := []any{o.ID, o.Description, o.Amount, paid, o.StatusOrDefault(), o.Phone, o.CreatedAt.Format("02/01/2006 15:04")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
