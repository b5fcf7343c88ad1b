package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

const auditSheet = "Audit"

var auditColumns = []struct {
	title string
	width float64
}{
	{"#", 6},
	{"Time (UTC)", 22},
	{"User", 20},
	{"Action", 16},
	{"From", 12},
	{"To", 12},
	{"Details", 60},
}

// AuditExport is a rendered workbook
type AuditExport struct {
	Filename string
	Content  *bytes.Buffer
}

func renderAuditWorkbook(req *entity.Request, logs []*entity.AuditLog, names map[int64]string) (*AuditExport, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(auditSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	for i, col := range auditColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(auditSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	lastCol := len(auditColumns)

	// Title row
	title := fmt.Sprintf("Request #%d: %s (%s, %d)", req.ID, req.Title, req.Status, req.Amount)
	if err := f.SetCellValue(auditSheet, "A1", title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	titleEnd, err := cellName(lastCol, 1)
	if err != nil {
		return nil, err
	}
	if err := f.MergeCell(auditSheet, "A1", titleEnd); err != nil {
		return nil, fmt.Errorf("merge title: %w", err)
	}

	row := 2
	for i, col := range auditColumns {
		name, err := cellName(i+1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(auditSheet, name, col.title); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	headerEnd, err := cellName(lastCol, row)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(auditSheet, "A2", headerEnd, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, l := range logs {
		row++
		from := ""
		if l.FromStatus != nil {
			from = l.FromStatus.String()
		}
		details, err := json.Marshal(l.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata of entry %d: %w", l.ID, err)
		}

		values := []interface{}{
			i + 1,
			l.CreatedAt.UTC().Format(time.DateTime),
			userLabel(l.UserID, names[l.UserID]),
			l.Action,
			from,
			l.ToStatus.String(),
			string(details),
		}
		for c, v := range values {
			name, err := cellName(c+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(auditSheet, name, v); err != nil {
				return nil, fmt.Errorf("write cell: %w", err)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return &AuditExport{
		Filename: fmt.Sprintf("request_%d_audit.xlsx", req.ID),
		Content:  buf,
	}, nil
}

func userLabel(id int64, name string) string {
	if name == "" {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("%s (#%d)", name, id)
}

func cellName(col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("cell name: %w", err)
	}
	return name, nil
}
