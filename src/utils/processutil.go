package utils

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// DateLayout 源数据中日期的格式
const DateLayout = "2006-01-02"

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return ColumnName(df, name) != ""
}

// ColumnName 按去空格后的列名查找DataFrame中的实际列名，找不到返回空串
func ColumnName(df dataframe.DataFrame, name string) string {
	for _, n := range df.Names() {
		if strings.TrimSpace(n) == name {
			return n
		}
	}
	return ""
}

// ParseDate 解析 YYYY-MM-DD 日期
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// Sheet 一个待写出的工作表
type Sheet struct {
	Name string
	Data dataframe.DataFrame
}

// WriteSheet 将DataFrame写入工作簿的指定工作表，第一行为列名
func WriteSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("dataframe错误: %w", df.Err)
	}

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, col.Val(rowIdx)); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewWorkbook 按顺序创建包含多个工作表的工作簿
func NewWorkbook(sheets ...Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("至少需要一个工作表")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheets[0].Name); err != nil {
		f.Close()
		return nil, err
	}
	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.Name); err != nil {
				f.Close()
				return nil, err
			}
		}
		if err := WriteSheet(f, s.Name, s.Data); err != nil {
			f.Close()
			return nil, fmt.Errorf("写入工作表 %s 失败: %w", s.Name, err)
		}
	}
	return f, nil
}

// WriteExcel 将工作簿写到w
func WriteExcel(w io.Writer, sheets ...Sheet) error {
	f, err := NewWorkbook(sheets...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("写出Excel失败: %w", err)
	}
	return nil
}

// SaveToExcel 将工作簿保存到文件
func SaveToExcel(filePath string, sheets ...Sheet) error {
	f, err := NewWorkbook(sheets...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}
