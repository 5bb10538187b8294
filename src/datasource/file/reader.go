// reader.go
package file

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// Number Excel日期序列号
const Number string = `^[0-9]+(\.[0-9]+)?$`

var numberRe = regexp.MustCompile(Number)

// dateColumns xlsx中可能以序列号存储的日期列
var dateColumns = []string{"graduation_date"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSource 按扩展名读取csv或xlsx源文件
func ReadSource(filePath, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		return ReadXLSX(filePath, sheetName)
	default:
		return ReadCSVFile(filePath)
	}
}

// ReadCSVFile 打开并读取CSV文件
func ReadCSVFile(filePath string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开CSV文件失败: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV 把CSV读成全部为字符串列的DataFrame，类型转换留给清洗步骤
// 单元格原样保留，"NA"、"NaN" 不当作缺失值；只有表头时返回0行的DataFrame
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	br := bufio.NewReader(r)
	// 去掉UTF-8 BOM
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	records, err := csv.NewReader(br).ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", err)
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: 缺少表头")
	}
	if len(records) == 1 {
		return emptyFrame(records[0])
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

// emptyFrame 只有列名、没有数据行的DataFrame
func emptyFrame(headers []string) (dataframe.DataFrame, error) {
	cols := make([]series.Series, len(headers))
	for i, name := range headers {
		cols[i] = series.New([]string{}, series.String, name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

// ReadXLSX 读取xlsx工作表，第一行为表头；sheetName为空时取第一个工作表
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}

	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		var ok bool
		if sheet, ok = xlFile.Sheet[sheetName]; !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
	}

	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 为空", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}

	for _, row := range sheet.Rows[1:] {
		if isBlankRow(row) {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		if isDateColumn(colName) {
			for j, v := range columns[i] {
				columns[i][j] = excelToDate(v)
			}
		}
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

func isBlankRow(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if strings.TrimSpace(cell.Value) != "" {
			return false
		}
	}
	return true
}

func isDateColumn(name string) bool {
	for _, c := range dateColumns {
		if name == c {
			return true
		}
	}
	return false
}

// excelToDate Excel日期序列号转 YYYY-MM-DD，非数值原样返回
func excelToDate(v string) string {
	v = strings.TrimSpace(v)
	if !numberRe.MatchString(v) {
		return v
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}

	// 1899-12-30 为基准可同时抵消Excel的1900闰年错误(仅对1900-03-01之后的日期有效)
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(math.Floor(serial))).Format("2006-01-02")
}
