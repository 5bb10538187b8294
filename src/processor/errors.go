package processor

import (
	"fmt"
	"strings"
)

// SchemaError 源数据缺少必需的列
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("缺少必需的列: %s", strings.Join(e.Missing, ", "))
}

// ParseError 某一行的字段无法解析
type ParseError struct {
	Row    int // 从1开始的数据行号，不含表头
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("第%d行 %s 列无法解析 %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
