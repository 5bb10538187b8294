// data.go
package processor

import (
	"sort"
	"time"

	"github.com/calvinhus/statistics-project/src/config"
	"github.com/calvinhus/statistics-project/src/utils"
	"github.com/go-gota/gota/dataframe"
)

// 源数据列名
const (
	ColCurriculum     = "curriculum"
	ColCohort         = "cohort"
	ColStatus         = "status"
	ColApplied        = "applied"
	ColInterview      = "interview"
	ColHired          = "hired"
	ColGraduationDate = "graduation_date"
)

// 派生列名
const (
	ColFormat    = "format"
	ColMonthYear = "month_year"
)

// RequiredColumns 清洗前必须存在的列
var RequiredColumns = []string{
	ColCurriculum, ColCohort, ColStatus, ColApplied, ColInterview, ColHired, ColGraduationDate,
}

// 下拉框 "全部" 选项的默认取值
const (
	AllCurricula = "all_values"
	AllFormats   = "all_format"
)

// ExcludedAlways 任何规则下都不进入数据表的课程
const ExcludedAlways = "Cybersecurity"

// 授课形式
const (
	FormatFullTime = "FT"
	FormatPartTime = "PT"
)

// Rules 清洗与查询使用的规则
type Rules struct {
	ExcludedCurricula []string
	SearchingStatuses []string
	PartTimeMarker    string
	AllCurricula      string
	AllFormats        string
}

// DefaultRules 返回默认规则
func DefaultRules() Rules {
	return Rules{
		ExcludedCurricula: []string{ExcludedAlways},
		SearchingStatuses: []string{"Actively Seeking", "Passively Seeking"},
		PartTimeMarker:    FormatPartTime,
		AllCurricula:      AllCurricula,
		AllFormats:        AllFormats,
	}
}

// NewRules 由数据配置生成规则，未配置的项保留默认值
func NewRules(dc *config.DataConfig) Rules {
	r := DefaultRules()
	if dc == nil {
		return r
	}
	if dc.ExcludedCurricula != nil {
		r.ExcludedCurricula = dc.ExcludedCurricula
		// Cybersecurity 始终剔除，配置只能追加
		if !utils.Contains(r.ExcludedCurricula, ExcludedAlways) {
			r.ExcludedCurricula = append([]string{ExcludedAlways}, r.ExcludedCurricula...)
		}
	}
	if len(dc.SearchingStatuses) > 0 {
		r.SearchingStatuses = dc.SearchingStatuses
	}
	if dc.PartTimeMarker != "" {
		r.PartTimeMarker = dc.PartTimeMarker
	}
	if dc.AllCurricula != "" {
		r.AllCurricula = dc.AllCurricula
	}
	if dc.AllFormats != "" {
		r.AllFormats = dc.AllFormats
	}
	return r
}

// Record 清洗后的一行：一名学员在某个cohort的就业记录
type Record struct {
	Curriculum     string    `json:"curriculum"`
	Cohort         string    `json:"cohort"`
	Status         string    `json:"status"`
	Applied        int       `json:"applied"`
	Interview      int       `json:"interview"`
	Hired          int       `json:"hired"`
	GraduationDate time.Time `json:"graduation_date"`

	Format                    string  `json:"format"`
	ConvAppliedInterview      float64 `json:"conv_applied_interview"`
	ConvAppliedInterviewPrcnt float64 `json:"conv_applied_interview_prcnt"`
	ConvInterviewHired        float64 `json:"conv_interview_hired"`
	ConvInterviewHiredPrcnt   float64 `json:"conv_interview_hired_prcnt"`
	Year                      int     `json:"year"`
	Month                     int     `json:"month"`
	MonthYear                 string  `json:"month_year"`
}

// Table 清洗后的只读数据表，构建后不再修改，可被多个查询并发读取
type Table struct {
	records   []Record
	rules     Rules
	curricula []string
	formats   []string
}

// newTable 接管records的所有权，records须已按毕业日期排序
func newTable(records []Record, rules Rules) *Table {
	curricula := make([]string, len(records))
	formats := make([]string, len(records))
	for i, r := range records {
		curricula[i] = r.Curriculum
		formats[i] = r.Format
	}

	return &Table{
		records:   records,
		rules:     rules,
		curricula: distinctSorted(curricula),
		formats:   distinctSorted(formats),
	}
}

func distinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Len 清洗后的总行数，所有百分比的分母
func (t *Table) Len() int {
	return len(t.records)
}

// Records 返回记录的副本
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Rules 返回构建该表时使用的规则
func (t *Table) Rules() Rules {
	return t.rules
}

// Curricula 按字母排序的课程取值，用于下拉框
func (t *Table) Curricula() []string {
	return append([]string(nil), t.curricula...)
}

// Formats 按字母排序的授课形式取值，用于下拉框
func (t *Table) Formats() []string {
	return append([]string(nil), t.formats...)
}

// DataProcessor 按规则清洗原始数据
type DataProcessor struct {
	rules Rules
}

// NewDataProcessor 创建数据处理器
func NewDataProcessor(rules Rules) *DataProcessor {
	return &DataProcessor{rules: rules}
}

// CleanData 清洗原始DataFrame并生成只读数据表
func (p *DataProcessor) CleanData(raw dataframe.DataFrame) (*Table, error) {
	return clean(raw, p.rules)
}

// Clean 使用默认规则清洗
func Clean(raw dataframe.DataFrame) (*Table, error) {
	return clean(raw, DefaultRules())
}
