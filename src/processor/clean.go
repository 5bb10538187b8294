package processor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/calvinhus/statistics-project/src/utils"
	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// clean 去空格、剔除排除的课程、规范状态、派生转化率与日期字段，并按毕业日期排序
func clean(raw dataframe.DataFrame, rules Rules) (*Table, error) {
	if raw.Err != nil {
		return nil, fmt.Errorf("原始数据错误: %w", raw.Err)
	}

	cols, err := requiredColumns(raw)
	if err != nil {
		return nil, err
	}

	title := cases.Title(language.Und)
	records := make([]Record, 0, raw.Nrow())

	for i := 0; i < raw.Nrow(); i++ {
		row := i + 1
		get := func(col string) string {
			return strings.TrimSpace(cols[col][i])
		}

		curriculum := get(ColCurriculum)
		if utils.Contains(rules.ExcludedCurricula, curriculum) {
			continue
		}

		applied, err := parseCount(row, ColApplied, get(ColApplied))
		if err != nil {
			return nil, err
		}
		interview, err := parseCount(row, ColInterview, get(ColInterview))
		if err != nil {
			return nil, err
		}
		hired, err := parseCount(row, ColHired, get(ColHired))
		if err != nil {
			return nil, err
		}
		if hired != 0 {
			hired = 1
		}

		dateValue := get(ColGraduationDate)
		date, err := utils.ParseDate(dateValue)
		if err != nil {
			return nil, &ParseError{Row: row, Column: ColGraduationDate, Value: dateValue, Err: err}
		}

		cohort := get(ColCohort)
		r := Record{
			Curriculum:     curriculum,
			Cohort:         cohort,
			Status:         title.String(get(ColStatus)),
			Applied:        applied,
			Interview:      interview,
			Hired:          hired,
			GraduationDate: date,
			Format:         formatOf(cohort, rules.PartTimeMarker),
			Year:           date.Year(),
			Month:          int(date.Month()),
			MonthYear:      fmt.Sprintf("%d-%d", int(date.Month()), date.Year()),
		}
		r.ConvAppliedInterview = ratio(interview, applied)
		r.ConvInterviewHired = ratio(hired, interview)
		r.ConvAppliedInterviewPrcnt = r.ConvAppliedInterview * 100
		r.ConvInterviewHiredPrcnt = r.ConvInterviewHired * 100

		records = append(records, r)
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].GraduationDate.Before(records[b].GraduationDate)
	})

	return newTable(records, rules), nil
}

// requiredColumns 按列名取出必需列的原始值，缺列时返回SchemaError
func requiredColumns(raw dataframe.DataFrame) (map[string][]string, error) {
	cols := make(map[string][]string, len(RequiredColumns))
	var missing []string
	for _, name := range RequiredColumns {
		actual := utils.ColumnName(raw, name)
		if actual == "" {
			missing = append(missing, name)
			continue
		}
		cols[name] = raw.Col(actual).Records()
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return cols, nil
}

// parseCount 解析计数列，兼容 "3.0" 这类浮点写法
func parseCount(row int, column, value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		if err == nil {
			err = fmt.Errorf("不是整数")
		}
		return 0, &ParseError{Row: row, Column: column, Value: value, Err: err}
	}
	return int(f), nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func formatOf(cohort, marker string) string {
	if strings.Contains(cohort, marker) {
		return FormatPartTime
	}
	return FormatFullTime
}
