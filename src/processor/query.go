package processor

import (
	"sort"
	"time"

	"github.com/calvinhus/statistics-project/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Filter 两个下拉框的取值，取 "全部" 哨兵值时不过滤该维度
type Filter struct {
	Curriculum string `json:"curriculum"`
	Format     string `json:"format"`
}

// CohortConversion 转化率散点图的一个点
type CohortConversion struct {
	Curriculum                string    `json:"curriculum"`
	Cohort                    string    `json:"cohort"`
	Format                    string    `json:"format"`
	GraduationDate            time.Time `json:"graduation_date"`
	MonthYear                 string    `json:"month_year"`
	ConvAppliedInterviewPrcnt float64   `json:"conv_applied_interview_prcnt"`
	ConvInterviewHiredPrcnt   float64   `json:"conv_interview_hired_prcnt"`
	Students                  int       `json:"students"`
}

// CurriculumHires 某课程在某毕业日期的录用人数
type CurriculumHires struct {
	Curriculum     string    `json:"curriculum"`
	GraduationDate time.Time `json:"graduation_date"`
	Hired          int       `json:"hired"`
}

// KPI 指标卡：人数及其占全表的百分比
type KPI struct {
	Count   int    `json:"count"`
	Percent string `json:"percent"`
}

// Dashboard 一次筛选的全部输出
type Dashboard struct {
	Filter      Filter             `json:"filter"`
	Conversions []CohortConversion `json:"conversions"`
	Hires       []CurriculumHires  `json:"hires"`
	Total       KPI                `json:"total"`
	Searching   KPI                `json:"searching"`
	Hired       KPI                `json:"hired"`
}

type cohortKey struct {
	curriculum string
	cohort     string
	format     string
	date       time.Time
	monthYear  string
}

type hiresKey struct {
	curriculum string
	date       time.Time
}

// Query 按筛选条件计算图表数据与指标卡，只读且幂等
// 百分比的分母始终是全表行数；未知的筛选值得到零值结果而不是错误
func (t *Table) Query(f Filter) Dashboard {
	matched := t.match(f)
	total := t.Len()

	d := Dashboard{
		Filter:      f,
		Conversions: t.conversions(matched),
		Hires:       t.hires(matched),
	}

	searching, hired := 0, 0
	for _, i := range matched {
		r := t.records[i]
		if utils.Contains(t.rules.SearchingStatuses, r.Status) {
			searching++
		}
		if r.Hired == 1 {
			hired++
		}
	}

	d.Total = KPI{Count: len(matched), Percent: formatRate(len(matched), total)}
	d.Searching = KPI{Count: searching, Percent: formatRate(searching, total)}
	d.Hired = KPI{Count: hired, Percent: formatRate(hired, total)}
	return d
}

// match 返回满足筛选条件的记录下标，保持毕业日期升序
// 直接比较记录中的原值，"NaN" 之类的字面值也能被选中
func (t *Table) match(f Filter) []int {
	allCurricula := f.Curriculum == t.rules.AllCurricula
	allFormats := f.Format == t.rules.AllFormats
	if !allCurricula && !utils.Contains(t.curricula, f.Curriculum) {
		return nil
	}
	if !allFormats && !utils.Contains(t.formats, f.Format) {
		return nil
	}

	var idx []int
	for i, r := range t.records {
		if !allCurricula && r.Curriculum != f.Curriculum {
			continue
		}
		if !allFormats && r.Format != f.Format {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

func (t *Table) conversions(matched []int) []CohortConversion {
	groups := make(map[cohortKey][]int)
	var keys []cohortKey
	for _, i := range matched {
		r := t.records[i]
		k := cohortKey{r.Curriculum, r.Cohort, r.Format, r.GraduationDate, r.MonthYear}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	sort.Slice(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if !ka.date.Equal(kb.date) {
			return ka.date.Before(kb.date)
		}
		if ka.curriculum != kb.curriculum {
			return ka.curriculum < kb.curriculum
		}
		if ka.cohort != kb.cohort {
			return ka.cohort < kb.cohort
		}
		return ka.format < kb.format
	})

	out := make([]CohortConversion, 0, len(keys))
	for _, k := range keys {
		rows := groups[k]
		appliedInterview := make([]float64, len(rows))
		interviewHired := make([]float64, len(rows))
		for j, i := range rows {
			appliedInterview[j] = t.records[i].ConvAppliedInterviewPrcnt
			interviewHired[j] = t.records[i].ConvInterviewHiredPrcnt
		}
		out = append(out, CohortConversion{
			Curriculum:                k.curriculum,
			Cohort:                    k.cohort,
			Format:                    k.format,
			GraduationDate:            k.date,
			MonthYear:                 k.monthYear,
			ConvAppliedInterviewPrcnt: series.Floats(appliedInterview).Mean(),
			ConvInterviewHiredPrcnt:   series.Floats(interviewHired).Mean(),
			Students:                  len(rows),
		})
	}
	return out
}

func (t *Table) hires(matched []int) []CurriculumHires {
	counts := make(map[hiresKey]int)
	var keys []hiresKey
	for _, i := range matched {
		r := t.records[i]
		if r.Hired != 1 {
			continue
		}
		k := hiresKey{r.Curriculum, r.GraduationDate}
		if _, ok := counts[k]; !ok {
			keys = append(keys, k)
		}
		counts[k]++
	}

	sort.Slice(keys, func(a, b int) bool {
		if keys[a].curriculum != keys[b].curriculum {
			return keys[a].curriculum < keys[b].curriculum
		}
		return keys[a].date.Before(keys[b].date)
	})

	out := make([]CurriculumHires, 0, len(keys))
	for _, k := range keys {
		out = append(out, CurriculumHires{Curriculum: k.curriculum, GraduationDate: k.date, Hired: counts[k]})
	}
	return out
}

// Sheets 把查询结果转成可导出的工作表
func (d Dashboard) Sheets() []utils.Sheet {
	n := len(d.Conversions)
	curricula, cohorts, formats, dates, monthYears := make([]string, n), make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	appliedInterview, interviewHired := make([]float64, n), make([]float64, n)
	students := make([]int, n)
	for i, c := range d.Conversions {
		curricula[i] = c.Curriculum
		cohorts[i] = c.Cohort
		formats[i] = c.Format
		dates[i] = c.GraduationDate.Format(utils.DateLayout)
		monthYears[i] = c.MonthYear
		appliedInterview[i] = c.ConvAppliedInterviewPrcnt
		interviewHired[i] = c.ConvInterviewHiredPrcnt
		students[i] = c.Students
	}
	conversions := dataframe.New(
		series.New(curricula, series.String, ColCurriculum),
		series.New(cohorts, series.String, ColCohort),
		series.New(formats, series.String, ColFormat),
		series.New(dates, series.String, ColGraduationDate),
		series.New(monthYears, series.String, ColMonthYear),
		series.New(appliedInterview, series.Float, "conv_applied_interview_prcnt"),
		series.New(interviewHired, series.Float, "conv_interview_hired_prcnt"),
		series.New(students, series.Int, "students"),
	)

	m := len(d.Hires)
	hCurricula, hDates := make([]string, m), make([]string, m)
	hired := make([]int, m)
	for i, h := range d.Hires {
		hCurricula[i] = h.Curriculum
		hDates[i] = h.GraduationDate.Format(utils.DateLayout)
		hired[i] = h.Hired
	}
	hires := dataframe.New(
		series.New(hCurricula, series.String, ColCurriculum),
		series.New(hDates, series.String, ColGraduationDate),
		series.New(hired, series.Int, ColHired),
	)

	kpis := dataframe.New(
		series.New([]string{"total", "searching", "hired"}, series.String, "kpi"),
		series.New([]int{d.Total.Count, d.Searching.Count, d.Hired.Count}, series.Int, "count"),
		series.New([]string{d.Total.Percent, d.Searching.Percent, d.Hired.Percent}, series.String, "percent"),
	)

	return []utils.Sheet{
		{Name: "Conversions", Data: conversions},
		{Name: "Hires", Data: hires},
		{Name: "KPIs", Data: kpis},
	}
}
