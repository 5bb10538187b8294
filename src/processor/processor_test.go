package processor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/calvinhus/statistics-project/src/config"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"curriculum", "cohort", "status", "applied", "interview", "hired", "graduation_date"}

func rawFrame(rows ...[]string) dataframe.DataFrame {
	records := append([][]string{header}, rows...)
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
}

func sampleRows() [][]string {
	return [][]string{
		{"UXUI", "UXUI FT Mar21", "actively seeking", "10", "5", "1", "2021-03-05"},
		{" UXUI ", "UXUI FT Mar21", "Hired", "4", "2", "2", "2021-03-05"},
		{"Data", "DA PT Jan21", " PASSIVELY SEEKING ", "0", "0", "0", "2021-01-10"},
		{"Cybersecurity", "CS FT", "Hired", "1", "1", "1", "not-a-date"},
		{"Web Dev", "WD PT Jun21", "not searching", "5", "0", "0", "2021-06-20"},
		{"Data", "DA FT Jan21", "hired", "8.0", "4", "1", "2021-01-10"},
	}
}

func sampleTable(t *testing.T) *Table {
	t.Helper()
	table, err := Clean(rawFrame(sampleRows()...))
	require.NoError(t, err)
	return table
}

func date(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestCleanDropsCybersecurity(t *testing.T) {
	table := sampleTable(t)

	assert.Equal(t, 5, table.Len())
	for _, r := range table.Records() {
		assert.NotEqual(t, "Cybersecurity", r.Curriculum)
	}
	assert.Equal(t, []string{"Data", "UXUI", "Web Dev"}, table.Curricula())
	assert.Equal(t, []string{"FT", "PT"}, table.Formats())
}

func TestCleanNormalisesFields(t *testing.T) {
	records := sampleTable(t).Records()

	var statuses []string
	for _, r := range records {
		assert.Contains(t, []int{0, 1}, r.Hired)
		assert.Equal(t, strings.Contains(r.Cohort, "PT"), r.Format == FormatPartTime)
		assert.Equal(t, strings.TrimSpace(r.Curriculum), r.Curriculum)
		if r.Applied == 0 {
			assert.Zero(t, r.ConvAppliedInterview)
		}
		if r.Interview == 0 {
			assert.Zero(t, r.ConvInterviewHired)
		}
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []string{"Passively Seeking", "Hired", "Actively Seeking", "Hired", "Not Searching"}, statuses)
}

func TestCleanSortsByGraduationDate(t *testing.T) {
	records := sampleTable(t).Records()

	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].GraduationDate.Before(records[i-1].GraduationDate))
	}
	// 同一天保持源数据顺序
	assert.Equal(t, "DA PT Jan21", records[0].Cohort)
	assert.Equal(t, "DA FT Jan21", records[1].Cohort)
}

func TestCleanDerivedFields(t *testing.T) {
	records := sampleTable(t).Records()

	uxui := records[2]
	assert.Equal(t, "UXUI", uxui.Curriculum)
	assert.Equal(t, "FT", uxui.Format)
	assert.InDelta(t, 0.5, uxui.ConvAppliedInterview, 1e-9)
	assert.InDelta(t, 50, uxui.ConvAppliedInterviewPrcnt, 1e-9)
	assert.InDelta(t, 0.2, uxui.ConvInterviewHired, 1e-9)
	assert.InDelta(t, 20, uxui.ConvInterviewHiredPrcnt, 1e-9)
	assert.Equal(t, 2021, uxui.Year)
	assert.Equal(t, 3, uxui.Month)
	assert.Equal(t, "3-2021", uxui.MonthYear)

	// hired=2 被归一为1
	assert.Equal(t, 1, records[3].Hired)
	assert.InDelta(t, 50, records[3].ConvInterviewHiredPrcnt, 1e-9)

	// "8.0" 按整数处理
	assert.Equal(t, 8, records[1].Applied)
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	raw := rawFrame(sampleRows()...)
	before := raw.Records()

	_, err := Clean(raw)
	require.NoError(t, err)
	assert.Equal(t, before, raw.Records())
}

func TestCleanSchemaError(t *testing.T) {
	raw := dataframe.LoadRecords([][]string{
		{"curriculum", "cohort", "applied"},
		{"UXUI", "FT", "1"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	_, err := Clean(raw)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"status", "interview", "hired", "graduation_date"}, schemaErr.Missing)
}

func TestCleanParseError(t *testing.T) {
	_, err := Clean(rawFrame(
		[]string{"UXUI", "FT", "Hired", "1", "1", "1", "2021-03-05"},
		[]string{"UXUI", "FT", "Hired", "1", "1", "1", "05/03/2021"},
	))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 2, parseErr.Row)
	assert.Equal(t, ColGraduationDate, parseErr.Column)
	assert.Equal(t, "05/03/2021", parseErr.Value)

	_, err = Clean(rawFrame([]string{"UXUI", "FT", "Hired", "many", "1", "1", "2021-03-05"}))
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ColApplied, parseErr.Column)

	_, err = Clean(rawFrame([]string{"UXUI", "FT", "Hired", "1", "1.5", "1", "2021-03-05"}))
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ColInterview, parseErr.Column)
}

func TestCleanWithConfiguredRules(t *testing.T) {
	rules := NewRules(&config.DataConfig{ExcludedCurricula: []string{"Web Dev"}, PartTimeMarker: "Part"})
	assert.Equal(t, []string{"Cybersecurity", "Web Dev"}, rules.ExcludedCurricula)

	table, err := NewDataProcessor(rules).CleanData(rawFrame(
		[]string{"Cybersecurity", "CS Part-time", "Hired", "1", "1", "1", "2021-03-05"},
		[]string{"Web Dev", "WD FT", "Hired", "1", "1", "1", "2021-03-05"},
		[]string{"Data", "DA Part-time", "Hired", "1", "1", "1", "2021-03-05"},
	))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Data", table.Records()[0].Curriculum)
	assert.Equal(t, FormatPartTime, table.Records()[0].Format)
	assert.Equal(t, AllCurricula, table.Rules().AllCurricula)
}

func TestEmptyExclusionListStillDropsCybersecurity(t *testing.T) {
	rules := NewRules(&config.DataConfig{ExcludedCurricula: []string{}})
	assert.Equal(t, []string{"Cybersecurity"}, rules.ExcludedCurricula)

	table, err := NewDataProcessor(rules).CleanData(rawFrame(
		[]string{"Cybersecurity", "CS FT", "Hired", "1", "1", "1", "2021-03-05"},
		[]string{"UXUI", "UX FT", "Hired", "1", "1", "1", "2021-03-05"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"UXUI"}, table.Curricula())
}

func TestNAValuesStaySelectable(t *testing.T) {
	table, err := Clean(rawFrame(
		[]string{"NA", "NA-PT", "na", "2", "1", "1", "2021-03-05"},
		[]string{"NaN", "NaN FT", "NaN", "2", "1", "0", "2021-03-05"},
		[]string{"UXUI", "UX FT", "Hired", "2", "1", "0", "2021-03-05"},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"NA", "NaN", "UXUI"}, table.Curricula())
	records := table.Records()
	assert.Equal(t, "NA", records[0].Curriculum)
	assert.Equal(t, "NA-PT", records[0].Cohort)
	assert.Equal(t, "Na", records[0].Status)
	assert.Equal(t, FormatPartTime, records[0].Format)

	d := table.Query(Filter{Curriculum: "NA", Format: AllFormats})
	assert.Equal(t, KPI{1, "33.33%"}, d.Total)
	assert.Equal(t, KPI{1, "33.33%"}, d.Hired)

	d = table.Query(Filter{Curriculum: "NaN", Format: FormatFullTime})
	assert.Equal(t, 1, d.Total.Count)
	require.Len(t, d.Conversions, 1)
	assert.Equal(t, "NaN FT", d.Conversions[0].Cohort)

	all := table.Query(Filter{AllCurricula, AllFormats}).Total.Count
	sum := 0
	for _, c := range table.Curricula() {
		sum += table.Query(Filter{Curriculum: c, Format: AllFormats}).Total.Count
	}
	assert.Equal(t, all, sum)
}

func TestCleanHeaderOnly(t *testing.T) {
	cols := make([]series.Series, len(header))
	for i, name := range header {
		cols[i] = series.New([]string{}, series.String, name)
	}
	table, err := Clean(dataframe.New(cols...))
	require.NoError(t, err)
	assert.Zero(t, table.Len())
	assert.Equal(t, KPI{0, "0.00%"}, table.Query(Filter{AllCurricula, AllFormats}).Total)
}

func TestQueryExampleDenominator(t *testing.T) {
	table, err := Clean(rawFrame(
		[]string{"UXUI", "UX FT", "Hired", "1", "1", "1", "2021-01-01"},
		[]string{"UXUI", "UX FT", "Actively Seeking", "1", "0", "0", "2021-01-01"},
		[]string{"Data", "DA FT", "Hired", "1", "1", "1", "2021-01-01"},
	))
	require.NoError(t, err)

	d := table.Query(Filter{Curriculum: "UXUI", Format: AllFormats})
	assert.Equal(t, 2, d.Total.Count)
	assert.Equal(t, "66.67%", d.Total.Percent)
	assert.Equal(t, 1, d.Hired.Count)
	assert.Equal(t, "33.33%", d.Hired.Percent)
	assert.Equal(t, 1, d.Searching.Count)
}

func TestQueryAllMatchesWholeTable(t *testing.T) {
	table := sampleTable(t)
	d := table.Query(Filter{Curriculum: AllCurricula, Format: AllFormats})

	assert.Equal(t, table.Len(), d.Total.Count)
	assert.Equal(t, "100.00%", d.Total.Percent)
	assert.Equal(t, KPI{Count: 2, Percent: "40.00%"}, d.Searching)
	assert.Equal(t, KPI{Count: 3, Percent: "60.00%"}, d.Hired)

	require.Len(t, d.Conversions, 4)
	assert.Equal(t, "DA FT Jan21", d.Conversions[0].Cohort)
	assert.Equal(t, "DA PT Jan21", d.Conversions[1].Cohort)
	uxui := d.Conversions[2]
	assert.Equal(t, "UXUI", uxui.Curriculum)
	assert.Equal(t, date("2021-03-05"), uxui.GraduationDate)
	assert.Equal(t, "3-2021", uxui.MonthYear)
	assert.Equal(t, 2, uxui.Students)
	assert.InDelta(t, 50, uxui.ConvAppliedInterviewPrcnt, 1e-9)
	assert.InDelta(t, 35, uxui.ConvInterviewHiredPrcnt, 1e-9)
	assert.Equal(t, "Web Dev", d.Conversions[3].Curriculum)

	assert.Equal(t, []CurriculumHires{
		{Curriculum: "Data", GraduationDate: date("2021-01-10"), Hired: 1},
		{Curriculum: "UXUI", GraduationDate: date("2021-03-05"), Hired: 2},
	}, d.Hires)
}

func TestQueryFilterCombinations(t *testing.T) {
	table := sampleTable(t)

	tests := []struct {
		name      string
		filter    Filter
		total     KPI
		searching KPI
		hired     KPI
		cohorts   int
	}{
		{"curriculum only", Filter{"Data", AllFormats}, KPI{2, "40.00%"}, KPI{1, "20.00%"}, KPI{1, "20.00%"}, 2},
		{"format only", Filter{AllCurricula, "PT"}, KPI{2, "40.00%"}, KPI{1, "20.00%"}, KPI{0, "0.00%"}, 2},
		{"both", Filter{"Data", "PT"}, KPI{1, "20.00%"}, KPI{1, "20.00%"}, KPI{0, "0.00%"}, 1},
		{"both, empty intersection", Filter{"UXUI", "PT"}, KPI{0, "0.00%"}, KPI{0, "0.00%"}, KPI{0, "0.00%"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := table.Query(tt.filter)
			assert.Equal(t, tt.total, d.Total)
			assert.Equal(t, tt.searching, d.Searching)
			assert.Equal(t, tt.hired, d.Hired)
			assert.Len(t, d.Conversions, tt.cohorts)
			for _, c := range d.Conversions {
				if tt.filter.Curriculum != AllCurricula {
					assert.Equal(t, tt.filter.Curriculum, c.Curriculum)
				}
				if tt.filter.Format != AllFormats {
					assert.Equal(t, tt.filter.Format, c.Format)
				}
			}
		})
	}
}

func TestQueryUnknownSelector(t *testing.T) {
	table := sampleTable(t)

	for _, f := range []Filter{
		{Curriculum: "Cybersecurity", Format: AllFormats},
		{Curriculum: AllCurricula, Format: "XT"},
		{Curriculum: "Data", Format: "XT"},
	} {
		d := table.Query(f)
		assert.Zero(t, d.Total.Count)
		assert.Zero(t, d.Searching.Count)
		assert.Zero(t, d.Hired.Count)
		assert.Equal(t, "0.00%", d.Total.Percent)
		assert.Empty(t, d.Conversions)
		assert.Empty(t, d.Hires)
	}
}

func TestQueryIdempotent(t *testing.T) {
	table := sampleTable(t)
	f := Filter{Curriculum: "UXUI", Format: "FT"}

	first := table.Query(f)
	second := table.Query(f)
	assert.Equal(t, first, second)
	assert.Equal(t, 5, table.Len())
}

func TestQueryFilteredPercentBelowAll(t *testing.T) {
	table := sampleTable(t)
	all := table.Query(Filter{AllCurricula, AllFormats})
	narrowed := table.Query(Filter{"UXUI", AllFormats})

	assert.Less(t, narrowed.Total.Count, all.Total.Count)
	assert.Equal(t, "40.00%", narrowed.Total.Percent)
	assert.Equal(t, "40.00%", narrowed.Hired.Percent)
	assert.Equal(t, "60.00%", all.Hired.Percent)
}

func TestQueryEmptyTable(t *testing.T) {
	table, err := Clean(rawFrame(
		[]string{"Cybersecurity", "CS FT", "Hired", "1", "1", "1", "2021-01-01"},
	))
	require.NoError(t, err)
	require.Zero(t, table.Len())

	d := table.Query(Filter{AllCurricula, AllFormats})
	assert.Equal(t, KPI{0, "0.00%"}, d.Total)
	assert.Empty(t, d.Conversions)
	assert.Empty(t, table.Curricula())
}

func TestQueryConcurrentReaders(t *testing.T) {
	table := sampleTable(t)
	want := table.Query(Filter{"Data", AllFormats})

	done := make(chan Dashboard)
	for i := 0; i < 8; i++ {
		go func() { done <- table.Query(Filter{"Data", AllFormats}) }()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, want, <-done)
	}
}

func TestDashboardSheets(t *testing.T) {
	d := sampleTable(t).Query(Filter{AllCurricula, AllFormats})
	sheets := d.Sheets()

	require.Len(t, sheets, 3)
	assert.Equal(t, "Conversions", sheets[0].Name)
	assert.Equal(t, 4, sheets[0].Data.Nrow())
	assert.Equal(t, 2, sheets[1].Data.Nrow())
	assert.Equal(t, []string{"total", "searching", "hired"}, sheets[2].Data.Col("kpi").Records())
	assert.Equal(t, []string{"100.00%", "40.00%", "60.00%"}, sheets[2].Data.Col("percent").Records())
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "33.33%", formatRate(1, 3))
	assert.Equal(t, "100.00%", formatRate(3, 3))
	assert.Equal(t, "0.00%", formatRate(0, 0))
}
