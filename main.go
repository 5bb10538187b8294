package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/calvinhus/statistics-project/src/config"
	"github.com/calvinhus/statistics-project/src/datasource/file"
	"github.com/calvinhus/statistics-project/src/processor"
	"github.com/calvinhus/statistics-project/src/utils"
)

// 一次性报表：读取数据源，按筛选条件打印看板数据，可选导出xlsx
func main() {
	dataFile := flag.String("data", "data/careers.csv", "源数据文件(csv或xlsx)")
	sheet := flag.String("sheet", "", "xlsx工作表名，为空取第一个")
	curriculum := flag.String("curriculum", "", "课程筛选，为空表示全部")
	format := flag.String("format", "", "FT/PT筛选，为空表示全部")
	xlsxOut := flag.String("xlsx", "", "导出xlsx文件路径")
	dataConfig := flag.String("dataconfig", "", "可选的数据规则配置文件")
	flag.Parse()

	rules, err := loadRules(*dataConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "加载数据规则失败:", err)
		os.Exit(1)
	}

	raw, err := file.ReadSource(*dataFile, *sheet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "读取数据源失败:", err)
		os.Exit(1)
	}
	table, err := processor.NewDataProcessor(rules).CleanData(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "清洗数据失败:", err)
		os.Exit(1)
	}

	f := processor.Filter{Curriculum: *curriculum, Format: *format}
	if f.Curriculum == "" {
		f.Curriculum = rules.AllCurricula
	}
	if f.Format == "" {
		f.Format = rules.AllFormats
	}
	d := table.Query(f)
	printDashboard(os.Stdout, d)

	if *xlsxOut != "" {
		if err := utils.SaveToExcel(*xlsxOut, d.Sheets()...); err != nil {
			fmt.Fprintln(os.Stderr, "导出失败:", err)
			os.Exit(1)
		}
		fmt.Println("已导出:", *xlsxOut)
	}
}

// loadRules 未指定配置文件时使用默认规则
func loadRules(path string) (processor.Rules, error) {
	if path == "" {
		return processor.DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return processor.Rules{}, err
	}
	dcfg, err := config.ParseDataConfig(data)
	if err != nil {
		return processor.Rules{}, err
	}
	return processor.NewRules(dcfg), nil
}

func printDashboard(w io.Writer, d processor.Dashboard) {
	fmt.Fprintf(w, "筛选: curriculum=%s format=%s\n\n", d.Filter.Curriculum, d.Filter.Format)
	fmt.Fprintf(w, "Total students:    %d (%s)\n", d.Total.Count, d.Total.Percent)
	fmt.Fprintf(w, "Searching:         %d (%s)\n", d.Searching.Count, d.Searching.Percent)
	fmt.Fprintf(w, "Hired:             %d (%s)\n\n", d.Hired.Count, d.Hired.Percent)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CURRICULUM\tCOHORT\tFORMAT\tMONTH\tAPPLIED→INTERVIEW\tINTERVIEW→HIRED\tSTUDENTS")
	for _, c := range d.Conversions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%d\n",
			c.Curriculum, c.Cohort, c.Format, c.MonthYear,
			c.ConvAppliedInterviewPrcnt, c.ConvInterviewHiredPrcnt, c.Students)
	}
	tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CURRICULUM\tGRADUATION\tHIRED")
	for _, h := range d.Hires {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", h.Curriculum, h.GraduationDate.Format(utils.DateLayout), h.Hired)
	}
	tw.Flush()
}
