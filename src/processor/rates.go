package processor

import "fmt"

// formatRate 以两位小数的百分比表示 count/total，total为0时为 "0.00%"
func formatRate(count, total int) string {
	if total == 0 {
		return "0.00%"
	}
	rate := float64(count) / float64(total)
	return fmt.Sprintf("%.2f%%", rate*100)
}
