package accountreport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FillSQL substitutes the date placeholders of a report query relative to
// today. Doubled braces stand for literal ones.
//
//	{previous}            year of the previous month
//	{previous_month}      previous month, YYYY-MM
//	{last_year}           last year
//	{last_year_month}     same month last year, YYYY-MM
//	{last_year_date}      same day last year, YYYY-MM-DD (Feb 29 becomes Feb 28)
//	{previous_year_date}  last day of the previous month, YYYY-MM-DD
//	{work_day}            day of month
//	{current_month}       current month, YYYYMM
func FillSQL(template string, today time.Time) string {
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	endOfPrevious := firstOfMonth.AddDate(0, 0, -1)
	lastYear := today.Year() - 1

	r := strings.NewReplacer(
		"{previous}", strconv.Itoa(endOfPrevious.Year()),
		"{previous_month}", endOfPrevious.Format("2006-01"),
		"{last_year}", strconv.Itoa(lastYear),
		"{last_year_month}", fmt.Sprintf("%d-%02d", lastYear, int(today.Month())),
		"{last_year_date}", sameDayLastYear(today).Format("2006-01-02"),
		"{previous_year_date}", endOfPrevious.Format("2006-01-02"),
		"{work_day}", strconv.Itoa(today.Day()),
		"{current_month}", today.Format("200601"),
		"{{", "{",
		"}}", "}",
	)
	return r.Replace(template)
}

func sameDayLastYear(today time.Time) time.Time {
	day := today.Day()
	if today.Month() == time.February && day == 29 {
		day = 28
	}
	return time.Date(today.Year()-1, today.Month(), day, 0, 0, 0, 0, today.Location())
}
