package accountreport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuongbtq/billing-inspector/internal/branch"
	"github.com/cuongbtq/billing-inspector/shared/database"
)

// Metric names in the positional order report queries return them
const (
	HouseholdBilled          = "本周期户表出账(支)"
	HouseholdExpected        = "本周期户表应出账(支)"
	LargeMeterBilled         = "本周期大路表出账(支)"
	LargeMeterExpected       = "本周期大路表应出账(支)"
	HouseholdPreviousPeriod  = "上周期户表出账(支)"
	HouseholdLastYear        = "去年周期户表出账(支)"
	LargeMeterPreviousPeriod = "上周期大路表出账(支)"
	LargeMeterLastYear       = "去年周期大路表出账(支)"
)

// MetricNames lists every metric in positional order
var MetricNames = []string{
	HouseholdBilled,
	HouseholdExpected,
	LargeMeterBilled,
	LargeMeterExpected,
	HouseholdPreviousPeriod,
	HouseholdLastYear,
	LargeMeterPreviousPeriod,
	LargeMeterLastYear,
}

const (
	// Missing marks a metric the query did not return
	Missing int64 = -1

	metricColumn = "metric"
	countColumn  = "count"

	messageHeader = "【生产环境】截至目前本月远传出账情况："
)

// ErrMissingMetrics is returned when a named result lacks some metrics
var ErrMissingMetrics = errors.New("report query is missing metrics")

// Metric is one named count
type Metric struct {
	Name  string
	Value int64
}

// CompanyReport holds the counts of one branch in MetricNames order
type CompanyReport struct {
	Company string
	Metrics []Metric
}

// Value returns the named metric, or Missing
func (r CompanyReport) Value(name string) int64 {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value
		}
	}
	return Missing
}

// Bind maps query rows to metrics. Rows carrying a metric column are matched
// by name and every metric must be present. Otherwise rows are taken in order
// and absent positions read as Missing.
func Bind(rows []database.Row) ([]Metric, error) {
	if len(rows) > 0 && rows[0].Has(metricColumn) {
		return bindByName(rows)
	}

	metrics := make([]Metric, len(MetricNames))
	for i, name := range MetricNames {
		value := Missing
		if i < len(rows) {
			value = rows[i].Int64(countColumn, Missing)
		}
		metrics[i] = Metric{Name: name, Value: value}
	}
	return metrics, nil
}

func bindByName(rows []database.Row) ([]Metric, error) {
	byName := make(map[string]int64, len(rows))
	for _, row := range rows {
		byName[strings.TrimSpace(row.String(metricColumn))] = row.Int64(countColumn, Missing)
	}

	metrics := make([]Metric, len(MetricNames))
	var missing []string
	for i, name := range MetricNames {
		value, ok := byName[name]
		if !ok {
			missing = append(missing, name)
		}
		metrics[i] = Metric{Name: name, Value: value}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetrics, strings.Join(missing, ", "))
	}
	return metrics, nil
}

// BuildMessage renders one line per branch under the report header
func BuildMessage(reports []CompanyReport) string {
	var b strings.Builder
	b.WriteString(messageHeader)
	for _, r := range reports {
		b.WriteString("\n")
		b.WriteString(branch.DisplayName(r.Company))
		b.WriteString(":")
		for i, m := range r.Metrics {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %d", m.Name, m.Value)
		}
	}
	return b.String()
}
