package paramcheck

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/shared/database"
	"github.com/cuongbtq/billing-inspector/shared/logger"
	"github.com/cuongbtq/billing-inspector/shared/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	cfg   database.Config
	query string
	args  []any
}

type fakeQuerier struct {
	params   []database.Row
	calendar []database.Row
	err      error
	calls    []call
}

func (f *fakeQuerier) Query(_ context.Context, cfg database.Config, query string, args ...any) ([]database.Row, error) {
	f.calls = append(f.calls, call{cfg: cfg, query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	if query == systemParamQuery {
		return f.params, nil
	}
	return f.calendar, nil
}

type fakeNotifier struct {
	phones  []string
	content []string
	err     error
}

func (f *fakeNotifier) Send(_ context.Context, phones []string, content string) (*sms.Result, error) {
	f.phones = phones
	f.content = append(f.content, content)
	if f.err != nil {
		return nil, f.err
	}
	return &sms.Result{StatusCode: 200, Delivered: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Database: map[string]config.DatabaseConfig{
			CommonDatabase: {Type: "kingbase", Host: "10.1.1.10", Port: 54321, Name: "billing"},
		},
		Jobs: map[string]config.JobConfig{
			config.JobCheckConfig: {Phones: []string{"13800000001"}},
		},
	}
}

func paramRow(code, state, value string) database.Row {
	return database.Row{"param_code": code, "param_state": state, "param_value": value}
}

func goodParams() []database.Row {
	return []database.Row{paramRow("0125", "Y", "2"), paramRow("0126", "Y", "3")}
}

// calendarMonth builds a correctly configured month of the given length
func calendarMonth(month string, days int) []database.Row {
	rows := make([]database.Row, 0, days)
	for d := 1; d <= days; d++ {
		day := fmt.Sprintf("%02d", d)
		makeDay := "N"
		if d >= 2 && d <= 6 {
			makeDay = "Y"
		}
		rows = append(rows, database.Row{
			"cal_day":      month + "-" + day,
			"is_work_day":  "0",
			"work_day_seq": day,
			"is_make_day":  makeDay,
		})
	}
	return rows
}

func fixedClock(year int, month time.Month, day int) Option {
	return WithClock(func() time.Time {
		return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
	})
}

func TestCheckSystemParameter(t *testing.T) {
	tests := []struct {
		name string
		rows []database.Row
		want bool
	}{
		{name: "expected values", rows: goodParams(), want: true},
		{name: "rows in any order", rows: []database.Row{paramRow("0126", "Y", "3"), paramRow("0125", "Y", "2")}, want: true},
		{name: "disabled parameter", rows: []database.Row{paramRow("0125", "N", "2"), paramRow("0126", "Y", "3")}, want: false},
		{name: "wrong value", rows: []database.Row{paramRow("0125", "Y", "2"), paramRow("0126", "Y", "4")}, want: false},
		{name: "missing parameter", rows: []database.Row{paramRow("0125", "Y", "2")}, want: false},
		{name: "extra parameter", rows: append(goodParams(), paramRow("0127", "Y", "1")), want: false},
		{name: "duplicated parameter", rows: []database.Row{paramRow("0125", "Y", "2"), paramRow("0125", "Y", "2")}, want: false},
		{name: "unknown code", rows: []database.Row{paramRow("0125", "Y", "2"), paramRow("0999", "Y", "3")}, want: false},
		{name: "no rows", rows: nil, want: false},
		{name: "numeric values from driver", rows: []database.Row{
			{"param_code": "0125", "param_state": "Y", "param_value": int64(2)},
			{"param_code": "0126", "param_state": "Y", "param_value": int64(3)},
		}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{params: tt.rows}
			job := NewJob(testConfig(), q, &fakeNotifier{}, logger.NewNop())

			assert.Equal(t, tt.want, job.CheckSystemParameter(context.Background()))
			require.Len(t, q.calls, 1)
			assert.Equal(t, "10.1.1.10", q.calls[0].cfg.Host)
		})
	}
}

func TestCheckSystemParameter_QueryError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection refused")}
	job := NewJob(testConfig(), q, &fakeNotifier{}, logger.NewNop())

	assert.False(t, job.CheckSystemParameter(context.Background()))
}

func TestCheckSystemParameter_DatabaseNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Database = nil
	q := &fakeQuerier{params: goodParams()}
	job := NewJob(cfg, q, &fakeNotifier{}, logger.NewNop())

	assert.False(t, job.CheckSystemParameter(context.Background()))
	assert.Empty(t, q.calls)
}

func TestTargetMonth(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{now: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), want: "2025-10"},
		{now: time.Date(2025, 10, 24, 23, 59, 0, 0, time.UTC), want: "2025-10"},
		{now: time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC), want: "2025-11"},
		{now: time.Date(2025, 12, 28, 10, 30, 0, 0, time.UTC), want: "2026-01"},
		{now: time.Date(2025, 1, 31, 10, 30, 0, 0, time.UTC), want: "2025-02"},
	}

	for _, tt := range tests {
		t.Run(tt.now.Format(time.DateOnly), func(t *testing.T) {
			assert.Equal(t, tt.want, TargetMonth(tt.now))
		})
	}
}

func TestCheckWorkDayConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rows []database.Row)
		want   bool
	}{
		{name: "correct month", mutate: func(rows []database.Row) {}, want: true},
		{name: "sequence differs from day", mutate: func(rows []database.Row) { rows[9]["work_day_seq"] = "09" }, want: false},
		{name: "not a working day", mutate: func(rows []database.Row) { rows[14]["is_work_day"] = "1" }, want: false},
		{name: "opening day not flagged", mutate: func(rows []database.Row) { rows[3]["is_make_day"] = "N" }, want: false},
		{name: "day outside window flagged", mutate: func(rows []database.Row) { rows[0]["is_make_day"] = "Y" }, want: false},
		{name: "day seven flagged", mutate: func(rows []database.Row) { rows[6]["is_make_day"] = "Y" }, want: false},
		{name: "malformed day", mutate: func(rows []database.Row) { rows[20]["cal_day"] = "" }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := calendarMonth("2025-11", 30)
			tt.mutate(rows)
			q := &fakeQuerier{calendar: rows}
			job := NewJob(testConfig(), q, &fakeNotifier{}, logger.NewNop(), fixedClock(2025, time.October, 28))

			assert.Equal(t, tt.want, job.CheckWorkDayConfiguration(context.Background()))
			require.Len(t, q.calls, 1)
			assert.Equal(t, []any{"2025-11%"}, q.calls[0].args)
		})
	}
}

func TestCheckWorkDayConfiguration_EmptyMonthPasses(t *testing.T) {
	q := &fakeQuerier{}
	job := NewJob(testConfig(), q, &fakeNotifier{}, logger.NewNop(), fixedClock(2025, time.October, 3))

	assert.True(t, job.CheckWorkDayConfiguration(context.Background()))
	assert.Equal(t, []any{"2025-10%"}, q.calls[0].args)
}

func TestCheckWorkDayConfiguration_QueryError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("timeout")}
	job := NewJob(testConfig(), q, &fakeNotifier{}, logger.NewNop())

	assert.False(t, job.CheckWorkDayConfiguration(context.Background()))
}

func TestCheckWorkDayConfiguration_UsesLocation(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	// 2025-10-24 20:00 UTC is already the 25th in Shanghai
	q := &fakeQuerier{}
	job := NewJob(testConfig(), q, &fakeNotifier{}, logger.NewNop(),
		WithLocation(shanghai),
		WithClock(func() time.Time { return time.Date(2025, 10, 24, 20, 0, 0, 0, time.UTC) }),
	)

	job.CheckWorkDayConfiguration(context.Background())
	assert.Equal(t, []any{"2025-11%"}, q.calls[0].args)
}

func TestBuildMessage(t *testing.T) {
	assert.Equal(t,
		"\n当月远传配置情况\n【系统参数0125/0126】远传出账取数时间范围正确√\n【计划管理】工作日与户表开账日配置正确√\n",
		BuildMessage(true, true))
	assert.Equal(t,
		"\n当月远传配置情况\n【系统参数0125/0126】远传出账取数时间范围，需要调整\n【计划管理】工作日与户表开账日配置错误，需要调整\n",
		BuildMessage(false, false))
}

func TestJob_Run(t *testing.T) {
	q := &fakeQuerier{params: goodParams(), calendar: calendarMonth("2025-11", 30)}
	n := &fakeNotifier{}
	job := NewJob(testConfig(), q, n, logger.NewNop(), fixedClock(2025, time.October, 28))

	msg, err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, BuildMessage(true, true), msg)
	assert.Equal(t, []string{"13800000001"}, n.phones)
	assert.Equal(t, []string{msg}, n.content)
}

func TestJob_Run_DegradesOnDatabaseFailure(t *testing.T) {
	q := &fakeQuerier{err: errors.New("network unreachable")}
	n := &fakeNotifier{}
	job := NewJob(testConfig(), q, n, logger.NewNop())

	msg, err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, BuildMessage(false, false), msg)
	assert.Len(t, n.content, 1)
}

func TestJob_Run_SendFailureIsNotFatal(t *testing.T) {
	q := &fakeQuerier{params: goodParams()}
	n := &fakeNotifier{err: errors.New("gateway down")}
	job := NewJob(testConfig(), q, n, logger.NewNop())

	_, err := job.Run(context.Background())
	assert.NoError(t, err)
}

func TestJob_Run_ConfigurationErrors(t *testing.T) {
	t.Run("job missing", func(t *testing.T) {
		cfg := testConfig()
		delete(cfg.Jobs, config.JobCheckConfig)
		n := &fakeNotifier{}

		_, err := NewJob(cfg, &fakeQuerier{}, n, logger.NewNop()).Run(context.Background())

		assert.ErrorIs(t, err, config.ErrJobNotConfigured)
		assert.Empty(t, n.content)
	})

	t.Run("common database missing", func(t *testing.T) {
		cfg := testConfig()
		cfg.Database = nil
		n := &fakeNotifier{}

		_, err := NewJob(cfg, &fakeQuerier{}, n, logger.NewNop()).Run(context.Background())

		assert.ErrorIs(t, err, config.ErrDatabaseNotConfigured)
		assert.Empty(t, n.content)
	})
}
