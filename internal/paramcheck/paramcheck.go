// Package paramcheck verifies the billing parameters and the calendar that
// drive remote meter billing, and reports the outcome by SMS.
package paramcheck

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/shared/database"
	"github.com/cuongbtq/billing-inspector/shared/sms"
)

// CommonDatabase is the branch id of the shared billing database
const CommonDatabase = "ds_common"

const (
	systemParamQuery = `SELECT param_code, param_state, param_value FROM water_revenue.sys_param WHERE param_code IN ('0125', '0126')`
	calendarQuery    = `SELECT cal_day, is_work_day, work_day_seq, is_make_day FROM water_revenue.calendar_date WHERE cal_day LIKE ? ORDER BY cal_day`

	paramEnabled = "Y"
	workDay      = "0"

	// switchDay is the first day of month on which the next month is checked
	switchDay = 25
)

// expectedParams are the values billing needs for its reading window
var expectedParams = map[string]string{
	"0125": "2",
	"0126": "3",
}

// makeDays are the days of month on which household accounts are opened
var makeDays = map[string]bool{
	"02": true,
	"03": true,
	"04": true,
	"05": true,
	"06": true,
}

const (
	msgHeader        = "\n当月远传配置情况\n"
	msgParamOK       = "【系统参数0125/0126】远传出账取数时间范围正确√\n"
	msgParamAdjust   = "【系统参数0125/0126】远传出账取数时间范围，需要调整\n"
	msgCalendarOK    = "【计划管理】工作日与户表开账日配置正确√\n"
	msgCalendarWrong = "【计划管理】工作日与户表开账日配置错误，需要调整\n"
)

// Querier runs a statement against a configured database
type Querier interface {
	Query(ctx context.Context, cfg database.Config, query string, args ...any) ([]database.Row, error)
}

// Notifier delivers a message to a list of phones
type Notifier interface {
	Send(ctx context.Context, phones []string, content string) (*sms.Result, error)
}

// Job runs both checks and sends the summary
type Job struct {
	cfg      *config.Config
	querier  Querier
	notifier Notifier
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

// Option customizes a Job
type Option func(*Job)

// WithClock replaces the wall clock used to pick the checked month
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// WithLocation sets the time zone the checked month is computed in
func WithLocation(loc *time.Location) Option {
	return func(j *Job) {
		j.loc = loc
	}
}

// NewJob creates the parameter check job
func NewJob(cfg *config.Config, querier Querier, notifier Notifier, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		cfg:      cfg,
		querier:  querier,
		notifier: notifier,
		logger:   logger,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run performs both checks, sends the summary and returns it
func (j *Job) Run(ctx context.Context) (string, error) {
	jobCfg, err := j.cfg.GetJob(config.JobCheckConfig)
	if err != nil {
		return "", err
	}
	if _, err := j.cfg.GetDatabase(CommonDatabase); err != nil {
		return "", err
	}

	message := BuildMessage(j.CheckSystemParameter(ctx), j.CheckWorkDayConfiguration(ctx))
	j.logger.Info("Configuration check finished", slog.String("message", message))

	if _, err := j.notifier.Send(ctx, jobCfg.Phones, message); err != nil {
		j.logger.Error("Failed to send configuration check result", slog.Any("error", err))
	}
	return message, nil
}

// BuildMessage renders the two check outcomes
func BuildMessage(paramsOK, calendarOK bool) string {
	var b strings.Builder
	b.WriteString(msgHeader)
	if paramsOK {
		b.WriteString(msgParamOK)
	} else {
		b.WriteString(msgParamAdjust)
	}
	if calendarOK {
		b.WriteString(msgCalendarOK)
	} else {
		b.WriteString(msgCalendarWrong)
	}
	return b.String()
}

// CheckSystemParameter reports whether parameters 0125 and 0126 are enabled
// and carry their expected values. Any failure reads as false.
func (j *Job) CheckSystemParameter(ctx context.Context) bool {
	rows, ok := j.query(ctx, systemParamQuery)
	if !ok {
		return false
	}

	if len(rows) != len(expectedParams) {
		j.logger.Warn("Unexpected system parameter rows", slog.Int("rows", len(rows)))
		return false
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		code := row.String("param_code")
		want, known := expectedParams[code]
		if !known || seen[code] {
			j.logger.Warn("Unexpected system parameter", slog.String("param_code", code))
			return false
		}
		seen[code] = true

		state := row.String("param_state")
		value := row.String("param_value")
		if state != paramEnabled || value != want {
			j.logger.Warn("System parameter drifted",
				slog.String("param_code", code),
				slog.String("param_state", state),
				slog.String("param_value", value),
				slog.String("expected_value", want),
			)
			return false
		}
	}

	j.logger.Info("System parameters are correct")
	return true
}

// CheckWorkDayConfiguration verifies every calendar day of the target month.
// Each day must be a working day whose sequence equals its day of month, and
// only days 02 to 06 may be account opening days.
func (j *Job) CheckWorkDayConfiguration(ctx context.Context) bool {
	month := TargetMonth(j.now().In(j.loc))
	log := j.logger.With(slog.String("month", month))

	rows, ok := j.query(ctx, calendarQuery, month+"%")
	if !ok {
		return false
	}

	if len(rows) == 0 {
		log.Warn("No calendar rows for month")
		return true
	}

	for _, row := range rows {
		calDay := row.String("cal_day")
		if len(calDay) < 2 {
			log.Warn("Malformed calendar day", slog.String("cal_day", calDay))
			return false
		}
		day := calDay[len(calDay)-2:]

		seq := row.String("work_day_seq")
		isWorkDay := row.String("is_work_day")
		if day != seq || isWorkDay != workDay {
			log.Warn("Work day misconfigured",
				slog.String("cal_day", calDay),
				slog.String("work_day_seq", seq),
				slog.String("is_work_day", isWorkDay),
			)
			return false
		}

		want := "N"
		if makeDays[day] {
			want = "Y"
		}
		if got := row.String("is_make_day"); got != want {
			log.Warn("Account opening day misconfigured",
				slog.String("cal_day", calDay),
				slog.String("is_make_day", got),
				slog.String("expected", want),
			)
			return false
		}
	}

	log.Info("Calendar is correct", slog.Int("days", len(rows)))
	return true
}

// TargetMonth returns the YYYY-MM month to check: the next month from the
// 25th onwards, the current one before.
func TargetMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if now.Day() >= switchDay {
		first = first.AddDate(0, 1, 0)
	}
	return first.Format("2006-01")
}

func (j *Job) query(ctx context.Context, query string, args ...any) ([]database.Row, bool) {
	dbCfg, err := j.cfg.GetDatabase(CommonDatabase)
	if err != nil {
		j.logger.Error("Common database is not configured", slog.Any("error", err))
		return nil, false
	}

	rows, err := j.querier.Query(ctx, dbCfg, query, args...)
	if err != nil {
		j.logger.Error("Check query failed", slog.Any("error", err))
		return nil, false
	}
	return rows, true
}
