// Package accountreport gathers the monthly remote billing counts of every
// branch office into an SMS summary and an Excel workbook.
package accountreport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/shared/database"
	"github.com/cuongbtq/billing-inspector/shared/sms"
)

// Querier runs a statement against a configured database
type Querier interface {
	Query(ctx context.Context, cfg database.Config, query string, args ...any) ([]database.Row, error)
}

// Notifier delivers a message to a list of phones
type Notifier interface {
	Send(ctx context.Context, phones []string, content string) (*sms.Result, error)
}

// Job collects the branch reports, texts the summary and writes the workbook
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

// WithClock replaces the wall clock the query dates derive from
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// WithLocation sets the time zone the query dates are computed in
func WithLocation(loc *time.Location) Option {
	return func(j *Job) {
		j.loc = loc
	}
}

// NewJob creates the branch aggregation job
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

// Run builds one report per configured branch. A branch whose query fails is
// left out. With no report at all nothing is sent or written.
func (j *Job) Run(ctx context.Context) (string, error) {
	jobCfg, err := j.cfg.GetJob(config.JobFetchAccountData)
	if err != nil {
		return "", err
	}
	if jobCfg.SQL == "" && len(jobCfg.Companies) > 0 {
		return "", fmt.Errorf("job %s has no sql", config.JobFetchAccountData)
	}

	query := FillSQL(jobCfg.SQL, j.now().In(j.loc))

	reports := make([]CompanyReport, 0, len(jobCfg.Companies))
	for _, company := range jobCfg.Companies {
		report, err := j.FetchByCompany(ctx, company, query)
		if err != nil {
			j.logger.Error("Skipping branch",
				slog.String("company", company),
				slog.Any("error", err),
			)
			continue
		}
		reports = append(reports, report)
	}

	if len(reports) == 0 {
		j.logger.Warn("未获取到任何公司数据，短信发送跳过。")
		j.logger.Warn("未获取到任何公司数据，Excel生成跳过。")
		return "", nil
	}

	message := BuildMessage(reports)
	j.logger.Info("Account report built",
		slog.Int("companies", len(reports)),
		slog.String("message", message),
	)

	if _, err := j.notifier.Send(ctx, jobCfg.Phones, message); err != nil {
		j.logger.Error("Failed to send account report", slog.Any("error", err))
	}

	if err := WriteExcel(reports, j.cfg.Report.TemplatePath, j.cfg.Report.OutputPath); err != nil {
		j.logger.Error("Failed to write account report workbook",
			slog.String("path", j.cfg.Report.OutputPath),
			slog.Any("error", err),
		)
	} else {
		j.logger.Info("Account report workbook saved", slog.String("path", j.cfg.Report.OutputPath))
	}

	return message, nil
}

// FetchByCompany runs the filled query on the branch database and binds its rows
func (j *Job) FetchByCompany(ctx context.Context, company, query string) (CompanyReport, error) {
	dbCfg, err := j.cfg.GetDatabase(company)
	if err != nil {
		return CompanyReport{}, err
	}

	rows, err := j.querier.Query(ctx, dbCfg, query)
	if err != nil {
		return CompanyReport{}, fmt.Errorf("failed to query %s: %w", company, err)
	}
	if len(rows) < len(MetricNames) && (len(rows) == 0 || !rows[0].Has(metricColumn)) {
		j.logger.Warn("Report query returned fewer rows than metrics",
			slog.String("company", company),
			slog.Int("rows", len(rows)),
		)
	}

	metrics, err := Bind(rows)
	if err != nil {
		return CompanyReport{}, fmt.Errorf("failed to bind %s: %w", company, err)
	}
	return CompanyReport{Company: company, Metrics: metrics}, nil
}
