// Package xxlaudit compares the tasks registered in XXL-Job with the
// registrations operators expect and reports every drift by SMS.
package xxlaudit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/internal/xxljob"
	"github.com/cuongbtq/billing-inspector/shared/sms"
)

const (
	msgLoginFailed  = "xxljob登录失败，无法检查"
	msgListFailed   = "获取任务列表失败而中止。"
	msgAllPassed    = "所有预定义的任务配置均校验通过！"
	msgSomeMismatch = "部分任务配置存在不匹配项，请检查以上日志！"
)

// JobLister fetches the registered tasks of one executor group
type JobLister interface {
	ListJobs(ctx context.Context, username, password string, q xxljob.PageQuery) ([]xxljob.JobInfo, error)
}

// Notifier delivers a message to a list of phones
type Notifier interface {
	Send(ctx context.Context, phones []string, content string) (*sms.Result, error)
}

// Job audits every configured category and sends one message per category
type Job struct {
	cfg      *config.Config
	lister   JobLister
	notifier Notifier
	logger   *slog.Logger
}

// NewJob creates the audit job
func NewJob(cfg *config.Config, lister JobLister, notifier Notifier, logger *slog.Logger) *Job {
	return &Job{
		cfg:      cfg,
		lister:   lister,
		notifier: notifier,
		logger:   logger,
	}
}

// Run audits each category in order. Categories are independent: a failed
// login for one still lets the next one run and report.
func (j *Job) Run(ctx context.Context) (string, error) {
	jobCfg, err := j.cfg.GetJob(config.JobCheckJobConfigs)
	if err != nil {
		return "", err
	}

	messages := make([]string, 0, len(j.cfg.Audits))
	for _, category := range j.cfg.Audits {
		message := j.AuditCategory(ctx, category)
		messages = append(messages, message)

		if _, err := j.notifier.Send(ctx, jobCfg.Phones, message); err != nil {
			j.logger.Error("Failed to send audit message",
				slog.String("category", category.Key),
				slog.Any("error", err),
			)
		}
	}

	return strings.Join(messages, "\n\n"), nil
}

// AuditCategory logs in, fetches the task list and validates it against the
// category's expectation table, returning the composed message.
func (j *Job) AuditCategory(ctx context.Context, category config.AuditCategory) string {
	log := j.logger.With(slog.String("category", category.Key))
	log.Info("Starting XXL-Job configuration audit", slog.Int("expected_jobs", len(category.Jobs)))

	header := category.Title + "\n"

	jobs, err := j.lister.ListJobs(ctx, j.cfg.XXLJob.Username, j.cfg.XXLJob.Password, xxljob.PageQuery{
		JobGroup: category.JobGroup,
		JobDesc:  category.JobDesc,
		Start:    0,
		Length:   j.cfg.XXLJob.PageLength,
	})
	if err != nil {
		if errors.Is(err, xxljob.ErrLoginFailed) {
			log.Error("Audit aborted, login failed", slog.Any("error", err))
			return header + msgLoginFailed
		}
		log.Error("Audit aborted, job list unavailable", slog.Any("error", err))
		return header + msgListFailed
	}

	actual := make(map[int]xxljob.JobInfo, len(jobs))
	for _, job := range jobs {
		actual[job.ID] = job
	}

	body, ok := Validate(category.Jobs, actual, log)
	if ok {
		log.Info("All expected XXL-Job registrations match")
	} else {
		log.Warn("Some XXL-Job registrations drifted")
	}
	return header + body
}

// Validate checks every expected job against the registered ones. Entries are
// all checked, and every mismatch of an entry is reported.
func Validate(expected []config.ExpectedJob, actual map[int]xxljob.JobInfo, logger *slog.Logger) (string, bool) {
	var b strings.Builder
	overall := true

	for _, want := range expected {
		got, found := actual[want.JobID]
		if !found {
			logger.Error("Expected job not registered",
				slog.Int("job_id", want.JobID),
				slog.String("job_desc", want.JobDesc),
			)
			fmt.Fprintf(&b, "%s在任务列表中未找到!\n", want.JobDesc)
			overall = false
			continue
		}

		ok := true
		if normalize(got.ScheduleConf) != normalize(want.ExpectedCron) {
			logger.Error("Cron mismatch",
				slog.Int("job_id", want.JobID),
				slog.String("expected", want.ExpectedCron),
				slog.String("actual", got.ScheduleConf),
			)
			fmt.Fprintf(&b, "%sCron不匹配!\n", want.JobDesc)
			ok = false
		}

		if normalize(got.ExecutorParam) != normalize(want.ExpectedParam) {
			logger.Error("Executor param mismatch",
				slog.Int("job_id", want.JobID),
				slog.String("expected", want.ExpectedParam),
				slog.String("actual", got.ExecutorParam),
			)
			fmt.Fprintf(&b, "%s参数不匹配!\n", want.JobDesc)
			ok = false
		}

		if got.TriggerStatus != 1 {
			logger.Error("Job is not running",
				slog.Int("job_id", want.JobID),
				slog.Int("trigger_status", got.TriggerStatus),
			)
			fmt.Fprintf(&b, "%s任务状态异常，未开启!\n", want.JobDesc)
			ok = false
		}

		if ok {
			fmt.Fprintf(&b, "%s配置完全正确!\n", want.JobDesc)
		} else {
			overall = false
		}
	}

	if overall {
		b.WriteString(msgAllPassed)
	} else {
		b.WriteString(msgSomeMismatch)
	}
	return b.String(), overall
}

// normalize drops every whitespace character so layout differences compare equal
func normalize(s string) string {
	return strings.Join(strings.Fields(s), "")
}
