package xxlaudit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/internal/xxljob"
	"github.com/cuongbtq/billing-inspector/shared/logger"
	"github.com/cuongbtq/billing-inspector/shared/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	jobs    map[int][]xxljob.JobInfo
	err     error
	queries []xxljob.PageQuery
}

func (f *fakeLister) ListJobs(_ context.Context, _, _ string, q xxljob.PageQuery) ([]xxljob.JobInfo, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs[q.JobGroup], nil
}

type sentMessage struct {
	phones  []string
	content string
}

type fakeNotifier struct {
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, phones []string, content string) (*sms.Result, error) {
	f.sent = append(f.sent, sentMessage{phones: phones, content: content})
	if f.err != nil {
		return nil, f.err
	}
	return &sms.Result{StatusCode: 200, Delivered: true}, nil
}

// registered mirrors every expected job of a category as a running task
func registered(category config.AuditCategory) []xxljob.JobInfo {
	jobs := make([]xxljob.JobInfo, 0, len(category.Jobs))
	for _, j := range category.Jobs {
		jobs = append(jobs, xxljob.JobInfo{
			ID:            j.JobID,
			JobGroup:      category.JobGroup,
			JobDesc:       j.JobDesc,
			ScheduleConf:  j.ExpectedCron,
			ExecutorParam: j.ExpectedParam,
			TriggerStatus: 1,
		})
	}
	return jobs
}

func testConfig() *config.Config {
	return &config.Config{
		Jobs: map[string]config.JobConfig{
			config.JobCheckJobConfigs: {Phones: []string{"13800000000"}},
		},
		XXLJob: config.XXLJobConfig{Username: "admin", Password: "123456", PageLength: 200},
		Audits: config.DefaultAuditCategories(),
	}
}

func TestValidate_AllMatch(t *testing.T) {
	category := config.DefaultAuditCategories()[0]
	actual := map[int]xxljob.JobInfo{}
	for _, j := range registered(category) {
		actual[j.ID] = j
	}

	msg, ok := Validate(category.Jobs, actual, logger.NewNop())

	assert.True(t, ok)
	assert.Contains(t, msg, "清北大路表远传表出账配置完全正确!\n")
	assert.Contains(t, msg, "石景山大路表远传表出账配置完全正确!\n")
	assert.True(t, strings.HasSuffix(msg, msgAllPassed))
}

func TestValidate_WhitespaceIsIgnored(t *testing.T) {
	expected := []config.ExpectedJob{{
		JobID:         1079,
		JobDesc:       "清北大路表远传表出账",
		ExpectedCron:  "0 0 7 1-5 * ?",
		ExpectedParam: `{"2":["02150201","02150205"]}`,
	}}
	actual := map[int]xxljob.JobInfo{
		1079: {
			ID:            1079,
			ScheduleConf:  "0 0 7 1-5 * ?\n",
			ExecutorParam: "{\"2\": [\"02150201\",\n \"02150205\"]}",
			TriggerStatus: 1,
		},
	}

	msg, ok := Validate(expected, actual, logger.NewNop())

	assert.True(t, ok)
	assert.Equal(t, "清北大路表远传表出账配置完全正确!\n"+msgAllPassed, msg)
}

func TestValidate_ReportsEveryMismatch(t *testing.T) {
	expected := []config.ExpectedJob{
		{JobID: 1, JobDesc: "A", ExpectedCron: "0 0 7 * * ?", ExpectedParam: `{"0":["1"]}`},
		{JobID: 2, JobDesc: "B", ExpectedCron: "0 0 7 * * ?", ExpectedParam: `{"0":["2"]}`},
		{JobID: 3, JobDesc: "C", ExpectedCron: "0 0 7 * * ?", ExpectedParam: `{"0":["3"]}`},
	}
	actual := map[int]xxljob.JobInfo{
		1: {ID: 1, ScheduleConf: "0 0 8 * * ?", ExecutorParam: `{"0":["9"]}`, TriggerStatus: 0},
		3: {ID: 3, ScheduleConf: "0 0 7 * * ?", ExecutorParam: `{"0":["3"]}`, TriggerStatus: 1},
	}

	msg, ok := Validate(expected, actual, logger.NewNop())

	assert.False(t, ok)
	want := "ACron不匹配!\n" +
		"A参数不匹配!\n" +
		"A任务状态异常，未开启!\n" +
		"B在任务列表中未找到!\n" +
		"C配置完全正确!\n" +
		msgSomeMismatch
	assert.Equal(t, want, msg)
}

func TestValidate_MissingJobDoesNotStopLaterEntries(t *testing.T) {
	category := config.DefaultAuditCategories()[1]
	actual := map[int]xxljob.JobInfo{}
	for _, j := range registered(category) {
		if j.ID == 1023 {
			continue
		}
		actual[j.ID] = j
	}

	msg, ok := Validate(category.Jobs, actual, logger.NewNop())

	assert.False(t, ok)
	assert.Contains(t, msg, `户表远传表出账(非良泉\石景山)在任务列表中未找到!`)
	assert.Contains(t, msg, "户表远传表出账(石景山)配置完全正确!")
	assert.Contains(t, msg, "户表远传表出账(良泉)配置完全正确!")
}

func TestJob_AuditCategory(t *testing.T) {
	category := config.DefaultAuditCategories()[1]

	tests := []struct {
		name     string
		listErr  error
		wantBody string
	}{
		{
			name:     "login failed",
			listErr:  fmt.Errorf("%w: code 500", xxljob.ErrLoginFailed),
			wantBody: msgLoginFailed,
		},
		{
			name:     "list failed",
			listErr:  fmt.Errorf("%w: timeout", xxljob.ErrPageListFailed),
			wantBody: msgListFailed,
		},
		{
			name:     "unclassified error counts as list failure",
			listErr:  errors.New("boom"),
			wantBody: msgListFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{err: tt.listErr}
			job := NewJob(testConfig(), lister, &fakeNotifier{}, logger.NewNop())

			msg := job.AuditCategory(context.Background(), category)

			assert.Equal(t, category.Title+"\n"+tt.wantBody, msg)
		})
	}
}

func TestJob_AuditCategory_SendsFilters(t *testing.T) {
	category := config.DefaultAuditCategories()[1]
	lister := &fakeLister{jobs: map[int][]xxljob.JobInfo{35: registered(category)}}
	job := NewJob(testConfig(), lister, &fakeNotifier{}, logger.NewNop())

	msg := job.AuditCategory(context.Background(), category)

	require.Len(t, lister.queries, 1)
	assert.Equal(t, xxljob.PageQuery{JobGroup: 35, JobDesc: "出账", Start: 0, Length: 200}, lister.queries[0])
	assert.Contains(t, msg, "[户表远传出账定时任务检查]\n")
	assert.Contains(t, msg, msgAllPassed)
}

func TestJob_Run(t *testing.T) {
	categories := config.DefaultAuditCategories()
	lister := &fakeLister{jobs: map[int][]xxljob.JobInfo{
		38: registered(categories[0]),
		35: registered(categories[1])[1:],
	}}
	notifier := &fakeNotifier{}
	job := NewJob(testConfig(), lister, notifier, logger.NewNop())

	out, err := job.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, []string{"13800000000"}, notifier.sent[0].phones)
	assert.Contains(t, notifier.sent[0].content, "[大路表远传出账定时任务检查]")
	assert.Contains(t, notifier.sent[0].content, msgAllPassed)
	assert.Contains(t, notifier.sent[1].content, "[户表远传出账定时任务检查]")
	assert.Contains(t, notifier.sent[1].content, msgSomeMismatch)
	assert.Contains(t, out, notifier.sent[0].content)
	assert.Contains(t, out, notifier.sent[1].content)
}

func TestJob_Run_SendFailureContinues(t *testing.T) {
	categories := config.DefaultAuditCategories()
	lister := &fakeLister{jobs: map[int][]xxljob.JobInfo{
		38: registered(categories[0]),
		35: registered(categories[1]),
	}}
	notifier := &fakeNotifier{err: errors.New("gateway down")}
	job := NewJob(testConfig(), lister, notifier, logger.NewNop())

	_, err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, notifier.sent, 2)
}

func TestJob_Run_MissingJobConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Jobs = nil
	notifier := &fakeNotifier{}
	job := NewJob(cfg, &fakeLister{}, notifier, logger.NewNop())

	_, err := job.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrJobNotConfigured)
	assert.Empty(t, notifier.sent)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "007**?", normalize(" 0 0 7\n * * ?\r\n"))
	assert.Equal(t, "", normalize(" \n\t"))
}
