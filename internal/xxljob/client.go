package xxljob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrLoginFailed is returned when the admin console rejects the login or cannot be reached
	ErrLoginFailed = errors.New("xxl-job login failed")

	// ErrPageListFailed is returned when the job list cannot be fetched or decoded
	ErrPageListFailed = errors.New("xxl-job page list failed")
)

// JobInfo is one task registered in the XXL-Job admin console
type JobInfo struct {
	ID            int    `json:"id"`
	JobGroup      int    `json:"jobGroup"`
	JobDesc       string `json:"jobDesc"`
	ScheduleConf  string `json:"scheduleConf"`
	ExecutorParam string `json:"executorParam"`
	TriggerStatus int    `json:"triggerStatus"`
}

// PageQuery filters the job list
type PageQuery struct {
	JobGroup int
	JobDesc  string
	Start    int
	Length   int
}

// Config holds the admin console endpoints
type Config struct {
	LoginURL string
	PageURL  string
	Timeout  time.Duration
}

// Client talks to the XXL-Job admin console
type Client struct {
	config Config
	logger *slog.Logger
}

// Session is an authenticated cookie session
type Session struct {
	http    *resty.Client
	pageURL string
	logger  *slog.Logger
}

type loginResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type pageResponse struct {
	RecordsTotal int        `json:"recordsTotal"`
	Data         *[]JobInfo `json:"data"`
}

// NewClient creates an admin console client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{config: cfg, logger: logger}
}

// Login opens a new cookie session. Every call starts from an empty cookie jar.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	c.logger.Info("Logging in to XXL-Job", slog.String("url", c.config.LoginURL))

	httpClient := resty.New().
		SetTimeout(c.config.Timeout).
		SetRetryCount(0)

	resp, err := httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"userName": username,
			"password": password,
		}).
		Post(c.config.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http status %d", ErrLoginFailed, resp.StatusCode())
	}

	var body loginResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrLoginFailed, err)
	}
	if body.Code != 200 {
		msg := body.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: code %d: %s", ErrLoginFailed, body.Code, msg)
	}

	c.logger.Info("Logged in to XXL-Job")

	return &Session{
		http:    httpClient,
		pageURL: c.config.PageURL,
		logger:  c.logger,
	}, nil
}

// PageList fetches one page of registered jobs
func (s *Session) PageList(ctx context.Context, q PageQuery) ([]JobInfo, error) {
	form := map[string]string{
		"jobGroup":      strconv.Itoa(q.JobGroup),
		"triggerStatus": "-1",
		"start":         strconv.Itoa(q.Start),
		"length":        strconv.Itoa(q.Length),
	}
	if q.JobDesc != "" {
		form["jobDesc"] = q.JobDesc
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageListFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http status %d", ErrPageListFailed, resp.StatusCode())
	}

	var body pageResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrPageListFailed, err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("%w: response has no data", ErrPageListFailed)
	}

	s.logger.Info("Fetched XXL-Job list",
		slog.Int("job_group", q.JobGroup),
		slog.Int("count", len(*body.Data)),
	)

	return *body.Data, nil
}

// ListJobs logs in with a fresh session and fetches one page of jobs.
// Errors wrap ErrLoginFailed or ErrPageListFailed so callers can tell the stages apart.
func (c *Client) ListJobs(ctx context.Context, username, password string, q PageQuery) ([]JobInfo, error) {
	session, err := c.Login(ctx, username, password)
	if err != nil {
		c.logger.Error("XXL-Job login failed", slog.Any("error", err))
		return nil, err
	}

	jobs, err := session.PageList(ctx, q)
	if err != nil {
		c.logger.Error("XXL-Job page list failed", slog.Any("error", err))
		return nil, err
	}
	return jobs, nil
}
