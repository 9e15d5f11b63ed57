package config

// Job names used as keys of the jobs section
const (
	JobCheckConfig      = "check_config_job"
	JobCheckJobConfigs  = "check_job_configs"
	JobFetchAccountData = "fetch_account_data"
)

// Pipeline ids
const (
	PipelineCheckConfig  = "check_config"
	PipelineCheckXXLJob  = "check_XXL_JOB"
	PipelineFetchAccount = "fetch_account"
)

// Audit category keys
const (
	AuditLargeMeter = "large_meter"
	AuditHousehold  = "household"
)

// Report locations relative to the working directory
const (
	DefaultReportTemplatePath = "template/远传表出账明细.xlsx"
	DefaultReportOutputPath   = "远传表出账明细.xlsx"
)

// DefaultPipelines returns the pipelines and triggers used when the
// scheduler section does not list any.
func DefaultPipelines() []PipelineConfig {
	return []PipelineConfig{
		{
			ID:          PipelineCheckConfig,
			Description: "远传出账配置检查",
			Triggers: []TriggerConfig{
				{ID: "daily", Name: "每日", Description: "每天运行", Schedule: "30 10 28-31 * *"},
			},
		},
		{
			ID:          PipelineCheckXXLJob,
			Description: "远传出账定时任务配置检查",
			Triggers: []TriggerConfig{
				{ID: "daily", Name: "每日", Description: "每天运行", Schedule: "30 10 28-31 * *"},
			},
		},
		{
			ID:          PipelineFetchAccount,
			Description: "月初统计远传数据",
			Triggers: []TriggerConfig{
				{ID: "daily", Name: "1-10号", Description: "每天运行", Schedule: "30 10 1-10 * *"},
			},
		},
	}
}

// DefaultAuditCategories returns the XXL-Job registrations operators expect.
// The values are operational state and are kept verbatim.
func DefaultAuditCategories() []AuditCategory {
	return []AuditCategory{
		{
			Key:      AuditLargeMeter,
			Title:    "[大路表远传出账定时任务检查]",
			JobGroup: 38,
			Jobs: []ExpectedJob{
				{
					JobID:         1079,
					JobDesc:       "清北大路表远传表出账",
					ExpectedCron:  "0 0 7 1-5 * ?",
					ExpectedParam: `{"2":["02150201","02150205"]}`,
					Companies:     []string{"ds_qb"},
				},
				{
					JobID:         1078,
					JobDesc:       "怀柔、檀州大路表远传表出账",
					ExpectedCron:  "0 0 7 1 * ?",
					ExpectedParam: `{0:["02180201","02170201"]}`,
					Companies:     []string{"ds_hr", "ds_jy"},
				},
				{
					JobID:         1074,
					JobDesc:       "通州大路表远传表出账",
					ExpectedCron:  "0 0 7 * * ?",
					ExpectedParam: `{"1":["02130201"]}`,
					Companies:     []string{"ds_tz"},
				},
				{
					JobID:         1073,
					JobDesc:       "良泉大路表远传表出账",
					ExpectedCron:  "0 0 7 1-16 * ?",
					ExpectedParam: `{"2":["02110201","02110202","02110203","02110204","02110205","02110207","02110208","02110209"]}`,
					Companies:     []string{"ds_lq"},
				},
				{
					JobID:         1071,
					JobDesc:       "门头沟、缙阳大路表远传表出账",
					ExpectedCron:  "0 0 7 * * ?",
					ExpectedParam: `{"0":["02160201"],"1":["02190202","02190201"]}`,
					Companies:     []string{"ds_mtg", "ds_jy"},
				},
				{
					JobID:         1070,
					JobDesc:       "大兴大路表远传表出账",
					ExpectedCron:  "0 0 7 1-8 * ?",
					ExpectedParam: `{"1":["02120201"],"2":["02120202"]}`,
					Companies:     []string{"ds_dx"},
				},
				{
					JobID:         1069,
					JobDesc:       "石景山大路表远传表出账",
					ExpectedCron:  "0 0 7 1-3 * ?",
					ExpectedParam: `{"0":["02200201"],"1":["02200207"],"2":["02200208"]}`,
					Companies:     []string{"ds_sjs"},
				},
			},
		},
		{
			Key:      AuditHousehold,
			Title:    "[户表远传出账定时任务检查]",
			JobGroup: 35,
			JobDesc:  "出账",
			Jobs: []ExpectedJob{
				{
					JobID:         1023,
					JobDesc:       `户表远传表出账(非良泉\石景山)`,
					ExpectedCron:  "0 0 6 3-6 * ?",
					ExpectedParam: `{"0":["02160201","02130201","02150201","02150205"],"1":["02120201","02190202","02190201"],"2":["02120202","02180201","02170201"]}`,
				},
				{
					JobID:         1084,
					JobDesc:       "户表远传表出账(石景山)",
					ExpectedCron:  "0 0 6 10-13 * ?",
					ExpectedParam: `{"0":["02200208"],"1":["02200207"],"2":["02200201"]}`,
				},
				{
					JobID:         1072,
					JobDesc:       "户表远传表出账(良泉)",
					ExpectedCron:  "0 0 6 2-6 * ?",
					ExpectedParam: `{"0":["02110201","02110202","02110203"],"1":["02110204","02110205"],"2":["02110207","02110208","02110209"]}`,
				},
			},
		},
	}
}
