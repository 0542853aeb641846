package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultSurveyLabel = "HakeSurvey"
	defaultSonarModel  = "EK60"
	defaultRangeBinM   = 20.0
	defaultPingBin     = "20s"
	defaultStartDate   = "2017-07-24"
	defaultEndDate     = "2017-07-28"
	defaultEndpoint    = "s3.amazonaws.com"
	defaultBucket      = "ncei-wcsd-archive"
	defaultPrefix      = "data/raw/Bell_M._Shimada/SH1707/EK60/"

	dateLayout = "2006-01-02"
)

// Config holds the immutable settings for one pipeline run.
type Config struct {
	SurveyLabel    string
	SonarModel     string
	RangeBinMeters float64
	PingBin        time.Duration
	PingBinLabel   string
	StartDate      time.Time
	EndDate        time.Time
	OutputBase     string

	Endpoint string
	Bucket   string
	Prefix   string
	Secure   bool

	DatabaseURL string
	DryRun      bool
}

// fileConfig is the optional YAML survey-parameter file (SURVEY_CONFIG).
type fileConfig struct {
	Survey struct {
		Label          string  `yaml:"label"`
		SonarModel     string  `yaml:"sonar_model"`
		RangeBinMeters float64 `yaml:"range_bin_meters"`
		PingTimeBin    string  `yaml:"ping_time_bin"`
		StartDate      string  `yaml:"start_date"`
		EndDate        string  `yaml:"end_date"`
		OutputBase     string  `yaml:"output_base"`
	} `yaml:"survey"`
	Storage struct {
		Endpoint string `yaml:"endpoint"`
		Bucket   string `yaml:"bucket"`
		Prefix   string `yaml:"prefix"`
		Insecure bool   `yaml:"insecure"`
	} `yaml:"storage"`
}

// Load reads configuration from environment variables (optionally .env),
// applying the YAML file named by SURVEY_CONFIG first when present.
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		SurveyLabel:    defaultSurveyLabel,
		SonarModel:     defaultSonarModel,
		RangeBinMeters: defaultRangeBinM,
		PingBinLabel:   defaultPingBin,
		OutputBase:     ".",
		Endpoint:       defaultEndpoint,
		Bucket:         defaultBucket,
		Prefix:         defaultPrefix,
		Secure:         true,
	}

	start, end := defaultStartDate, defaultEndDate

	if path := strings.TrimSpace(os.Getenv("SURVEY_CONFIG")); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		if fc.Survey.Label != "" {
			cfg.SurveyLabel = fc.Survey.Label
		}
		if fc.Survey.SonarModel != "" {
			cfg.SonarModel = fc.Survey.SonarModel
		}
		if fc.Survey.RangeBinMeters > 0 {
			cfg.RangeBinMeters = fc.Survey.RangeBinMeters
		}
		if fc.Survey.PingTimeBin != "" {
			cfg.PingBinLabel = fc.Survey.PingTimeBin
		}
		if fc.Survey.StartDate != "" {
			start = fc.Survey.StartDate
		}
		if fc.Survey.EndDate != "" {
			end = fc.Survey.EndDate
		}
		if fc.Survey.OutputBase != "" {
			cfg.OutputBase = fc.Survey.OutputBase
		}
		if fc.Storage.Endpoint != "" {
			cfg.Endpoint = fc.Storage.Endpoint
		}
		if fc.Storage.Bucket != "" {
			cfg.Bucket = fc.Storage.Bucket
		}
		if fc.Storage.Prefix != "" {
			cfg.Prefix = fc.Storage.Prefix
		}
		if fc.Storage.Insecure {
			cfg.Secure = false
		}
	}

	if v := strings.TrimSpace(os.Getenv("SURVEY_START")); v != "" {
		start = v
	}
	if v := strings.TrimSpace(os.Getenv("SURVEY_END")); v != "" {
		end = v
	}
	if v := strings.TrimSpace(os.Getenv("S3_ENDPOINT")); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("SURVEY_BUCKET")); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("SURVEY_PREFIX")); v != "" {
		cfg.Prefix = v
	}
	if v := strings.TrimSpace(os.Getenv("SURVEY_OUTPUT_BASE")); v != "" {
		cfg.OutputBase = v
	}
	if v := strings.TrimSpace(os.Getenv("RANGE_BIN_METERS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid RANGE_BIN_METERS: %w", err)
		}
		cfg.RangeBinMeters = f
	}
	if v := strings.TrimSpace(os.Getenv("PING_TIME_BIN")); v != "" {
		cfg.PingBinLabel = v
	}

	var err error
	cfg.StartDate, err = time.Parse(dateLayout, start)
	if err != nil {
		return cfg, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	cfg.EndDate, err = time.Parse(dateLayout, end)
	if err != nil {
		return cfg, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	cfg.PingBin, err = time.ParseDuration(cfg.PingBinLabel)
	if err != nil {
		return cfg, fmt.Errorf("invalid ping time bin %q: %w", cfg.PingBinLabel, err)
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	return cfg, cfg.validate()
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read survey config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse survey config: %w", err)
	}
	return fc, nil
}

func (c Config) validate() error {
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date %s precedes start date %s",
			c.EndDate.Format(dateLayout), c.StartDate.Format(dateLayout))
	}
	if c.RangeBinMeters <= 0 {
		return errors.New("range bin must be positive")
	}
	if c.PingBin <= 0 {
		return errors.New("ping time bin must be positive")
	}
	if c.Bucket == "" || c.Prefix == "" {
		return errors.New("bucket and prefix are required")
	}
	return nil
}
