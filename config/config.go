/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// DefaultBorrowCapRatio caps a single loan at this fraction of a
	// circle's total pool.
	DefaultBorrowCapRatio = 0.8

	// DefaultActivationRatio is the share of the pool that must be
	// contributed before a pending circle goes active.
	DefaultActivationRatio = 0.25

	// DefaultRepayTolerance is one drop, the smallest ledger unit.
	DefaultRepayTolerance = "0.000001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"ESUSU_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ESUSU_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"ESUSU_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ESUSU_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"ESUSU_REDIS_DNS"`
}

// LedgerConfig points at the value-transfer network the circles settle on.
// PoolAddress is the ledger account holding every circle's pooled funds.
type LedgerConfig struct {
	Endpoint    string `json:"endpoint" envconfig:"ESUSU_LEDGER_ENDPOINT"`
	TimeoutSec  int    `json:"timeout_sec" envconfig:"ESUSU_LEDGER_TIMEOUT_SEC"`
	PoolAddress string `json:"pool_address" envconfig:"ESUSU_LEDGER_POOL_ADDRESS"`
	PoolSecret  string `json:"pool_secret" envconfig:"ESUSU_LEDGER_POOL_SECRET"`
}

// PolicyConfig carries the lending-rule constants. They are policy, not
// invariants, so deployments may tune them.
type PolicyConfig struct {
	BorrowCapRatio   float64 `json:"borrow_cap_ratio" envconfig:"ESUSU_POLICY_BORROW_CAP_RATIO"`
	ActivationRatio  float64 `json:"activation_ratio" envconfig:"ESUSU_POLICY_ACTIVATION_RATIO"`
	AllowedDurations []int   `json:"allowed_durations" envconfig:"ESUSU_POLICY_ALLOWED_DURATIONS"`
	RepayTolerance   string  `json:"repay_tolerance" envconfig:"ESUSU_POLICY_REPAY_TOLERANCE"`
}

// RateLimitConfig configures API rate limiting. Nil values disable it.
type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ESUSU_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ESUSU_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ESUSU_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type QueueConfig struct {
	WebhookQueue     string `json:"webhook_queue" envconfig:"ESUSU_QUEUE_WEBHOOK"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"ESUSU_QUEUE_MAX_RETRY_ATTEMPTS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"ESUSU_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Ledger       LedgerConfig     `json:"ledger"`
	Policy       PolicyConfig     `json:"policy"`
	Queue        QueueConfig      `json:"queue"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("esusu", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called esusu.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Esusu Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Ledger.Endpoint == "" {
		log.Println("Error: Ledger endpoint is empty. It's a required field.")
		return errors.New("ledger endpoint is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Ledger.Endpoint = strings.TrimSpace(cnf.Ledger.Endpoint)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Ledger.TimeoutSec <= 0 {
		cnf.Ledger.TimeoutSec = 30
	}

	if cnf.Policy.BorrowCapRatio <= 0 || cnf.Policy.BorrowCapRatio > 1 {
		cnf.Policy.BorrowCapRatio = DefaultBorrowCapRatio
		log.Printf("Warning: Borrow cap ratio not specified. Setting default value: %.2f", DefaultBorrowCapRatio)
	}

	if cnf.Policy.ActivationRatio <= 0 || cnf.Policy.ActivationRatio > 1 {
		cnf.Policy.ActivationRatio = DefaultActivationRatio
		log.Printf("Warning: Activation ratio not specified. Setting default value: %.2f", DefaultActivationRatio)
	}

	if len(cnf.Policy.AllowedDurations) == 0 {
		cnf.Policy.AllowedDurations = []int{30, 60, 90}
	}

	if cnf.Policy.RepayTolerance == "" {
		cnf.Policy.RepayTolerance = DefaultRepayTolerance
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}

	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 3
	}

	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst != nil && cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes. The policy block
// is filled with defaults so tests exercising lending rules do not each
// repeat them.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Policy.BorrowCapRatio == 0 {
		mockConfig.Policy.BorrowCapRatio = DefaultBorrowCapRatio
	}
	if mockConfig.Policy.ActivationRatio == 0 {
		mockConfig.Policy.ActivationRatio = DefaultActivationRatio
	}
	if len(mockConfig.Policy.AllowedDurations) == 0 {
		mockConfig.Policy.AllowedDurations = []int{30, 60, 90}
	}
	if mockConfig.Policy.RepayTolerance == "" {
		mockConfig.Policy.RepayTolerance = DefaultRepayTolerance
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
