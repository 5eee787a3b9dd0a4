package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the worker configuration. Values are loaded from an optional
// YAML file, then overridden by environment variables using the names the
// platform has always used (HOST_MANAGER, RPAAS_HEALTHCHECK_TIMEOUT, ...).
type Config struct {
	// Fleet provisioner selection
	HostManager string `yaml:"host_manager"`
	LBManager   string `yaml:"lb_manager"`

	// Provisioning behavior
	HealthcheckTimeout time.Duration `yaml:"healthcheck_timeout"`
	RollbackOnError    bool          `yaml:"rollback_on_error"`

	// Restore sweep
	RestoreLockName            string        `yaml:"restore_lock_name"`
	RestoreMachineDelay        time.Duration `yaml:"restore_machine_delay"`
	RestoreMachineFailureDelay time.Duration `yaml:"restore_machine_failure_delay"`
	RestoreMachineDryMode      bool          `yaml:"restore_machine_dry_mode"`

	// Certificates
	LECertExpirationDays int    `yaml:"le_certificate_expiration_days"`
	LENotificationEmail  string `yaml:"le_notification_email"`

	// Service identity and health registry API
	ServiceName   string `yaml:"service_name"`
	HCAPIURL      string `yaml:"hcapi_url"`
	HCAPIUser     string `yaml:"hcapi_user"`
	HCAPIPassword string `yaml:"hcapi_password"`
	HCAPIFormat   string `yaml:"hcapi_format"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		HostManager:                "noop",
		LBManager:                  "noop",
		HealthcheckTimeout:         600 * time.Second,
		RestoreLockName:            "restore_lock",
		RestoreMachineDelay:        5 * time.Minute,
		RestoreMachineFailureDelay: 5 * time.Minute,
		LECertExpirationDays:       90,
		ServiceName:                "rpaas",
		HCAPIFormat:                "http://%s:8080/",
	}
}

// Load reads the configuration from an optional YAML file and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides fields from the process environment.
func (c *Config) applyEnv() {
	setString(&c.HostManager, "HOST_MANAGER")
	setString(&c.LBManager, "LB_MANAGER")
	setSeconds(&c.HealthcheckTimeout, "RPAAS_HEALTHCHECK_TIMEOUT")
	setBool(&c.RollbackOnError, "RPAAS_ROLLBACK_ON_ERROR")
	setString(&c.RestoreLockName, "RESTORE_LOCK_NAME")
	setMinutes(&c.RestoreMachineDelay, "RESTORE_MACHINE_DELAY")
	setMinutes(&c.RestoreMachineFailureDelay, "RESTORE_MACHINE_FAILURE_DELAY")
	setBool(&c.RestoreMachineDryMode, "RESTORE_MACHINE_DRY_MODE")
	setInt(&c.LECertExpirationDays, "LE_CERTIFICATE_EXPIRATION_DAYS")
	setString(&c.LENotificationEmail, "RPAAS_PLUGIN_LE_EMAIL")
	setString(&c.ServiceName, "RPAAS_SERVICE_NAME")
	setString(&c.HCAPIURL, "HCAPI_URL")
	setString(&c.HCAPIUser, "HCAPI_USER")
	setString(&c.HCAPIPassword, "HCAPI_PASSWORD")
	setString(&c.HCAPIFormat, "HCAPI_FORMAT")
}

// Overlay returns a copy of the configuration with plan-specific overrides
// applied. Override keys use the same names as the environment variables.
// Unknown keys are ignored.
func (c *Config) Overlay(overrides map[string]string) *Config {
	out := *c
	for key, value := range overrides {
		switch key {
		case "HOST_MANAGER":
			out.HostManager = value
		case "LB_MANAGER":
			out.LBManager = value
		case "RPAAS_HEALTHCHECK_TIMEOUT":
			if secs, err := strconv.Atoi(value); err == nil {
				out.HealthcheckTimeout = time.Duration(secs) * time.Second
			}
		case "RPAAS_ROLLBACK_ON_ERROR":
			out.RollbackOnError = parseBool(value)
		case "LE_CERTIFICATE_EXPIRATION_DAYS":
			if days, err := strconv.Atoi(value); err == nil {
				out.LECertExpirationDays = days
			}
		case "RPAAS_PLUGIN_LE_EMAIL":
			out.LENotificationEmail = value
		case "RPAAS_SERVICE_NAME":
			out.ServiceName = value
		}
	}
	return &out
}

// NotificationEmail returns the certificate notification email for a domain,
// falling back to admin@<domain> when none is configured.
func (c *Config) NotificationEmail(domain string) string {
	if c.LENotificationEmail != "" {
		return c.LENotificationEmail
	}
	return "admin@" + domain
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = parseBool(v)
	}
}

func setSeconds(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func setMinutes(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Minute
		}
	}
}

// parseBool accepts the historical truthy spellings used by the platform.
func parseBool(v string) bool {
	switch v {
	case "1", "true", "True":
		return true
	}
	return false
}
