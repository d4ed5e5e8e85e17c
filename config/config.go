// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	migrateOnly    = pflag.Bool("migrate-only", false, "Run database migrations and exit")
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"sqlite", "postgres"}
)

// MigrateOnly reports whether the server was started just to run migrations.
func MigrateOnly() bool {
	return *migrateOnly
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")

	v.BindEnv("storage.driver", "storage_driver")
	v.BindEnv("storage.dsn", "storage_dsn")

	v.BindEnv("aws.access_key_id", "aws_access_key_id")
	v.BindEnv("aws.secret_access_key", "aws_secret_access_key")
	v.BindEnv("aws.region", "aws_region")
	v.BindEnv("aws.endpoint", "aws_endpoint")
	v.BindEnv("aws.bucket", "aws_bucket")
	v.BindEnv("aws.asset_host", "aws_asset_host")

	v.BindEnv("encoder.endpoint", "encoder_endpoint")
	v.BindEnv("encoder.api_key", "encoder_api_key")
	v.BindEnv("encoder.webhook_base", "encoder_webhook_base")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("notify.webhook_url", "notify_webhook_url")
	v.BindEnv("notify.contributor_webhook_url", "notify_contributor_webhook_url")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "database.db")

	v.SetDefault("aws.upload_folder", "uploads")
	v.SetDefault("aws.encoded_folder", "e")
	v.SetDefault("aws.thumbnail_folder", "t")

	v.SetDefault("encoder.endpoint", "https://api.coconut.co/v1/job")
	v.SetDefault("encoder.timeout", 10*time.Second)

	v.SetDefault("upload.max_size", 4<<30)
	v.SetDefault("upload.max_name_length", 245)
	v.SetDefault("upload.allowed_exts", []string{"mp4", "mov", "webm", "avi", "wmv", "flv", "mkv"})
	v.SetDefault("upload.presign_expiry", 15*time.Minute)
	v.SetDefault("upload.default_daily_limit", 5)

	// Whether deleted uploads still count against the daily quota.
	// Matches the legacy behavior when enabled
	v.SetDefault("quota.count_deleted", true)

	v.SetDefault("stuck.check_interval", 15*time.Minute)
	v.SetDefault("stuck.max_processing_age", 6*time.Hour)

	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDrivers, v.GetString("storage.driver")) {
		return errors.New("invalid storage driver provided")
	}

	if v.GetString("storage.dsn") == "" {
		return errors.New("storage dsn can't be empty")
	}

	if v.GetString("aws.access_key_id") == "" {
		return errors.New("aws access key id can't be empty")
	}
	if v.GetString("aws.secret_access_key") == "" {
		return errors.New("aws secret access key can't be empty")
	}
	if v.GetString("aws.bucket") == "" {
		return errors.New("aws bucket can't be empty")
	}
	if v.GetString("aws.asset_host") == "" {
		return errors.New("aws asset host can't be empty")
	}

	if v.GetString("encoder.api_key") == "" {
		return errors.New("encoder api key can't be empty")
	}

	if v.GetString("encoder.webhook_base") == "" {
		v.Set("encoder.webhook_base", fmt.Sprintf("https://%s/webhooks/video", v.GetString("host.domain")))
	}

	if v.GetString("jwt.secret") == "" {
		return errors.New("jwt secret can't be empty")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetInt("upload.default_daily_limit") <= 0 {
		return errors.New("upload.default_daily_limit must be bigger than 0")
	}

	if v.GetDuration("upload.presign_expiry") <= 0 {
		return errors.New("upload.presign_expiry must be bigger than 0")
	}

	if v.GetString("notify.webhook_url") == "" {
		fmt.Println("[WARNING]: No Discord webhook URL configured, upload notifications are disabled")
	}

	return nil
}
