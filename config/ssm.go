package config

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter Store names read in prod.
const (
	ParamDBHost        = "LISTING_WATCHER_DB_HOST"
	ParamDBUser        = "LISTING_WATCHER_DB_USER"
	ParamDBPassword    = "LISTING_WATCHER_DB_PASSWORD"
	ParamMEXCAPIKey    = "LISTING_WATCHER_MEXC_API_KEY"
	ParamMEXCAPISecret = "LISTING_WATCHER_MEXC_API_SECRET"
)

// ResolveSecrets fills the MEXC credentials from Parameter Store when running
// in prod and they were not provided through config or env.
func (c *Config) ResolveSecrets() {
	if c.Environment != "prod" {
		return
	}
	if c.MEXC.APIKey == "" {
		c.MEXC.APIKey = getParameterStoreValue(ParamMEXCAPIKey, true)
	}
	if c.MEXC.APISecret == "" {
		c.MEXC.APISecret = getParameterStoreValue(ParamMEXCAPISecret, true)
	}
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
