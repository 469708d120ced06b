package awscommon

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the connection settings shared by every AWS client.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string // Custom endpoint URL for simulator mode
}

// ConfigFromEnv loads connection settings from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Region:          envOrDefault("AWS_REGION", "us-east-1"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		EndpointURL:     os.Getenv("ECS_ONESHOT_ENDPOINT_URL"),
	}
}

// LoadConfig builds an aws.Config. Explicit credentials win over the
// default chain; simulator mode falls back to dummy static credentials.
func LoadConfig(ctx context.Context, c Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	switch {
	case c.AccessKeyID != "" && c.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	case c.EndpointURL != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if c.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	cfg.HTTPClient = traceHTTPClient(cfg.HTTPClient)
	return cfg, nil
}

// traceHTTPClient wraps the SDK's client in otelhttp. It must run after
// LoadDefaultConfig, which customizes the buildable client (AWS_CA_BUNDLE)
// and rejects any other client type.
func traceHTTPClient(client aws.HTTPClient) aws.HTTPClient {
	bc, ok := client.(*awshttp.BuildableClient)
	if !ok {
		return client
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(bc.GetTransport()),
		Timeout:   bc.GetTimeout(),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
