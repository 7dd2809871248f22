package tlsticket

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdks3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3StoreConfig names the SDK-level settings the persisted keystore
// (spec §6) needs to reach its bucket; everything else (retries,
// region resolution order) is left to config.LoadDefaultConfig's usual
// env/shared-config chain.
type S3StoreConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// NewS3ObjectStore builds the real ObjectStore backend for Keystore,
// loading SDK credentials/region through aws-sdk-go-v2/config the way
// any AWS-backed component in this stack does, and overriding them with
// cfg's static keys when a caller supplies one (e.g. an S3-compatible
// on-prem object store rather than AWS itself).
func NewS3ObjectStore(ctx context.Context, cfg S3StoreConfig) (ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return sdks3.NewFromConfig(awsCfg, func(o *sdks3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}
