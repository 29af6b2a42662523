// Package s3 implements the object-store latency probe.
//
// The probe uploads a small test object under a per-run unique key,
// times five downloads of it, deletes it again, and always removes its
// local scratch files regardless of what failed in between.
package s3

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/redpill-linpro/kanari/pkg/probe"
)

const (
	// TypeName is the probe name and metric key prefix.
	TypeName = "s3"

	// getRepetitions is the number of timed downloads.
	getRepetitions = 5
)

// testPayload is the object body used to exercise upload and download.
var testPayload = []byte("This is a test file for S3 performance testing.")

// Config holds the object-store coordinates for an S3 probe.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Probe exercises an S3-compatible object store.
type Probe struct {
	cfg    Config
	logger *logrus.Logger
}

// New creates an S3 probe.
func New(cfg Config, logger *logrus.Logger) *Probe {
	return &Probe{cfg: cfg, logger: logger}
}

// Name returns the probe name.
func (p *Probe) Name() string {
	return TypeName
}

// Enabled reports whether object-store credentials are configured.
func (p *Probe) Enabled() (bool, string) {
	if p.cfg.AccessKey == "" || p.cfg.SecretKey == "" {
		return false, "S3 credentials not configured"
	}
	return true, ""
}

// Run executes the probe steps and classifies the result.
//
// Individual failed downloads are excluded from the worst/best/avg
// summary; only when every repetition fails is an explicit
// "s3_get_error" entry reported. A failed delete of the remote test
// object is likewise recorded but never fails the probe.
func (p *Probe) Run(ctx context.Context) probe.Outcome {
	if ok, reason := p.Enabled(); !ok {
		return probe.Disabled(reason)
	}

	metrics := make(probe.Metrics)

	client, elapsed, err := probe.TimeValue(func() (*awss3.Client, error) {
		return p.newClient(ctx)
	})
	metrics["s3_client_init_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}

	uploadPath, err := writeScratchFile()
	if err != nil {
		return p.fail(metrics, err)
	}
	defer p.removeScratch(uploadPath)

	downloadPath := uploadPath + ".download"
	defer p.removeScratch(downloadPath)

	key := fmt.Sprintf("stats-test-%s.txt", uuid.NewString())

	elapsed, err = probe.Time(func() error {
		return p.upload(ctx, client, uploadPath, key)
	})
	metrics["s3_put_time"] = elapsed
	if err != nil {
		return p.fail(metrics, err)
	}
	p.logger.Infof("s3: uploaded test object %s to bucket %s", key, p.cfg.Bucket)

	samples := make([]float64, 0, getRepetitions)
	for i := 0; i < getRepetitions; i++ {
		elapsed, err := probe.Time(func() error {
			return p.download(ctx, client, downloadPath, key)
		})
		if err != nil {
			p.logger.Errorf("s3: error downloading test object: %v", err)
			continue
		}
		samples = append(samples, elapsed)
	}
	if summary, ok := probe.Summarize(samples); ok {
		metrics["s3_get_worst"] = summary.Worst
		metrics["s3_get_best"] = summary.Best
		metrics["s3_get_avg"] = summary.Avg
	} else {
		metrics["s3_get_error"] = "no successful get operations"
	}

	elapsed, err = probe.Time(func() error {
		_, err := client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(p.cfg.Bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		p.logger.Errorf("s3: error deleting test object: %v", err)
		metrics["s3_delete_file_error"] = err.Error()
	} else {
		metrics["s3_delete_file_time"] = elapsed
	}

	return probe.Success(metrics)
}

func (p *Probe) fail(metrics probe.Metrics, err error) probe.Outcome {
	p.logger.Warnf("s3: probe failed: %v", err)
	metrics["s3_error"] = err.Error()
	return probe.SoftError(metrics)
}

// newClient builds an S3 client with static credentials and, for
// non-AWS object stores, a custom endpoint with path-style addressing.
func (p *Probe) newClient(ctx context.Context) (*awss3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.cfg.AccessKey, p.cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	return awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if p.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func (p *Probe) upload(ctx context.Context, client *awss3.Client, path string, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	uploader := manager.NewUploader(client)
	_, err = uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

func (p *Probe) download(ctx context.Context, client *awss3.Client, path string, key string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	downloader := manager.NewDownloader(client)
	_, err = downloader.Download(ctx, f, &awss3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	return err
}

// writeScratchFile creates the local temp file holding the test payload.
func writeScratchFile() (string, error) {
	f, err := os.CreateTemp("", "kanari-s3-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(testPayload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// removeScratch deletes a local scratch file. Cleanup failures are
// logged, never escalated; they must not mask the probe's outcome.
func (p *Probe) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warnf("s3: could not remove scratch file %s: %v", path, err)
	}
}
