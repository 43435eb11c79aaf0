package s3Api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/KotFed0t/fund_calc_pipeline/config"
	"github.com/KotFed0t/fund_calc_pipeline/utils"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Api uploads persisted artifacts to an S3 bucket under {fund}/{date}/.
// A misconfigured or disabled uploader degrades to a no-op: cloud backup must
// never fail a calculation run.
type S3Api struct {
	uploader *manager.Uploader
	cfg      *config.Config
	enabled  bool
}

func New(ctx context.Context, cfg *config.Config) *S3Api {
	if !cfg.S3.Enabled {
		slog.Info("s3 upload is disabled in configuration")
		return &S3Api{cfg: cfg}
	}

	if cfg.S3.Bucket == "" {
		slog.Error("s3 bucket is not configured, s3 upload disabled")
		return &S3Api{cfg: cfg}
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.S3.Region))
	if err != nil {
		slog.Error("failed loading aws config, s3 upload disabled", slog.String("err", err.Error()))
		return &S3Api{cfg: cfg}
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Api{
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		enabled:  true,
	}
}

func (a *S3Api) Enabled() bool {
	return a.enabled
}

// UploadFundArtifacts uploads each local file to {fund}/{date}/{filename} and
// returns a per-file success map for the summary email. Individual failures
// are logged, not propagated.
func (a *S3Api) UploadFundArtifacts(ctx context.Context, fund, date string, paths []string) map[string]bool {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "S3Api.UploadFundArtifacts"

	if !a.enabled {
		return nil
	}

	slog.Debug("UploadFundArtifacts start", slog.String("rqID", rqID), slog.String("op", op), slog.String("fund", fund), slog.Int("files", len(paths)))

	results := make(map[string]bool, len(paths))

	for _, path := range paths {
		name := filepath.Base(path)
		key := fmt.Sprintf("%s/%s/%s", fund, date, name)

		err := a.uploadFile(ctx, path, key)
		if err != nil {
			slog.Error("failed uploading file to s3",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("file", name),
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
		}
		results[name] = err == nil
	}

	uploaded := 0
	for _, ok := range results {
		if ok {
			uploaded++
		}
	}
	slog.Info("s3 upload complete",
		slog.String("rqID", rqID),
		slog.String("fund", fund),
		slog.Int("uploaded", uploaded),
		slog.Int("total", len(results)),
	)

	return results
}

func (a *S3Api) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType := contentTypeFor(localPath)

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &a.cfg.S3.Bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
