package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/tkral/annomine/archive"
	"github.com/tkral/annomine/blobstore"
	blobminio "github.com/tkral/annomine/blobstore/minio"
	blobs3 "github.com/tkral/annomine/blobstore/s3"
)

var archiveFlags struct {
	dir     string
	backend string

	dest string // local

	bucket string // s3, minio
	prefix string

	endpoint  string // minio
	accessKey string
	secretKey string
	secure    bool
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Upload sealed artifacts from a run directory to a blob store",
	Long: `Archive walks a run directory and uploads every artifact whose
completeness marker verifies, together with the marker itself, so the
remote copy stays verifiable. Unsealed artifacts and run sidecars are
skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store blobstore.Store
		switch archiveFlags.backend {
		case "local":
			if archiveFlags.dest == "" {
				return fmt.Errorf("--dest is required for the local backend")
			}
			store = blobstore.NewLocalStore(archiveFlags.dest)
		case "s3":
			if archiveFlags.bucket == "" {
				return fmt.Errorf("--bucket is required for the s3 backend")
			}
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("load AWS config: %w", err)
			}
			store = blobs3.NewStore(awss3.NewFromConfig(cfg), archiveFlags.bucket, archiveFlags.prefix)
		case "minio":
			if archiveFlags.bucket == "" || archiveFlags.endpoint == "" {
				return fmt.Errorf("--bucket and --endpoint are required for the minio backend")
			}
			client, err := minio.New(archiveFlags.endpoint, &minio.Options{
				Creds:  credentials.NewStaticV4(archiveFlags.accessKey, archiveFlags.secretKey, ""),
				Secure: archiveFlags.secure,
			})
			if err != nil {
				return fmt.Errorf("connect to minio: %w", err)
			}
			store = blobminio.NewStore(client, archiveFlags.bucket, archiveFlags.prefix)
		default:
			return fmt.Errorf("unknown backend %q (want local, s3, or minio)", archiveFlags.backend)
		}

		uploaded, err := archive.Push(ctx, store, archiveFlags.dir, logger)
		if err != nil {
			return err
		}
		logger.Info("archive complete", "uploaded", len(uploaded), "backend", archiveFlags.backend)
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVar(&archiveFlags.dir, "dir", "", "run directory to archive")
	archiveCmd.Flags().StringVar(&archiveFlags.backend, "backend", "local", "destination backend: local, s3, or minio")
	archiveCmd.Flags().StringVar(&archiveFlags.dest, "dest", "", "destination directory (local backend)")
	archiveCmd.Flags().StringVar(&archiveFlags.bucket, "bucket", "", "destination bucket (s3 and minio backends)")
	archiveCmd.Flags().StringVar(&archiveFlags.prefix, "prefix", "", "key prefix inside the bucket")
	archiveCmd.Flags().StringVar(&archiveFlags.endpoint, "endpoint", "", "endpoint host:port (minio backend)")
	archiveCmd.Flags().StringVar(&archiveFlags.accessKey, "access-key", "", "access key (minio backend)")
	archiveCmd.Flags().StringVar(&archiveFlags.secretKey, "secret-key", "", "secret key (minio backend)")
	archiveCmd.Flags().BoolVar(&archiveFlags.secure, "secure", false, "use TLS for the minio endpoint")
	_ = archiveCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(archiveCmd)
}
