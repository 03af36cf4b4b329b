package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/blobstore"
	"github.com/loomworks/loom/internal/ledger"
	"github.com/loomworks/loom/internal/publish"
	"github.com/loomworks/loom/internal/site"
	"github.com/loomworks/loom/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath    string
	objectID      string
	dryRun        bool
	quiet         bool
	watch         bool
	watchInterval time.Duration
	concurrency   int
	maxBundleSize int64
	slotCapacity  int64
	sender        string
	publisherURL  string
	aggregatorURL string
	ledgerURL     string
	s3Bucket      string
	s3Prefix      string
	s3Shards      int
	awsProfile    string
	awsRegion     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "loom",
		Short:   "Publish static sites to the quilt blob network and its ledger",
		Version: fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
	}

	publishCmd := &cobra.Command{
		Use:   "publish <dir>",
		Short: "Publish a directory as a new site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), args[0], false)
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update <dir>",
		Short: "Converge an existing site to match a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), args[0], true)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the published manifest of a site object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}

	for _, c := range []*cobra.Command{publishCmd, updateCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without uploading or submitting")
		c.Flags().BoolVar(&watch, "watch", false, "Keep watching the directory and republish on change")
		c.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Watch poll interval")
		c.Flags().IntVar(&concurrency, "concurrency", 4, "Number of concurrent bundle uploads")
		c.Flags().Int64Var(&maxBundleSize, "max-bundle-size", 100<<20, "Maximum bundle size in bytes")
		c.Flags().StringVar(&sender, "sender", "", "Publishing address")
	}
	updateCmd.Flags().StringVar(&objectID, "object-id", "", "Site object to update (overrides config)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to loom.yaml (default <dir>/loom.yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	rootCmd.PersistentFlags().Int64Var(&slotCapacity, "slot-capacity", 64<<10, "Network slot capacity in bytes")
	rootCmd.PersistentFlags().StringVar(&publisherURL, "publisher-url", "", "Blob network publisher endpoint")
	rootCmd.PersistentFlags().StringVar(&aggregatorURL, "aggregator-url", "", "Blob network aggregator endpoint")
	rootCmd.PersistentFlags().StringVar(&ledgerURL, "ledger-url", "", "Ledger full node endpoint")
	rootCmd.PersistentFlags().StringVar(&s3Bucket, "s3-bucket", "", "Use an S3 bucket as the bundle store")
	rootCmd.PersistentFlags().StringVar(&s3Prefix, "s3-prefix", "", "Key prefix within the S3 bucket")
	rootCmd.PersistentFlags().IntVar(&s3Shards, "s3-shards", 1000, "Shard count to emulate with the S3 store")
	rootCmd.PersistentFlags().StringVar(&awsProfile, "profile", "", "AWS profile for the S3 store")
	rootCmd.PersistentFlags().StringVar(&awsRegion, "region", "", "AWS region for the S3 store")

	statusCmd.Flags().StringVar(&objectID, "object-id", "", "Site object to inspect (overrides config)")

	rootCmd.AddCommand(publishCmd, updateCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(dir string) (*site.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(dir, "loom.yaml")
	}
	return site.LoadConfig(path)
}

func buildStore(ctx context.Context) (blobstore.Store, error) {
	if s3Bucket != "" {
		var configOpts []func(*awsconfig.LoadOptions) error
		if awsProfile != "" {
			configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(awsProfile))
		}
		if awsRegion != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(awsRegion))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return blobstore.NewS3Store(s3.NewFromConfig(cfg), s3Bucket, s3Prefix, s3Shards), nil
	}

	if publisherURL == "" {
		return nil, fmt.Errorf("either --publisher-url or --s3-bucket is required")
	}
	return blobstore.NewHTTPStore(blobstore.HTTPStoreOptions{
		PublisherURL:  publisherURL,
		AggregatorURL: aggregatorURL,
	}), nil
}

func buildLedgerClient(log logger.Logger) (*ledger.Client, error) {
	if ledgerURL == "" {
		return nil, fmt.Errorf("--ledger-url is required")
	}
	rpc := ledger.NewHTTPRPC(ledgerURL, time.Minute)
	return ledger.NewClient(rpc, ledger.NewVersionCache(), ledger.DefaultBackoff, log), nil
}

func runPublish(ctx context.Context, dir string, update bool) error {
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	if objectID != "" {
		cfg.ObjectID = objectID
	}
	if update && cfg.ObjectID == "" {
		return fmt.Errorf("update requires an object_id in the config or --object-id")
	}
	if !update {
		cfg.ObjectID = ""
	}

	log := &logger.PublishLogger{IsDryRun: dryRun, IsQuiet: quiet}

	store, err := buildStore(ctx)
	if err != nil {
		return err
	}
	client, err := buildLedgerClient(log)
	if err != nil {
		return err
	}

	publisher := publish.NewPublisher(store, client, log, publish.Options{
		MaxBundleSize: maxBundleSize,
		SlotCapacity:  slotCapacity,
		Concurrency:   concurrency,
		Sender:        sender,
		DryRun:        dryRun,
	})

	if watch {
		return publisher.Watch(ctx, dir, cfg, watchInterval)
	}

	summary, err := publisher.Run(ctx, dir, cfg)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	if objectID != "" {
		cfg.ObjectID = objectID
	}
	if cfg.ObjectID == "" {
		return fmt.Errorf("status requires an object_id in the config or --object-id")
	}

	client, err := buildLedgerClient(&logger.NullLogger{})
	if err != nil {
		return err
	}

	obj, err := client.GetObject(ctx, ledger.ObjectID(cfg.ObjectID))
	if err != nil {
		return err
	}
	manifest, err := publish.DecodeManifest(obj)
	if err != nil {
		return err
	}

	fmt.Printf("site: %s (object %s, version %d)\n", manifest.Name, obj.Ref.ID, obj.Ref.Version)
	for _, r := range manifest.Resources {
		fmt.Printf("  %s  %s  bundle=%s patch=%s\n", r.Path, r.Hash, r.BundleID, r.PatchID)
	}
	for from, to := range manifest.Routes {
		fmt.Printf("  route %s -> %s\n", from, to)
	}
	return nil
}

func printSummary(s *publish.Summary) {
	if quiet {
		return
	}
	fmt.Println()
	fmt.Println("=== Summary ===")
	if s.SiteID != "" {
		fmt.Printf("Site object: %s\n", s.SiteID)
	}
	fmt.Printf("Created: %d, Deleted: %d, Unchanged: %d\n", s.Created, s.Deleted, s.Unchanged)
	fmt.Printf("Bundles stored: %d (%d bytes)\n", s.Bundles, s.BytesStored)
	fmt.Printf("Transactions: %d\n", s.Transactions)
	fmt.Printf("Duration: %s\n", s.Duration.Round(time.Millisecond))
}
