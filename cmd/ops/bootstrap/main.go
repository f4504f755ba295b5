// Package main implements the bootstrap CLI for the birthday bot.
//
// It walks an operator through collecting the Slack, OpenAI and database
// credentials the bot needs, generates the admin API token, and stores
// everything in AWS SSM Parameter Store under /{env}/birthdaybot/. When it
// finishes it prints the *_SSM_PARAM pointer variables to set on the Lambda
// and admin API.
//
// Usage:
//
//	go run ./cmd/ops/bootstrap --env=dev
//	go run ./cmd/ops/bootstrap --env=prod --profile=birthdaybot-prod --region=eu-west-1
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// BootstrapContext holds the session established during initialization.
type BootstrapContext struct {
	Environment string
	AWSProfile  string
	AWSRegion   string

	// AccountID and CallerARN come from STS GetCallerIdentity.
	AccountID string
	CallerARN string

	AWSConfig aws.Config
	Logger    *slog.Logger
}

func main() {
	envFlag := flag.String("env", "", "Target environment (dev/staging/prod) [required]")
	profileFlag := flag.String("profile", "", "AWS CLI profile (default: uses default credential chain)")
	regionFlag := flag.String("region", "us-east-1", "AWS region")
	skipOptional := flag.Bool("skip-optional", false, "Skip optional parameters such as the OpenAI key without prompting")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Birthday Bot Bootstrap Tool\n\n")
		fmt.Fprintf(os.Stderr, "Stores the Slack, OpenAI, database and admin credentials in SSM.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  bootstrap --env=dev [--profile=NAME] [--region=REGION] [--skip-optional]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *envFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --env is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if !validEnvironments[*envFlag] {
		fmt.Fprintf(os.Stderr, "error: invalid environment %q (must be dev, staging, or prod)\n", *envFlag)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bctx, err := initializeSession(ctx, *envFlag, *profileFlag, *regionFlag, logger)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	if bctx.Environment == "prod" && !confirmProduction(bctx, os.Stdin, os.Stderr) {
		fmt.Fprintln(os.Stderr, "Aborted. No changes were made.")
		os.Exit(0)
	}

	printBanner(bctx, os.Stderr)

	runner := NewBootstrapRunner(bctx)
	runner.SkipOptional = *skipOptional
	results, err := runner.Run(ctx)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	// Pointer variables go to stdout so they can be piped into a deploy file.
	for _, line := range EnvPointerLines(results) {
		fmt.Fprintln(os.Stdout, line)
	}

	logger.Info("bootstrap completed successfully",
		"env", bctx.Environment,
		"account", bctx.AccountID,
		"region", bctx.AWSRegion,
	)
}

// initializeSession loads the AWS SDK configuration and confirms the active
// identity with STS before anything is written.
func initializeSession(ctx context.Context, env, profile, region string, logger *slog.Logger) (*BootstrapContext, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	identityCtx, identityCancel := context.WithTimeout(ctx, 10*time.Second)
	defer identityCancel()

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(identityCtx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("verifying AWS identity (STS GetCallerIdentity): %w\n"+
			"  Check that your AWS credentials are configured correctly.\n"+
			"  Profile: %q, Region: %q", err, profile, region)
	}

	accountID := aws.ToString(identity.Account)
	callerARN := aws.ToString(identity.Arn)
	logger.Info("AWS identity verified",
		"account_id", accountID,
		"arn", callerARN,
		"region", region,
	)

	return &BootstrapContext{
		Environment: env,
		AWSProfile:  profile,
		AWSRegion:   region,
		AccountID:   accountID,
		CallerARN:   callerARN,
		AWSConfig:   cfg,
		Logger:      logger,
	}, nil
}

// confirmProduction returns true only if the operator types "yes".
func confirmProduction(bctx *BootstrapContext, in io.Reader, out io.Writer) bool {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n%s\n  WARNING: writing birthday bot secrets to PRODUCTION\n%s\n", rule, rule)
	fmt.Fprintf(out, "  Account: %s\n  Region:  %s\n  ARN:     %s\n%s\n\n", bctx.AccountID, bctx.AWSRegion, bctx.CallerARN, rule)
	fmt.Fprint(out, "Type 'yes' to continue: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func printBanner(bctx *BootstrapContext, out io.Writer) {
	rule := strings.Repeat("-", 60)
	fmt.Fprintf(out, "\n%s\n  Birthday Bot Bootstrap\n%s\n", rule, rule)
	rows := [][2]string{
		{"Environment", bctx.Environment},
		{"AWS Account", bctx.AccountID},
		{"AWS Region", bctx.AWSRegion},
		{"Identity", bctx.CallerARN},
		{"Profile", bctx.AWSProfile},
		{"SSM Prefix", ssmPrefix(bctx.Environment)},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(out, "  %-13s %s\n", row[0]+":", row[1])
	}
	fmt.Fprintf(out, "%s\n\n", rule)
}
