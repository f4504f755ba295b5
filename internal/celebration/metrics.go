package celebration

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"birthdaybot/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics implements Metrics.
var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics emits pipeline metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - CelebrationPipelineRun: Dims {Mode, Result}
//   - PeopleCelebrated / PeopleFiltered: Dims {Mode}
//   - ImagesSent: Dims {Mode}
//   - GenerationDuration: Dims {Mode}, milliseconds
//   - RaceConditionDetected: Dims {Mode, Reason}
//   - RaceConditionAlert: Dims {Mode}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
// An empty namespace selects types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRun emits one CelebrationPipelineRun datum per run.
func (m *CloudWatchMetrics) RecordRun(ctx context.Context, mode types.Mode, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	m.put(ctx, datum(types.MetricPipelineRun, 1, cwtypes.StandardUnitCount,
		dim(types.DimMode, string(mode)),
		dim(types.DimResult, result),
	))
}

// RecordPeople emits the celebrated and filtered counts of a run.
func (m *CloudWatchMetrics) RecordPeople(ctx context.Context, mode types.Mode, celebrated, filtered int) {
	m.put(ctx,
		datum(types.MetricPeopleCelebrated, float64(celebrated), cwtypes.StandardUnitCount, dim(types.DimMode, string(mode))),
		datum(types.MetricPeopleFiltered, float64(filtered), cwtypes.StandardUnitCount, dim(types.DimMode, string(mode))),
	)
}

// RecordImagesSent emits the number of images embedded in the post.
func (m *CloudWatchMetrics) RecordImagesSent(ctx context.Context, mode types.Mode, n int) {
	m.put(ctx, datum(types.MetricImagesSent, float64(n), cwtypes.StandardUnitCount, dim(types.DimMode, string(mode))))
}

// RecordGenerationDuration emits how long draft generation took.
func (m *CloudWatchMetrics) RecordGenerationDuration(ctx context.Context, mode types.Mode, d time.Duration) {
	m.put(ctx, datum(types.MetricGenerationDuration, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds,
		dim(types.DimMode, string(mode)),
	))
}

// RecordRaceCondition emits the number of people rejected for one reason.
func (m *CloudWatchMetrics) RecordRaceCondition(ctx context.Context, mode types.Mode, reason types.ReasonCode, count int) {
	m.put(ctx, datum(types.MetricRaceCondition, float64(count), cwtypes.StandardUnitCount,
		dim(types.DimMode, string(mode)),
		dim(types.DimReason, string(reason)),
	))
}

// RecordRaceAlert emits a RaceConditionAlert datum.
func (m *CloudWatchMetrics) RecordRaceAlert(ctx context.Context, mode types.Mode) {
	m.put(ctx, datum(types.MetricRaceConditionAlert, 1, cwtypes.StandardUnitCount, dim(types.DimMode, string(mode))))
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
