package celebration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"birthdaybot/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, value string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != value {
				t.Errorf("dimension %s: expected %q, got %q", name, value, *d.Value)
			}
			return
		}
	}
	t.Errorf("dimension %s not found", name)
}

func TestCloudWatchMetrics_RecordRun(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, "", nil)

	metrics.RecordRun(context.Background(), types.ModeTimezone, false)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, *input.Namespace)
	}
	datum := input.MetricData[0]
	if *datum.MetricName != types.MetricPipelineRun {
		t.Errorf("expected metric name %q, got %q", types.MetricPipelineRun, *datum.MetricName)
	}
	if datum.Unit != cwtypes.StandardUnitCount {
		t.Errorf("expected unit Count, got %s", datum.Unit)
	}
	assertDimension(t, datum.Dimensions, types.DimMode, "TIMEZONE")
	assertDimension(t, datum.Dimensions, types.DimResult, "failed")
}

func TestCloudWatchMetrics_RecordPeople(t *testing.T) {
	cw := &mockCloudWatchClient{}
	NewCloudWatchMetrics(cw, "Custom", nil).RecordPeople(context.Background(), types.ModeSimple, 3, 1)

	input := cw.calls[0]
	if *input.Namespace != "Custom" {
		t.Errorf("expected custom namespace, got %q", *input.Namespace)
	}
	if len(input.MetricData) != 2 {
		t.Fatalf("expected 2 datums, got %d", len(input.MetricData))
	}
	if *input.MetricData[0].Value != 3 || *input.MetricData[1].Value != 1 {
		t.Errorf("unexpected values %v / %v", *input.MetricData[0].Value, *input.MetricData[1].Value)
	}
}

func TestCloudWatchMetrics_RecordGenerationDuration(t *testing.T) {
	cw := &mockCloudWatchClient{}
	NewCloudWatchMetrics(cw, "", nil).RecordGenerationDuration(context.Background(), types.ModeSimple, 1500*time.Millisecond)

	datum := cw.calls[0].MetricData[0]
	if *datum.Value != 1500 {
		t.Errorf("expected 1500ms, got %v", *datum.Value)
	}
	if datum.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("expected unit Milliseconds, got %s", datum.Unit)
	}
}

func TestCloudWatchMetrics_RecordRaceCondition(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, "", nil)

	metrics.RecordRaceCondition(context.Background(), types.ModeMissed, types.ReasonLeftChannel, 2)
	metrics.RecordRaceAlert(context.Background(), types.ModeMissed)

	if len(cw.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(cw.calls))
	}
	assertDimension(t, cw.calls[0].MetricData[0].Dimensions, types.DimReason, "left_channel")
	if *cw.calls[1].MetricData[0].MetricName != types.MetricRaceConditionAlert {
		t.Errorf("expected alert metric, got %q", *cw.calls[1].MetricData[0].MetricName)
	}
}

func TestCloudWatchMetrics_ErrorIsLoggedNotPropagated(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: fmt.Errorf("throttled")}
	metrics := NewCloudWatchMetrics(cw, "", nil)

	// Must not panic.
	metrics.RecordImagesSent(context.Background(), types.ModeSimple, 2)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(cw.calls))
	}
}
