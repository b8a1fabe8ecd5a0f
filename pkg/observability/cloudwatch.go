package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics pushes the alarms-worthy signals to CloudWatch
type CloudWatchMetrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
	timeout   time.Duration
}

// NewCloudWatchMetrics creates a new CloudWatch publisher. A nil client
// turns every call into a no-op
func NewCloudWatchMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// ObserveSave reports failed snapshot saves. Successes are left to
// Prometheus
func (m *CloudWatchMetrics) ObserveSave(chatID string, _ time.Duration, err error) {
	if m.client == nil || err == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("AutosaveFailure"),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
	})
}

// RecordGenerationFailure counts generation failures by operation
func (m *CloudWatchMetrics) RecordGenerationFailure(ctx context.Context, operation string, retryable bool) {
	if m.client == nil {
		return
	}
	kind := "Fatal"
	if retryable {
		kind = "Retryable"
	}
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("GenerationFailure"),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(operation)},
			{Name: aws.String("Kind"), Value: aws.String(kind)},
		},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum types.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []types.MetricDatum{datum},
	})
	if err != nil {
		// metrics never fail the operation they describe
		m.logger.Warn("Failed to send metrics", zap.Error(err), zap.String("metric", aws.ToString(datum.MetricName)))
	}
}
