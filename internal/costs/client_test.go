package costs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/stretchr/testify/require"

	"costbot/internal/domain"
)

type fakeCostExplorer struct {
	out       *costexplorer.GetCostAndUsageOutput
	err       error
	lastInput *costexplorer.GetCostAndUsageInput
}

func (f *fakeCostExplorer) GetCostAndUsage(_ context.Context, in *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.lastInput = in
	return f.out, f.err
}

func group(service, amount string) types.Group {
	return types.Group{
		Keys:    []string{service},
		Metrics: map[string]types.MetricValue{metricUnblendedCost: {Amount: aws.String(amount)}},
	}
}

func mustNewClient(t *testing.T, api costExplorerAPI) *Client {
	t.Helper()
	c, err := New(api)
	require.NoError(t, err)
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestFetch_SumsAcrossDays(t *testing.T) {
	api := &fakeCostExplorer{out: &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{
			{Groups: []types.Group{group("Amazon EC2", "20.25"), group("Amazon S3", "1.10")}},
			{Groups: []types.Group{group("Amazon EC2", "22.25"), group("Amazon S3", "2.00")}},
		},
	}}
	c := mustNewClient(t, api)

	summary := c.Fetch(context.Background(), 3)
	require.Equal(t, domain.CostSummary{"Amazon EC2": 42.50, "Amazon S3": 3.10}, summary)
	require.InDelta(t, 45.60, summary.Total(), 1e-9)
}

func TestFetch_DropsNonPositiveAggregates(t *testing.T) {
	api := &fakeCostExplorer{out: &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{
			{Groups: []types.Group{
				group("Amazon EC2", "10.00"),
				group("AWS Free Tier", "0.00"),
				group("Credit", "-4.00"),
			}},
			{Groups: []types.Group{group("Credit", "1.00")}},
		},
	}}
	c := mustNewClient(t, api)

	summary := c.Fetch(context.Background(), 2)
	require.Equal(t, domain.CostSummary{"Amazon EC2": 10.00}, summary)
}

func TestFetch_BackendFailure_ReturnsSentinel(t *testing.T) {
	api := &fakeCostExplorer{err: errors.New("throttled")}
	c := mustNewClient(t, api)

	summary := c.Fetch(context.Background(), 7)
	require.True(t, summary.Unavailable())
	require.Zero(t, summary.Total())
}

func TestFetch_QueryShape(t *testing.T) {
	api := &fakeCostExplorer{out: &costexplorer.GetCostAndUsageOutput{}}
	c := mustNewClient(t, api)
	c.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }

	c.Fetch(context.Background(), 3)

	require.NotNil(t, api.lastInput)
	require.Equal(t, "2024-05-07", aws.ToString(api.lastInput.TimePeriod.Start))
	require.Equal(t, "2024-05-10", aws.ToString(api.lastInput.TimePeriod.End))
	require.Equal(t, types.GranularityDaily, api.lastInput.Granularity)
	require.Equal(t, []string{metricUnblendedCost}, api.lastInput.Metrics)
	require.Len(t, api.lastInput.GroupBy, 1)
	require.Equal(t, "SERVICE", aws.ToString(api.lastInput.GroupBy[0].Key))
}

func TestFetch_SkipsUnparseableAmounts(t *testing.T) {
	api := &fakeCostExplorer{out: &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []types.ResultByTime{
			{Groups: []types.Group{group("Amazon EC2", "not-a-number"), group("Amazon S3", "2.50")}},
		},
	}}
	c := mustNewClient(t, api)

	summary := c.Fetch(context.Background(), 1)
	require.Equal(t, domain.CostSummary{"Amazon S3": 2.50}, summary)
}

func TestSortedServices_OrdersBySpendThenName(t *testing.T) {
	summary := domain.CostSummary{"B": 1.0, "A": 1.0, "C": 5.0}
	require.Equal(t, []string{"C", "A", "B"}, SortedServices(summary))
}
