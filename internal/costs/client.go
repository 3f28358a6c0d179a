package costs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"costbot/internal/domain"
)

const (
	metricUnblendedCost = "UnblendedCost"
	sentinelMessage     = "Cost data unavailable"
)

// costExplorerAPI is the minimal Cost Explorer interface required by Client.
// *costexplorer.Client from aws-sdk-go-v2 satisfies this interface.
type costExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, in *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Client aggregates billing data from AWS Cost Explorer.
type Client struct {
	api costExplorerAPI
	now func() time.Time
}

// New creates a Client with the given Cost Explorer API implementation.
func New(api costExplorerAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("costs: api must not be nil")
	}
	return &Client{api: api, now: time.Now}, nil
}

// Fetch queries daily per-service spend for the half-open window
// [today-days, today) and sums it per service. Services whose accumulated
// amount is not positive are dropped. On backend failure it returns the
// sentinel summary instead of an error; callers check for the sentinel key.
func (c *Client) Fetch(ctx context.Context, days int) domain.CostSummary {
	if days < 1 {
		days = 1
	}
	end := c.now().UTC()
	start := end.AddDate(0, 0, -days)

	out, err := c.api.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(start.Format("2006-01-02")),
			End:   aws.String(end.Format("2006-01-02")),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{metricUnblendedCost},
		GroupBy: []types.GroupDefinition{
			{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
	})
	if err != nil {
		slog.Error("cost explorer query failed", "days", days, "err", err)
		return domain.CostSummary{domain.SentinelErrorKey: 0}
	}

	accumulated := map[string]float64{}
	for _, byTime := range out.ResultsByTime {
		for _, group := range byTime.Groups {
			if len(group.Keys) == 0 {
				continue
			}
			metric, ok := group.Metrics[metricUnblendedCost]
			if !ok || metric.Amount == nil {
				continue
			}
			amount, parseErr := strconv.ParseFloat(*metric.Amount, 64)
			if parseErr != nil {
				slog.Warn("skipping unparseable cost amount", "service", group.Keys[0], "amount", *metric.Amount)
				continue
			}
			accumulated[group.Keys[0]] += amount
		}
	}

	summary := domain.CostSummary{}
	for service, amount := range accumulated {
		if amount <= 0 {
			continue
		}
		summary[service] = amount
	}
	slog.Info("aggregated cost data", "days", days, "services", len(summary))
	return summary
}

// SentinelText is the human-readable marker rendered for the sentinel entry
// in prompts and callback messages.
func SentinelText() string { return sentinelMessage }

// SortedServices returns the summary's service names in a stable order,
// largest spend first and alphabetical within equal amounts.
func SortedServices(summary domain.CostSummary) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if summary[names[i]] != summary[names[j]] {
			return summary[names[i]] > summary[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
