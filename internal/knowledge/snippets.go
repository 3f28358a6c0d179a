// Package knowledge maps the dominant cost driver in a summary to a canned
// remediation snippet. The tables are static; determinism matters more here
// than coverage because the snippet feeds a prompt and a test suite.
package knowledge

import (
	"sort"
	"strings"

	"costbot/internal/domain"
)

// NoSnippet is returned when no category matches the cost driver or the
// summary carries no real cost lines.
const NoSnippet = "no snippet available"

// serviceCategory maps fragments of billing service names to a remediation
// category. Raw billing names ("Amazon EC2", "AmazonCloudWatch") never
// contain category words themselves, so the driver is categorized before
// keyword matching.
var serviceCategory = map[string]string{
	"EC2":        "Compute",
	"Lambda":     "Compute",
	"ECS":        "Compute",
	"Fargate":    "Compute",
	"S3":         "Storage",
	"EBS":        "Storage",
	"Glacier":    "Storage",
	"RDS":        "Database",
	"DynamoDB":   "Database",
	"Aurora":     "Database",
	"VPC":        "VPC",
	"NAT":        "VPC",
	"CloudFront": "VPC",
}

// categoryKeywords is the fixed matching order for snippet lookup.
var categoryKeywords = []string{"Compute", "Database", "Storage", "VPC"}

var snippetTemplates = map[string]string{
	"Compute": "Compute is your largest line item. Consider right-sizing or scheduling instances off-hours:\n" +
		"```\n" +
		"resource \"aws_autoscaling_schedule\" \"scale_down_nights\" {\n" +
		"  scheduled_action_name  = \"scale-down-nights\"\n" +
		"  autoscaling_group_name = aws_autoscaling_group.app.name\n" +
		"  recurrence             = \"0 20 * * MON-FRI\"\n" +
		"  desired_capacity       = 0\n" +
		"}\n" +
		"```",
	"Storage": "Storage dominates your spend. Lifecycle rules move cold objects to cheaper tiers:\n" +
		"```\n" +
		"resource \"aws_s3_bucket_lifecycle_configuration\" \"archive\" {\n" +
		"  bucket = aws_s3_bucket.data.id\n" +
		"  rule {\n" +
		"    id     = \"archive-after-30d\"\n" +
		"    status = \"Enabled\"\n" +
		"    transition {\n" +
		"      days          = 30\n" +
		"      storage_class = \"GLACIER\"\n" +
		"    }\n" +
		"  }\n" +
		"}\n" +
		"```",
	"Database": "Database spend leads the window. On-demand capacity avoids paying for idle provisioned throughput:\n" +
		"```\n" +
		"resource \"aws_dynamodb_table\" \"main\" {\n" +
		"  name         = \"main\"\n" +
		"  billing_mode = \"PAY_PER_REQUEST\"\n" +
		"  hash_key     = \"pk\"\n" +
		"  attribute {\n" +
		"    name = \"pk\"\n" +
		"    type = \"S\"\n" +
		"  }\n" +
		"}\n" +
		"```",
	"VPC": "Network charges are your top cost. A single NAT gateway per AZ group cuts hourly charges:\n" +
		"```\n" +
		"resource \"aws_nat_gateway\" \"shared\" {\n" +
		"  allocation_id = aws_eip.nat.id\n" +
		"  subnet_id     = aws_subnet.public_a.id\n" +
		"}\n" +
		"```",
}

// Match returns the remediation snippet for the summary's cost driver, or
// NoSnippet when the summary is empty, sentinel-only, or uncategorizable.
func Match(summary domain.CostSummary) string {
	driver, ok := costDriver(summary)
	if !ok {
		return NoSnippet
	}

	name := driver
	if category, ok := categoryFor(driver); ok {
		name = category
	}
	for _, keyword := range categoryKeywords {
		if strings.Contains(name, keyword) || strings.Contains(keyword, name) {
			return snippetTemplates[keyword]
		}
	}
	return NoSnippet
}

// costDriver picks the service with the highest spend. Ties break toward
// the alphabetically first service so repeated runs agree.
func costDriver(summary domain.CostSummary) (string, bool) {
	names := make([]string, 0, len(summary))
	for name := range summary {
		if name == domain.SentinelErrorKey {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)

	driver := names[0]
	for _, name := range names[1:] {
		if summary[name] > summary[driver] {
			driver = name
		}
	}
	return driver, true
}

func categoryFor(service string) (string, bool) {
	fragments := make([]string, 0, len(serviceCategory))
	for fragment := range serviceCategory {
		fragments = append(fragments, fragment)
	}
	sort.Strings(fragments)

	for _, fragment := range fragments {
		if strings.Contains(service, fragment) {
			return serviceCategory[fragment], true
		}
	}
	return "", false
}
