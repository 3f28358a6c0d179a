package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"costbot/internal/domain"
)

// userTimestampIndex is the GSI providing "most recent K per user" reads
// without scanning the table.
const userTimestampIndex = "UserTimestampIndex"

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store is the append-only per-user interaction log backed by DynamoDB.
// Partition key is user_id, sort key is an RFC3339Nano timestamp.
type Store struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a Store. ttlDays of zero disables the retention attribute.
func New(api dynamodbAPI, tableName string, ttlDays int) (*Store, error) {
	if api == nil {
		return nil, errors.New("memory: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("memory: table name must not be empty")
	}
	return &Store{
		api:       api,
		tableName: tableName,
		ttl:       time.Duration(ttlDays) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

// Append writes one interaction with a fresh nanosecond timestamp and a
// unique message id. Callers treat a returned error as a degradation, not a
// pipeline failure.
func (s *Store) Append(ctx context.Context, userID, query, response string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("memory: user id must not be empty")
	}

	item := interactionItem(domain.Interaction{
		UserID:    userID,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Query:     query,
		Response:  response,
		MessageID: uuid.NewString(),
		TTL:       s.ttlValue(),
	})
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("memory: Append put item: %w", err)
	}
	return nil
}

// Recent returns up to limit interactions for the user in chronological
// (oldest-first) order. The index is read newest-first so the limit keeps
// the most recent turns, then the page is reversed for prompt assembly.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		return nil, nil
	}

	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(userTimestampIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("memory: Recent query: %w", err)
	}

	interactions := make([]domain.Interaction, 0, len(out.Items))
	for _, item := range out.Items {
		interaction, convErr := itemToInteraction(item)
		if convErr != nil {
			// One bad row should not cost the user the rest of the page.
			slog.Warn("skipping malformed interaction item", "user_id", userID, "err", convErr)
			continue
		}
		interactions = append(interactions, interaction)
	}
	for i, j := 0, len(interactions)-1; i < j; i, j = i+1, j-1 {
		interactions[i], interactions[j] = interactions[j], interactions[i]
	}
	return interactions, nil
}

// ttlValue returns the expiry epoch for new items, or zero when retention
// is disabled.
func (s *Store) ttlValue() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(s.ttl).Unix()
}

func interactionItem(in domain.Interaction) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: in.UserID},
		"timestamp":  &types.AttributeValueMemberS{Value: in.Timestamp},
		"question":   &types.AttributeValueMemberS{Value: in.Query},
		"answer":     &types.AttributeValueMemberS{Value: in.Response},
		"message_id": &types.AttributeValueMemberS{Value: in.MessageID},
	}
	if in.TTL > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", in.TTL)}
	}
	return item
}

func itemToInteraction(item map[string]types.AttributeValue) (domain.Interaction, error) {
	userID, err := strAttr(item, "user_id")
	if err != nil {
		return domain.Interaction{}, err
	}
	timestamp, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.Interaction{}, err
	}
	query, err := strAttr(item, "question")
	if err != nil {
		return domain.Interaction{}, err
	}
	answer, _ := strAttr(item, "answer")        // allow empty
	messageID, _ := strAttr(item, "message_id") // absent on legacy rows

	return domain.Interaction{
		UserID:    userID,
		Timestamp: timestamp,
		Query:     query,
		Response:  answer,
		MessageID: messageID,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("memory: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("memory: attribute %q is not a string", key)
	}
	return s.Value, nil
}
