package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoEventLog stores ARI events in DynamoDB, keyed by event_id. A
// conditional put on attribute_not_exists(event_id) gives the same dedupe
// guarantee the PostgreSQL primary key does.
type DynamoEventLog struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoARIEvent is the DynamoDB item layout. GSI1 is (hotel_status,
// received_at) and serves the dead-letter listing.
type dynamoARIEvent struct {
	EventID      string `dynamodbav:"event_id"`
	Type         string `dynamodbav:"type"`
	HotelID      string `dynamodbav:"hotel_id"`
	RoomTypeCode string `dynamodbav:"room_type_code"`
	RatePlanCode string `dynamodbav:"rate_plan_code"`
	ChannelCode  string `dynamodbav:"channel_code"`
	DateFrom     string `dynamodbav:"date_from"`
	DateTo       string `dynamodbav:"date_to"`
	Payload      string `dynamodbav:"payload"`
	OccurredAt   string `dynamodbav:"occurred_at"`
	ReceivedAt   string `dynamodbav:"received_at"`
	Status       string `dynamodbav:"status"`
	Error        string `dynamodbav:"error"`
	HotelStatus  string `dynamodbav:"hotel_status"`
}

func NewDynamoEventLog(client *dynamodb.Client, tableName string) *DynamoEventLog {
	return &DynamoEventLog{client: client, tableName: tableName}
}

func (l *DynamoEventLog) Insert(ctx context.Context, ev *ARIEvent) error {
	av, err := attributevalue.MarshalMap(toDynamoEvent(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(event_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

func (l *DynamoEventLog) SetStatus(ctx context.Context, eventID string, status EventStatus, errMsg string) error {
	// The GSI1 partition key bundles hotel and status, so the row has to be
	// read first to keep the key in step with the new status.
	ev, err := l.Get(ctx, eventID)
	if err != nil {
		return err
	}

	_, err = l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
		UpdateExpression:    aws.String("SET #s = :status, #e = :error, hotel_status = :hs"),
		ConditionExpression: aws.String("attribute_exists(event_id)"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
			"#e": "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":error":  &types.AttributeValueMemberS{Value: errMsg},
			":hs":     &types.AttributeValueMemberS{Value: hotelStatusKey(ev.HotelID, status)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update event status: %w", err)
	}
	return nil
}

func (l *DynamoEventLog) Get(ctx context.Context, eventID string) (*ARIEvent, error) {
	result, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"event_id": &types.AttributeValueMemberS{Value: eventID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var item dynamoARIEvent
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return fromDynamoEvent(item), nil
}

func (l *DynamoEventLog) ListDeadLetters(ctx context.Context, hotelID string, limit int) ([]ARIEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	result, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("hotel_status = :hs"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hs": &types.AttributeValueMemberS{Value: hotelStatusKey(hotelID, StatusError)},
		},
		ScanIndexForward: aws.Bool(false), // Newest first by received_at
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}

	events := make([]ARIEvent, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoARIEvent
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		events = append(events, *fromDynamoEvent(item))
	}
	return events, nil
}

func hotelStatusKey(hotelID string, status EventStatus) string {
	return hotelID + "#" + string(status)
}

func toDynamoEvent(ev *ARIEvent) dynamoARIEvent {
	return dynamoARIEvent{
		EventID:      ev.ID,
		Type:         ev.Type,
		HotelID:      ev.HotelID,
		RoomTypeCode: ev.RoomTypeCode,
		RatePlanCode: ev.RatePlanCode,
		ChannelCode:  ev.ChannelCode,
		DateFrom:     ev.From.Format(DateFormat),
		DateTo:       ev.To.Format(DateFormat),
		Payload:      string(ev.Payload),
		OccurredAt:   ev.OccurredAt.Format(time.RFC3339Nano),
		ReceivedAt:   ev.ReceivedAt.Format(time.RFC3339Nano),
		Status:       string(ev.Status),
		Error:        ev.Error,
		HotelStatus:  hotelStatusKey(ev.HotelID, ev.Status),
	}
}

func fromDynamoEvent(item dynamoARIEvent) *ARIEvent {
	from, _ := ParseDate(item.DateFrom)
	to, _ := ParseDate(item.DateTo)
	occurredAt, _ := time.Parse(time.RFC3339Nano, item.OccurredAt)
	receivedAt, _ := time.Parse(time.RFC3339Nano, item.ReceivedAt)

	return &ARIEvent{
		ID:           item.EventID,
		Type:         item.Type,
		HotelID:      item.HotelID,
		RoomTypeCode: item.RoomTypeCode,
		RatePlanCode: item.RatePlanCode,
		ChannelCode:  item.ChannelCode,
		From:         from,
		To:           to,
		Payload:      []byte(item.Payload),
		OccurredAt:   occurredAt,
		ReceivedAt:   receivedAt,
		Status:       EventStatus(item.Status),
		Error:        item.Error,
	}
}
