package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	appConfig "github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"gorm.io/gorm"
)

// StatusJournal is the append-only history of repair status changes.
type StatusJournal interface {
	Record(ctx context.Context, event models.StatusEvent) error
	History(ctx context.Context, repairID uint) ([]models.StatusEvent, error)
}

var journalInstance StatusJournal

// InitJournal selects the DynamoDB journal when DYNAMODB_TABLE is set and
// the relational table otherwise.
func InitJournal(ctx context.Context, cfg *appConfig.Config, db *gorm.DB) (StatusJournal, error) {
	if cfg.DynamoDBTable == "" {
		journalInstance = NewGormJournal(db)
		return journalInstance, nil
	}
	j, err := NewDynamoJournal(ctx, cfg)
	if err != nil {
		return nil, err
	}
	journalInstance = j
	return j, nil
}

// GetJournal returns the configured journal
func GetJournal() StatusJournal {
	return journalInstance
}

// SetJournal sets the journal (primarily for testing)
func SetJournal(j StatusJournal) {
	journalInstance = j
}

// GormJournal stores events in the status_events table.
type GormJournal struct {
	db *gorm.DB
}

func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

func (j *GormJournal) Record(ctx context.Context, event models.StatusEvent) error {
	event.ID = 0
	if err := j.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record status event: %w", err)
	}
	return nil
}

func (j *GormJournal) History(ctx context.Context, repairID uint) ([]models.StatusEvent, error) {
	var events []models.StatusEvent
	err := j.db.WithContext(ctx).
		Where("repair_id = ?", repairID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return events, nil
}

// DynamoJournal stores events in a DynamoDB table.
//
// Table requirements:
//   - PK: repair_id (string)
//   - SK: event_key (string, "<RFC3339Nano>#<uuid>")
type DynamoJournal struct {
	client *dynamodb.Client
	table  string
}

type statusEventItem struct {
	RepairID  string `dynamodbav:"repair_id"`
	EventKey  string `dynamodbav:"event_key"`
	ActorID   int64  `dynamodbav:"actor_id"`
	From      string `dynamodbav:"from_status"`
	To        string `dynamodbav:"to_status"`
	Source    string `dynamodbav:"source"`
	CreatedAt string `dynamodbav:"created_at"`
}

func NewDynamoJournal(ctx context.Context, cfg *appConfig.Config) (*DynamoJournal, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
	return &DynamoJournal{client: client, table: cfg.DynamoDBTable}, nil
}

func (j *DynamoJournal) Record(ctx context.Context, event models.StatusEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	av, err := attributevalue.MarshalMap(toStatusEventItem(event))
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(j.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to record status event: %w", err)
	}
	return nil
}

func (j *DynamoJournal) History(ctx context.Context, repairID uint) ([]models.StatusEvent, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(j.table),
		KeyConditionExpression: aws.String("#rid = :rid"),
		ExpressionAttributeNames: map[string]string{
			"#rid": "repair_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: strconv.FormatUint(uint64(repairID), 10)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var events []models.StatusEvent
	paginator := dynamodb.NewQueryPaginator(j.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query status history: %w", err)
		}
		var items []statusEventItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
		}
		for _, it := range items {
			events = append(events, fromStatusEventItem(it))
		}
	}
	sort.SliceStable(events, func(a, b int) bool { return events[a].CreatedAt.Before(events[b].CreatedAt) })
	return events, nil
}

func toStatusEventItem(e models.StatusEvent) statusEventItem {
	at := e.CreatedAt.UTC().Format(time.RFC3339Nano)
	return statusEventItem{
		RepairID:  strconv.FormatUint(uint64(e.RepairID), 10),
		EventKey:  at + "#" + uuid.NewString(),
		ActorID:   int64(e.ActorID),
		From:      string(e.From),
		To:        string(e.To),
		Source:    e.Source,
		CreatedAt: at,
	}
}

func fromStatusEventItem(it statusEventItem) models.StatusEvent {
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	repairID, _ := strconv.ParseUint(it.RepairID, 10, 64)
	return models.StatusEvent{
		RepairID:  uint(repairID),
		ActorID:   uint(it.ActorID),
		From:      models.RepairStatus(it.From),
		To:        models.RepairStatus(it.To),
		Source:    it.Source,
		CreatedAt: createdAt,
	}
}
