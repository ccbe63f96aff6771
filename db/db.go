package db

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/util"
	"github.com/pkg/errors"
)

// DynamoDB caps BatchGetItem at 100 keys.
const maxBatch = 100

type record struct {
	PK        string        `dynamodbav:"PK"`
	Session   model.Session `dynamodbav:"Session"`
	UpdatedAt int64         `dynamodbav:"UpdatedAt"`
}

// Store keeps sessions in a DynamoDB table keyed by session name.
type Store struct {
	client dynamodbiface.DynamoDBAPI
	table  string
	now    func() time.Time
}

func New(client dynamodbiface.DynamoDBAPI, table string) *Store {
	return &Store{client: client, table: table, now: time.Now}
}

// Connect opens a client for region, pointed at endpoint when one is given
// (a local DynamoDB for instance).
func Connect(endpoint, region, table string) (*Store, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not create a DynamoDB session")
	}
	return New(dynamodb.New(sess), table), nil
}

func key(name string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"PK": {S: aws.String(name)},
	}
}

func (s *Store) Save(ctx context.Context, sess model.Session) error {
	if sess.Name == "" {
		return model.ErrInvalidName
	}
	item, err := dynamodbattribute.MarshalMap(record{PK: sess.Name, Session: sess, UpdatedAt: s.now().Unix()})
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return errors.Wrapf(err, "saving session %s", sess.Name)
}

func (s *Store) Load(ctx context.Context, name string) (model.Session, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(name),
	})
	if err != nil {
		return model.Session{}, errors.Wrapf(err, "loading session %s", name)
	}
	if len(out.Item) == 0 {
		return model.Session{}, errors.Wrap(model.ErrSessionNotFound, name)
	}
	var rec record
	if err := dynamodbattribute.UnmarshalMap(out.Item, &rec); err != nil {
		return model.Session{}, errors.Wrapf(err, "decoding session %s", name)
	}
	return rec.Session, nil
}

// LoadMany fetches up to 100 sessions in one round trip. Names that do not
// exist are absent from the result.
func (s *Store) LoadMany(ctx context.Context, names []string) (map[string]model.Session, error) {
	if len(names) > maxBatch {
		return nil, errors.Errorf("at most %d sessions per batch, got %d", maxBatch, len(names))
	}
	res := make(map[string]model.Session)
	if len(names) == 0 {
		return res, nil
	}

	var keys []map[string]*dynamodb.AttributeValue
	for _, name := range names {
		keys = append(keys, key(name))
	}
	out, err := s.client.BatchGetItemWithContext(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]*dynamodb.KeysAndAttributes{
			s.table: {Keys: keys},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "batch loading sessions")
	}
	for _, item := range out.Responses[s.table] {
		var rec record
		if err := dynamodbattribute.UnmarshalMap(item, &rec); err != nil {
			return nil, errors.Wrap(err, "decoding session")
		}
		res[rec.PK] = rec.Session
	}
	return res, nil
}

// List returns every session name, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	err := s.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("PK"),
	}, func(page *dynamodb.ScanOutput, last bool) bool {
		for _, item := range page.Items {
			if pk := item["PK"]; pk != nil && pk.S != nil {
				seen[*pk.S] = true
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	return util.GetKeys(seen), nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key(name),
	})
	return errors.Wrapf(err, "deleting session %s", name)
}
