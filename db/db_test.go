package db

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jsphweid/keystation/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI
	table string
	items map[string]map[string]*dynamodb.AttributeValue
	err   error
}

func newFake(table string) *fakeDynamo {
	return &fakeDynamo{table: table, items: make(map[string]map[string]*dynamodb.AttributeValue)}
}

func (f *fakeDynamo) checkTable(name *string) error {
	if f.err != nil {
		return f.err
	}
	if aws.StringValue(name) != f.table {
		return errors.Errorf("no table %s", aws.StringValue(name))
	}
	return nil
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	f.items[*in.Item["PK"].S] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(_ aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.items[*in.Key["PK"].S]}, nil
}

func (f *fakeDynamo) BatchGetItemWithContext(_ aws.Context, in *dynamodb.BatchGetItemInput, _ ...request.Option) (*dynamodb.BatchGetItemOutput, error) {
	out := &dynamodb.BatchGetItemOutput{Responses: make(map[string][]map[string]*dynamodb.AttributeValue)}
	for table, ka := range in.RequestItems {
		if err := f.checkTable(aws.String(table)); err != nil {
			return nil, err
		}
		for _, k := range ka.Keys {
			if item, ok := f.items[*k["PK"].S]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

// ScanPagesWithContext serves one item per page.
func (f *fakeDynamo) ScanPagesWithContext(_ aws.Context, in *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, _ ...request.Option) error {
	if err := f.checkTable(in.TableName); err != nil {
		return err
	}
	n := 0
	for pk := range f.items {
		n++
		page := &dynamodb.ScanOutput{Items: []map[string]*dynamodb.AttributeValue{{"PK": {S: aws.String(pk)}}}}
		if !fn(page, n == len(f.items)) {
			break
		}
	}
	return nil
}

func (f *fakeDynamo) DeleteItemWithContext(_ aws.Context, in *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	if err := f.checkTable(in.TableName); err != nil {
		return nil, err
	}
	delete(f.items, *in.Key["PK"].S)
	return &dynamodb.DeleteItemOutput{}, nil
}

func sampleSession(name string) model.Session {
	return model.Session{
		Name:    name,
		Tempo:   96,
		Steps:   4,
		Grid:    [][]bool{{true, false, false, false}, {false, true, false, true}},
		RowKeys: []int{3},
		Chords: []model.ChordDefinition{
			{Name: "Chord 1", Notes: []*model.ChordNote{{KeyIndex: 0}, nil, {KeyIndex: 7, OctaveOffset: -1}}},
		},
		Keyboard: model.KeyboardState{
			BaseFrequency: 261.63,
			OctaveShift:   1,
			PitchShift:    -0.5,
			Keys:          []*model.Key{{Ratio: 1, MidiNote: 60}, nil, {Ratio: 1.5, MidiNote: -1}},
		},
		SoundTypeKeys: "organ",
		SoundTypeSeq:  "pluck_saw",
		DrumSamples: map[string]*model.EncodedBuffer{
			"Kick": {SampleRate: 44100, Length: 1, NumberOfChannels: 1, Channels: []string{"AACAPw=="}},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	fake := newFake("sessions")
	s := New(fake, "sessions")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	in := sampleSession("groove")
	require.NoError(t, s.Save(ctx, in))
	assert.Equal(t, "1700000000", *fake.items["groove"]["UpdatedAt"].N)

	out, err := s.Load(ctx, "groove")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadMissing(t *testing.T) {
	s := New(newFake("sessions"), "sessions")
	_, err := s.Load(context.Background(), "nope")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))

	assert.True(t, errors.Is(s.Save(context.Background(), model.Session{}), model.ErrInvalidName))
}

func TestLoadManyListDelete(t *testing.T) {
	s := New(newFake("sessions"), "sessions")
	ctx := context.Background()
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, s.Save(ctx, sampleSession(name)))
	}

	many, err := s.LoadMany(ctx, []string{"a", "c", "zzz"})
	require.NoError(t, err)
	assert.Len(t, many, 2)
	assert.Equal(t, 96, many["c"].Tempo)

	_, err = s.LoadMany(ctx, make([]string, 101))
	assert.Error(t, err)

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, s.Delete(ctx, "b"))
	names, _ = s.List(ctx)
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestClientErrorsAreWrapped(t *testing.T) {
	fake := newFake("sessions")
	fake.err = errors.New("throttled")
	s := New(fake, "sessions")

	err := s.Save(context.Background(), sampleSession("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving session x")
	assert.Equal(t, "throttled", errors.Cause(err).Error())
}
