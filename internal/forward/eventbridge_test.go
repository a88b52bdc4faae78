package forward

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/fbgraph/internal/webhook"
)

type fakeEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (f *fakeEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

var testUpdate = webhook.Update{
	Object:     "user",
	Entries:    []webhook.Entry{{ID: 42, Time: 1300000000, ChangedFields: []string{"friends"}}},
	DeliveryID: "d-1",
	ReceivedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
}

func TestEventBridge_HandleUpdate(t *testing.T) {
	fake := &fakeEventBridge{}
	f := NewEventBridge(fake, "facebook")

	require.NoError(t, f.HandleUpdate(context.Background(), "foo", testUpdate))
	require.Len(t, fake.inputs, 1)
	require.Len(t, fake.inputs[0].Entries, 1)

	entry := fake.inputs[0].Entries[0]
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, "user.update", aws.ToString(entry.DetailType))
	assert.Equal(t, "facebook", aws.ToString(entry.EventBusName))
	assert.Equal(t, testUpdate.ReceivedAt, aws.ToTime(entry.Time))

	var detail Detail
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "foo", detail.Subscription)
	assert.Equal(t, testUpdate, detail.Update)
}

func TestEventBridge_DefaultBus(t *testing.T) {
	fake := &fakeEventBridge{}
	require.NoError(t, NewEventBridge(fake, "").HandleUpdate(context.Background(), "foo", testUpdate))
	assert.Nil(t, fake.inputs[0].Entries[0].EventBusName)
}

func TestEventBridge_FailedEntry(t *testing.T) {
	fake := &fakeEventBridge{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []eventbridgetypes.PutEventsResultEntry{{
			ErrorCode:    aws.String("ThrottlingException"),
			ErrorMessage: aws.String("Rate exceeded"),
		}},
	}}

	err := NewEventBridge(fake, "").HandleUpdate(context.Background(), "foo", testUpdate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ThrottlingException")
}

func TestEventBridge_ClientError(t *testing.T) {
	fake := &fakeEventBridge{err: errors.New("no credentials")}
	err := NewEventBridge(fake, "").HandleUpdate(context.Background(), "foo", testUpdate)
	assert.ErrorContains(t, err, "no credentials")
}
