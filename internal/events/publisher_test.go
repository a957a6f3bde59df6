package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
)

type taskDelivery struct {
	userID  string
	payload []byte
}

type presenceDelivery struct {
	userID string
	online bool
}

// fakeRouter records deliveries instead of writing to sockets.
type fakeRouter struct {
	mu       sync.Mutex
	tasks    []taskDelivery
	presence []presenceDelivery
}

func (r *fakeRouter) DeliverTask(userID string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, taskDelivery{userID: userID, payload: payload})
}

func (r *fakeRouter) BroadcastPresence(userID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence = append(r.presence, presenceDelivery{userID: userID, online: online})
}

// fakeBridge records broadcast envelopes, optionally failing every call.
type fakeBridge struct {
	mu        sync.Mutex
	envelopes []Envelope
	err       error
}

func (b *fakeBridge) Broadcast(_ context.Context, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.envelopes = append(b.envelopes, env)
	return nil
}

func (b *fakeBridge) sent() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Envelope(nil), b.envelopes...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTask(t *testing.T) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(uuid.New(), "write report", "quarterly numbers", nil)
	require.NoError(t, err)
	return task
}

func TestTaskMutatedDeliversLocallyAndForwards(t *testing.T) {
	router := &fakeRouter{}
	bridge := &fakeBridge{}
	publisher := NewPublisher(router, bridge, testLogger())

	task := newTestTask(t)
	publisher.TaskMutated(context.Background(), task)

	require.Len(t, router.tasks, 1)
	assert.Equal(t, task.UserID.String(), router.tasks[0].userID)

	var decoded domain.Task
	require.NoError(t, json.Unmarshal(router.tasks[0].payload, &decoded))
	assert.Equal(t, task.ID, decoded.ID)
	assert.Equal(t, task.Title, decoded.Title)

	sent := bridge.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, KindTask, sent[0].Kind)
	assert.Equal(t, task.UserID.String(), sent[0].TargetID)
	assert.NotEmpty(t, sent[0].Origin)
	assert.JSONEq(t, string(router.tasks[0].payload), string(sent[0].Payload))
}

func TestTaskMutatedBridgeFailureStillDeliversLocally(t *testing.T) {
	router := &fakeRouter{}
	bridge := &fakeBridge{err: errors.New("broker unreachable")}
	publisher := NewPublisher(router, bridge, testLogger())

	publisher.TaskMutated(context.Background(), newTestTask(t))

	assert.Len(t, router.tasks, 1)
	assert.Empty(t, bridge.sent())
}

func TestPresenceChangedForwardsToBridgeOnly(t *testing.T) {
	router := &fakeRouter{}
	bridge := &fakeBridge{}
	publisher := NewPublisher(router, bridge, testLogger())

	publisher.PresenceChanged("alice", true)

	// The hub already broadcast locally before invoking the listener.
	assert.Empty(t, router.presence)

	sent := bridge.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, KindPresence, sent[0].Kind)
	assert.Empty(t, sent[0].TargetID)

	var change PresenceChange
	require.NoError(t, json.Unmarshal(sent[0].Payload, &change))
	assert.Equal(t, PresenceChange{UserID: "alice", Online: true}, change)
}

func TestHandleEnvelopeSkipsOwnOrigin(t *testing.T) {
	router := &fakeRouter{}
	bridge := &fakeBridge{}
	publisher := NewPublisher(router, bridge, testLogger())

	publisher.TaskMutated(context.Background(), newTestTask(t))
	require.Len(t, router.tasks, 1)

	// Feed the instance's own envelope back, as a broker subscription would.
	publisher.HandleEnvelope(bridge.sent()[0])

	assert.Len(t, router.tasks, 1, "own envelope must not be re-delivered")
}

func TestHandleEnvelopeRoutesRemoteTask(t *testing.T) {
	router := &fakeRouter{}
	publisher := NewPublisher(router, &fakeBridge{}, testLogger())

	payload := []byte(`{"id":"t1","title":"remote task"}`)
	publisher.HandleEnvelope(Envelope{
		Origin:   "other-instance",
		Kind:     KindTask,
		TargetID: "alice",
		Payload:  payload,
	})

	require.Len(t, router.tasks, 1)
	assert.Equal(t, "alice", router.tasks[0].userID)
	assert.JSONEq(t, string(payload), string(router.tasks[0].payload))
}

func TestHandleEnvelopeRoutesRemotePresence(t *testing.T) {
	router := &fakeRouter{}
	publisher := NewPublisher(router, &fakeBridge{}, testLogger())

	publisher.HandleEnvelope(Envelope{
		Origin:  "other-instance",
		Kind:    KindPresence,
		Payload: []byte(`{"user_id":"bob","online":false}`),
	})

	require.Len(t, router.presence, 1)
	assert.Equal(t, presenceDelivery{userID: "bob", online: false}, router.presence[0])
}

func TestHandleEnvelopeDiscardsMalformedAndUnknown(t *testing.T) {
	router := &fakeRouter{}
	publisher := NewPublisher(router, &fakeBridge{}, testLogger())

	publisher.HandleEnvelope(Envelope{
		Origin:  "other-instance",
		Kind:    KindPresence,
		Payload: []byte(`not json`),
	})
	publisher.HandleEnvelope(Envelope{
		Origin:  "other-instance",
		Kind:    "telemetry",
		Payload: []byte(`{}`),
	})

	assert.Empty(t, router.tasks)
	assert.Empty(t, router.presence)
}

// Two publishers sharing one loopback bridge behave like two server
// instances on a common broker: each mutation reaches both routers exactly
// once.
func TestTwoInstancesDeliverExactlyOnceEach(t *testing.T) {
	routerA := &fakeRouter{}
	routerB := &fakeRouter{}
	bridge := &fakeBridge{}

	publisherA := NewPublisher(routerA, bridge, testLogger())
	publisherB := NewPublisher(routerB, bridge, testLogger())

	publisherA.TaskMutated(context.Background(), newTestTask(t))

	// Replay the stream to both subscribers, as the broker fans out to
	// every instance including the producer.
	for _, env := range bridge.sent() {
		publisherA.HandleEnvelope(env)
		publisherB.HandleEnvelope(env)
	}

	assert.Len(t, routerA.tasks, 1)
	assert.Len(t, routerB.tasks, 1)
}

func TestPublisherOriginsAreUnique(t *testing.T) {
	router := &fakeRouter{}
	bridge := &fakeBridge{}

	NewPublisher(router, bridge, testLogger()).PresenceChanged("alice", true)
	NewPublisher(router, bridge, testLogger()).PresenceChanged("alice", true)

	sent := bridge.sent()
	require.Len(t, sent, 2)
	assert.NotEqual(t, sent[0].Origin, sent[1].Origin)
}

func TestTaskEnvelopeRoundTrip(t *testing.T) {
	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task, err := domain.NewTask(uuid.New(), "pay rent", "", &due)
	require.NoError(t, err)

	router := &fakeRouter{}
	bridge := &fakeBridge{}
	publisher := NewPublisher(router, bridge, testLogger())
	publisher.TaskMutated(context.Background(), task)

	raw, err := json.Marshal(bridge.sent()[0])
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))

	var decoded domain.Task
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))
	assert.Equal(t, task.ID, decoded.ID)
	require.NotNil(t, decoded.DueDate)
	assert.True(t, due.Equal(*decoded.DueDate))
}
