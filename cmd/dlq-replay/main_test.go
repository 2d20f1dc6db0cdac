package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func dlqValue(t *testing.T, withPayload bool) []byte {
	t.Helper()

	record := map[string]any{
		"outbox_id":      "outbox-1",
		"aggregate_type": "order",
		"aggregate_id":   "order-1",
		"event_type":     "order.status_changed",
		"publish_error":  "publish failed after 3 attempts: timeout",
	}
	if withPayload {
		record["payload"] = map[string]any{"status": "shipped"}
	}

	raw, err := json.Marshal(map[string]any{
		"id":             "outbox-1",
		"aggregate_type": "order",
		"aggregate_id":   "order-1",
		"event_type":     "order.status_changed",
		"payload":        record,
		"published_at":   time.Now().UTC(),
	})
	require.NoError(t, err)
	return raw
}

func TestParseBrokers(t *testing.T) {
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, parseBrokers(" broker-1:9092, ,broker-2:9092 "))
	require.Empty(t, parseBrokers(" , "))
}

func TestExtractOutboxMessage(t *testing.T) {
	event, err := extractOutboxMessage(&sarama.ConsumerMessage{Value: dlqValue(t, true)})
	require.NoError(t, err)
	require.Equal(t, "outbox-1", event.ID)
	require.Equal(t, "order-1", event.AggregateID)
	require.Equal(t, "order.status_changed", event.EventType)
	require.JSONEq(t, `{"status":"shipped"}`, string(event.Payload))
}

func TestExtractOutboxMessage_Invalid(t *testing.T) {
	_, err := extractOutboxMessage(&sarama.ConsumerMessage{Value: dlqValue(t, false)})
	require.ErrorContains(t, err, "original event payload")

	_, err = extractOutboxMessage(&sarama.ConsumerMessage{Value: []byte(`{"foo":"bar"}`)})
	require.ErrorContains(t, err, "no payload")

	_, err = extractOutboxMessage(&sarama.ConsumerMessage{Value: []byte(`not json`)})
	require.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "x", firstNonEmpty("", "  ", "x", "y"))
	require.Empty(t, firstNonEmpty("", " "))
}

func TestReadConfig_FromFlags(t *testing.T) {
	withFlagArgs(t, []string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-limit=10",
		"-execute=true",
		"-from-newest=true",
		"-idle-timeout=3s",
	}, func() {
		cfg, err := readConfig(app.DefaultConfig())
		require.NoError(t, err)
		require.Len(t, cfg.brokers, 2)
		require.Equal(t, "storefront.order.dlq", cfg.sourceTopic)
		require.Equal(t, "storefront.order.events", cfg.targetTopic)
		require.Equal(t, 10, cfg.limit)
		require.True(t, cfg.execute)
		require.True(t, cfg.fromNewest)
		require.Equal(t, 3*time.Second, cfg.idleTimeout)
	})
}

func TestReadConfig_FromAppConfig(t *testing.T) {
	base := app.DefaultConfig()
	base.Kafka.Brokers = []string{"kafka:9092"}
	base.Kafka.DLQTopic = "custom.dlq"

	withFlagArgs(t, nil, func() {
		cfg, err := readConfig(base)
		require.NoError(t, err)
		require.Equal(t, []string{"kafka:9092"}, cfg.brokers)
		require.Equal(t, "custom.dlq", cfg.sourceTopic)
		require.Equal(t, "storefront", cfg.clientID)
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"-brokers="}, "kafka brokers are required"},
		{[]string{"-brokers=broker:9092", "-source-topic="}, "source-topic is required"},
		{[]string{"-brokers=broker:9092", "-target-topic="}, "target-topic is required"},
		{[]string{"-brokers=broker:9092", "-limit=0"}, "limit must be > 0"},
		{[]string{"-brokers=broker:9092", "-idle-timeout=0s"}, "idle-timeout must be > 0"},
	}
	for _, tc := range cases {
		withFlagArgs(t, tc.args, func() {
			_, err := readConfig(app.DefaultConfig())
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestProcessPartition_DryRun(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{Offset: 0, Value: dlqValue(t, true)}}),
		},
	}
	cfg := config{sourceTopic: "storefront.order.dlq", targetTopic: "storefront.order.events", idleTimeout: 20 * time.Millisecond}

	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	require.NoError(t, err)
	require.Equal(t, partitionStats{processed: 1, replayed: 1}, stats)
	require.Equal(t, []consumeCall{{partition: 0, offset: 0}}, consumer.calls)
}

func TestProcessPartition_Execute(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 3}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{
				{Offset: 0, Value: dlqValue(t, true)},
				{Offset: 1, Value: []byte(`garbage`)},
				{Offset: 2, Value: dlqValue(t, true)},
			}),
		},
	}
	publisher := &stubPublisher{}
	cfg := config{sourceTopic: "dlq", targetTopic: "events", execute: true, idleTimeout: 20 * time.Millisecond}

	stats, err := processPartition(context.Background(), consumer, client, publisher, cfg, 0, 10)
	require.NoError(t, err)
	require.Equal(t, partitionStats{processed: 3, replayed: 2, skipped: 1}, stats)
	require.Len(t, publisher.published, 2)
	require.Equal(t, "outbox-1", publisher.published[0].ID)
}

func TestProcessPartition_FromNewest(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 5, newest: 50}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(nil)},
	}
	cfg := config{sourceTopic: "dlq", targetTopic: "events", fromNewest: true, idleTimeout: 20 * time.Millisecond}

	_, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(40), consumer.calls[0].offset)
}

func TestProcessPartition_Errors(t *testing.T) {
	cfg := config{sourceTopic: "dlq", targetTopic: "events", execute: true, idleTimeout: 20 * time.Millisecond}

	client := &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("offset failed")}}
	_, err := processPartition(context.Background(), &stubPartitionConsumerSource{}, client, nil, cfg, 0, 10)
	require.ErrorContains(t, err, "get oldest offset")

	client = &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	_, err = processPartition(context.Background(), &stubPartitionConsumerSource{consumeErr: errors.New("boom")}, client, nil, cfg, 0, 10)
	require.ErrorContains(t, err, "consume partition 0")

	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{Offset: 0, Value: dlqValue(t, true)}}),
		},
	}
	_, err = processPartition(context.Background(), consumer, client, &stubPublisher{err: errors.New("send failed")}, cfg, 0, 10)
	require.ErrorContains(t, err, "publish replay message")
}

func TestProcessPartition_ContextCanceled(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 5}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: openPartitionConsumer()},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config{sourceTopic: "dlq", targetTopic: "events", idleTimeout: time.Second}
	_, err := processPartition(ctx, consumer, client, nil, cfg, 0, 10)
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessPartition_IdleTimeout(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 5}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{0: openPartitionConsumer()},
	}

	cfg := config{sourceTopic: "dlq", targetTopic: "events", idleTimeout: 10 * time.Millisecond}
	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	require.NoError(t, err)
	require.Zero(t, stats.processed)
}

func TestRunReplay(t *testing.T) {
	cfg := config{sourceTopic: "dlq", targetTopic: "events", limit: 1, execute: true, idleTimeout: 20 * time.Millisecond}

	err := runReplay(context.Background(), cfg, nil, nil, nil)
	require.ErrorContains(t, err, "client and consumer are required")

	err = runReplay(context.Background(), cfg, &stubOffsetClient{}, &stubPartitionConsumerSource{}, nil)
	require.ErrorContains(t, err, "publisher is required")

	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 1},
			1: {oldest: 0, newest: 1},
		},
	}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{Offset: 0, Value: dlqValue(t, true)}}),
			1: closedPartitionConsumer([]*sarama.ConsumerMessage{{Offset: 0, Value: dlqValue(t, true)}}),
		},
	}
	publisher := &stubPublisher{}

	require.NoError(t, runReplay(context.Background(), cfg, client, consumer, publisher))
	require.Len(t, publisher.published, 1)
	require.Equal(t, []consumeCall{{partition: 0, offset: 0}}, consumer.calls)
}

func TestRun_UsesDependencies(t *testing.T) {
	client := &stubOffsetClient{}
	consumer := &stubPartitionConsumerSource{}

	prev := newReplayDependencies
	t.Cleanup(func() { newReplayDependencies = prev })
	newReplayDependencies = func(config) (replayDeps, error) {
		return replayDeps{client: client, consumer: consumer}, nil
	}

	require.NoError(t, run(context.Background(), config{sourceTopic: "dlq", limit: 1}))
	require.True(t, client.closed)
	require.True(t, consumer.closed)

	newReplayDependencies = func(config) (replayDeps, error) {
		return replayDeps{}, errors.New("no brokers")
	}
	require.ErrorContains(t, run(context.Background(), config{}), "no brokers")
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine
	os.Args = append([]string{"dlq-replay"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions []int32
	offsets    map[int32]offsetRange
	offsetErr  map[int32]error
	closed     bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }

func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError { return s.errors }

func (s *stubPartitionConsumer) Close() error { return nil }

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) *stubPartitionConsumer {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	return &stubPartitionConsumer{messages: msgCh, errors: make(chan *sarama.ConsumerError)}
}

func openPartitionConsumer() *stubPartitionConsumer {
	return &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
}

type stubPublisher struct {
	published []domain.OutboxMessage
	err       error
}

func (s *stubPublisher) Publish(event domain.OutboxMessage) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, event)
	return nil
}
