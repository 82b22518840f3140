package redpanda

import "testing"

func TestProducerHookFiresPerMessage(t *testing.T) {
	p := &Producer{}

	count := 0
	p.OnProduce(func() { count++ })

	p.incrementMetrics(100)
	p.incrementMetrics(50)

	if count != 2 {
		t.Errorf("hook fired %d times, want 2", count)
	}

	stats := p.Stats()
	if stats.MessagesSent != 2 {
		t.Errorf("MessagesSent = %d, want 2", stats.MessagesSent)
	}
	if stats.BytesSent != 150 {
		t.Errorf("BytesSent = %d, want 150", stats.BytesSent)
	}
}

func TestProducerWithoutHook(t *testing.T) {
	p := &Producer{}

	p.incrementMetrics(10)

	if got := p.Stats().MessagesSent; got != 1 {
		t.Errorf("MessagesSent = %d, want 1", got)
	}
}

func TestConsumerHookFiresPerMessage(t *testing.T) {
	c := &Consumer{}

	count := 0
	c.OnConsume(func() { count++ })

	c.incrementMetrics(200)
	c.incrementMetrics(300)
	c.incrementMetrics(100)

	if count != 3 {
		t.Errorf("hook fired %d times, want 3", count)
	}

	stats := c.Stats()
	if stats.MessagesRead != 3 {
		t.Errorf("MessagesRead = %d, want 3", stats.MessagesRead)
	}
	if stats.BytesRead != 600 {
		t.Errorf("BytesRead = %d, want 600", stats.BytesRead)
	}
}

func TestDefaultTopicConfigsCoverKnownTopics(t *testing.T) {
	known := map[string]bool{
		TopicPatternEvents:  true,
		TopicDoseLogs:       true,
		TopicDoseReconciled: true,
		TopicDeadLetter:     true,
	}

	configs := DefaultTopicConfigs()
	if len(configs) != len(known) {
		t.Fatalf("got %d topic configs, want %d", len(configs), len(known))
	}
	for _, cfg := range configs {
		if !known[cfg.Name] {
			t.Errorf("unexpected topic %q in default configs", cfg.Name)
		}
	}
}
