package analysis

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/conversation"
)

// recordingSummarizer records every transcript it is asked to
// summarize. When gate is set, Summarize blocks until the gate closes
// and signals started on entry.
type recordingSummarizer struct {
	mu      sync.Mutex
	seen    [][]conversation.Message
	fail    bool
	gate    chan struct{}
	started chan struct{}
}

func (r *recordingSummarizer) Summarize(ctx context.Context, transcript []conversation.Message) (string, error) {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}

	r.mu.Lock()
	r.seen = append(r.seen, transcript)
	r.mu.Unlock()

	if r.fail {
		return "", errors.New("summary model unavailable")
	}
	return "The caller asked about listings.", nil
}

func (r *recordingSummarizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func shortTranscript() []conversation.Message {
	return []conversation.Message{
		{Role: conversation.RoleAgent, Content: "Hi, how can I help?"},
		{Role: conversation.RoleUser, Content: "I want a 3 bedroom in New York."},
	}
}

var _ = Describe("Summary Pool", func() {
	var summarizer *recordingSummarizer

	BeforeEach(func() {
		summarizer = &recordingSummarizer{}
	})

	newPool := func(workers, queueSize int) *Pool {
		pool, err := NewPool(Config{
			Summarizer: summarizer,
			NumWorkers: workers,
			QueueSize:  queueSize,
			Logger:     zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return pool
	}

	It("requires a summarizer", func() {
		_, err := NewPool(Config{Logger: zap.NewNop()})
		Expect(err).To(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("processes a queued job before Close returns", func() {
			pool := newPool(0, 0)

			ok := pool.Enqueue(Job{CallID: "call_1", Transcript: shortTranscript()})
			Expect(ok).To(BeTrue())

			pool.Close()
			Expect(summarizer.count()).To(Equal(1))
			Expect(summarizer.seen[0]).To(HaveLen(2))
		})

		It("drops jobs when the queue is full", func() {
			summarizer.gate = make(chan struct{})
			summarizer.started = make(chan struct{}, 2)
			pool := newPool(1, 1)

			// First job occupies the only worker.
			Expect(pool.Enqueue(Job{CallID: "call_1", Transcript: shortTranscript()})).To(BeTrue())
			<-summarizer.started

			// Second fills the queue, third has nowhere to go.
			Expect(pool.Enqueue(Job{CallID: "call_2", Transcript: shortTranscript()})).To(BeTrue())
			Expect(pool.Enqueue(Job{CallID: "call_3", Transcript: shortTranscript()})).To(BeFalse())

			close(summarizer.gate)
			pool.Close()
			Expect(summarizer.count()).To(Equal(2))
		})
	})

	Describe("processing", func() {
		It("keeps working after a summary failure", func() {
			summarizer.fail = true
			pool := newPool(1, 0)

			Expect(pool.Enqueue(Job{CallID: "call_1", Transcript: shortTranscript()})).To(BeTrue())
			Expect(pool.Enqueue(Job{CallID: "call_2", Transcript: shortTranscript()})).To(BeTrue())

			pool.Close()
			Expect(summarizer.count()).To(Equal(2), "both jobs attempted despite failures")
		})

		It("skips empty transcripts without calling the summarizer", func() {
			pool := newPool(0, 0)

			Expect(pool.Enqueue(Job{CallID: "call_1"})).To(BeTrue())

			pool.Close()
			Expect(summarizer.count()).To(Equal(0))
		})
	})
})
