package jobqueue

import (
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
)

// publishTries is how often lmstfy delivers a job before it is dead-lettered
const publishTries = 3

// LmstfyClient adapts the lmstfy client to MessageSource and JobPublisher
type LmstfyClient struct {
	cli   *client.LmstfyClient
	queue string
	ttr   uint32
	wait  uint32
}

// LmstfyConfig holds lmstfy connection settings
type LmstfyConfig struct {
	Host      string
	Port      int
	Namespace string
	Token     string
	Queue     string
	TTR       time.Duration // time a consumed job stays invisible before redelivery
	Wait      time.Duration // how long a consume call blocks
}

// NewLmstfyClient creates a client bound to one queue
func NewLmstfyClient(cfg LmstfyConfig) *LmstfyClient {
	return &LmstfyClient{
		cli:   client.NewLmstfyClient(cfg.Host, cfg.Port, cfg.Namespace, cfg.Token),
		queue: cfg.Queue,
		ttr:   uint32(cfg.TTR.Seconds()),
		wait:  uint32(cfg.Wait.Seconds()),
	}
}

// Queue returns the queue name
func (c *LmstfyClient) Queue() string {
	return c.queue
}

// Consume blocks up to the configured wait for a job. It returns nil
// without error when the queue stayed empty.
func (c *LmstfyClient) Consume() (*Message, error) {
	job, err := c.cli.Consume(c.queue, c.ttr, c.wait)
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	return &Message{ID: job.ID, Queue: job.Queue, Data: job.Data}, nil
}

// Ack deletes a consumed job
func (c *LmstfyClient) Ack(msg *Message) error {
	if err := c.cli.Ack(msg.Queue, msg.ID); err != nil {
		return fmt.Errorf("lmstfy ack failed: %w", err)
	}
	return nil
}

// Publish enqueues a raw payload and returns the job id
func (c *LmstfyClient) Publish(data []byte, delay time.Duration) (string, error) {
	jobID, err := c.cli.Publish(c.queue, data, 0, publishTries, uint32(delay.Seconds()))
	if err != nil {
		return "", fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return jobID, nil
}

var (
	_ MessageSource = (*LmstfyClient)(nil)
	_ JobPublisher  = (*LmstfyClient)(nil)
)
