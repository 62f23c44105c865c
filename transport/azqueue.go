package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
)

// MaxQueueTextMessageSize is the maximum size of a single queue message
// (64 KiB), this medium's frame size ceiling.
const MaxQueueTextMessageSize = 64 * 1024

func init() { Register("azqueue", queueDriver{}) }

// queueDriver carries spdnet frame groups as base64-encoded Storage Queue
// messages: one message per frame, since a queue message already has
// discrete boundaries a byte stream doesn't.
type queueDriver struct{}

func (queueDriver) NewSocket(kind SocketKind) (Socket, error) {
	return &queueSocket{kind: kind}, nil
}

var errQueueNoData = fmt.Errorf("transport: azqueue: %w", ErrNoPeer)
var errQueueMissingCreds = errors.New("transport: azqueue: missing account credentials")

type queueSocket struct {
	kind SocketKind

	mu       sync.Mutex
	identity []byte
	subs     [][]byte

	client           *azqueue.ServiceClient
	txQueue, rxQueue *azqueue.QueueClient
	txName, rxName   string

	bound, connected bool
}

func (s *queueSocket) dial(addr, role string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("transport: azqueue: %w", err)
	}
	ep := newEndpoint(u)
	if ep.Account == "" || ep.Key == "" {
		return errQueueMissingCreds
	}
	cred, err := azqueue.NewSharedKeyCredential(ep.Account, ep.Key)
	if err != nil {
		return fmt.Errorf("transport: azqueue: %w", err)
	}
	client, err := azqueue.NewServiceClientWithSharedKeyCredential(ep.ServiceURL(), cred, nil)
	if err != nil {
		return fmt.Errorf("transport: azqueue: %w", err)
	}
	name := resourceName(u, ep.Account)

	txName, rxName := name+"-req", name+"-res"
	if role == "bind" {
		txName, rxName = name+"-res", name+"-req"
	}
	for _, qname := range []string{txName, rxName} {
		if _, err := client.CreateQueue(context.Background(), qname, nil); err != nil && !queueerror.HasCode(err, queueerror.QueueAlreadyExists) {
			return fmt.Errorf("transport: azqueue: create queue %s: %w", qname, err)
		}
	}

	s.mu.Lock()
	s.client = client
	s.txQueue, s.rxQueue = client.NewQueueClient(txName), client.NewQueueClient(rxName)
	s.txName, s.rxName = txName, rxName
	s.mu.Unlock()
	return nil
}

func (s *queueSocket) Bind(addr string) error {
	if err := s.dial(addr, "bind"); err != nil {
		return err
	}
	s.mu.Lock()
	s.bound = true
	s.mu.Unlock()
	return nil
}

func (s *queueSocket) Unbind(addr string) error {
	s.mu.Lock()
	s.bound = false
	s.mu.Unlock()
	return nil
}

func (s *queueSocket) Connect(addr string) error {
	if err := s.dial(addr, "connect"); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *queueSocket) Disconnect(addr string) error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *queueSocket) SetIdentity(id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = append([]byte(nil), id...)
	return nil
}

func (s *queueSocket) SetSubscribe(prefix []byte) error {
	if s.kind != KindSub {
		return ErrNotSubSocket
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, append([]byte(nil), prefix...))
	return nil
}

func (s *queueSocket) matchesFilter(topic []byte) bool {
	if len(s.subs) == 0 {
		return true
	}
	for _, p := range s.subs {
		if bytes.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

func (s *queueSocket) SendFrame(b []byte, more bool) error {
	s.mu.Lock()
	txQueue := s.txQueue
	s.mu.Unlock()
	if txQueue == nil {
		return ErrNoPeer
	}

	var buf bytes.Buffer
	if err := EncodeFrame(&buf, b, more); err != nil {
		return err
	}
	_, err := txQueue.EnqueueMessage(context.Background(), base64.StdEncoding.EncodeToString(buf.Bytes()), nil)
	if err != nil {
		return fmt.Errorf("transport: azqueue: enqueue: %w", err)
	}
	return nil
}

// dequeueOne pulls exactly one message off the rx queue and deletes it,
// since a queue message already carries one whole frame and there is
// nothing left to buffer once it's decoded.
func (s *queueSocket) dequeueOne() ([]byte, bool, error) {
	resp, err := s.rxQueue.DequeueMessages(context.Background(), &azqueue.DequeueMessagesOptions{NumberOfMessages: to.Ptr[int32](1)})
	if err != nil {
		return nil, false, fmt.Errorf("transport: azqueue: dequeue: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].MessageText == nil {
		return nil, false, errQueueNoData
	}
	msg := resp.Messages[0]
	raw, err := base64.StdEncoding.DecodeString(*msg.MessageText)
	if err != nil {
		return nil, false, fmt.Errorf("transport: azqueue: %w", ErrFramingError)
	}
	_, _ = s.rxQueue.DeleteMessage(context.Background(), *msg.MessageID, *msg.PopReceipt, nil)

	payload, more, err := ReadFrame(bytes.NewReader(raw))
	if err != nil {
		return nil, false, err
	}
	return payload, more, nil
}

func (s *queueSocket) RecvFrame() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rxQueue == nil {
		return nil, false, ErrNoPeer
	}
	for {
		payload, more, err := s.dequeueOne()
		if err != nil {
			return nil, false, err
		}
		if s.kind != KindSub || s.matchesFilter(payload) {
			return payload, more, nil
		}
		if !more {
			return nil, false, errQueueNoData
		}
	}
}

func (s *queueSocket) Drain() error {
	for {
		_, more, err := s.RecvFrame()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (s *queueSocket) PollIn(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	rxQueue := s.rxQueue
	s.mu.Unlock()
	if rxQueue == nil {
		return false, ErrNoPeer
	}

	deadline := time.Now().Add(timeout)
	poll := NewAdaptivePoll(pollInterval, pollSteadyInterval)
	for {
		resp, err := rxQueue.PeekMessages(context.Background(), &azqueue.PeekMessagesOptions{NumberOfMessages: to.Ptr[int32](1)})
		if err != nil {
			return false, fmt.Errorf("transport: azqueue: peek: %w", err)
		}
		if len(resp.Messages) > 0 {
			return true, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return false, nil
		}
		poll.Sleep()
	}
}

func (s *queueSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound, s.connected = false, false
	s.client = nil
	return nil
}
