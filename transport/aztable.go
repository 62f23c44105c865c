package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// MaxTableBinaryPropertySize is the maximum size (64 KiB) of a single
// Edm.Binary property, and MaxTableProperties the number of such properties
// spread across to store one large entity.
const (
	MaxTableBinaryPropertySize = 64 * 1024
	MaxTableProperties         = 15
	MaxTableEntitySize         = MaxTableProperties * MaxTableBinaryPropertySize
)

var dataKeys = [MaxTableProperties]string{
	"Data", "Data01", "Data02", "Data03", "Data04", "Data05", "Data06",
	"Data07", "Data08", "Data09", "Data10", "Data11", "Data12", "Data13", "Data14",
}

func init() { Register("aztable", tableDriver{}) }

// tableDriver carries spdnet frame groups as Azure Table entities: one
// entity per frame in a per-direction table ("req"/"res"), all under
// PartitionKey "frame" and ordered by a monotonic RowKey, since a table has
// no native FIFO delivery the way a queue does.
type tableDriver struct{}

func (tableDriver) NewSocket(kind SocketKind) (Socket, error) {
	return &tableSocket{kind: kind}, nil
}

var errTableNoData = fmt.Errorf("transport: aztable: %w", ErrNoPeer)
var errTableMissingCreds = errors.New("transport: aztable: missing account credentials")

type tableSocket struct {
	kind SocketKind

	mu       sync.Mutex
	identity []byte
	subs     [][]byte

	client         *aztables.ServiceClient
	txClient       *aztables.Client
	rxClient       *aztables.Client
	txName, rxName string
	txSeq, rxSeq   int

	bound, connected bool
}

func buildTableEntity(pk, rk string, data []byte) ([]byte, error) {
	m := map[string]any{"PartitionKey": pk, "RowKey": rk}
	for i := 0; i < MaxTableProperties && len(data) > 0; i++ {
		take := len(data)
		if take > MaxTableBinaryPropertySize {
			take = MaxTableBinaryPropertySize
		}
		m[dataKeys[i]] = data[:take]
		m[dataKeys[i]+"@odata.type"] = "Edm.Binary"
		data = data[take:]
	}
	return json.Marshal(m)
}

func extractTableData(raw []byte) []byte {
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	var res []byte
	for i := 0; i < MaxTableProperties; i++ {
		v, ok := m[dataKeys[i]]
		if !ok {
			break
		}
		s, ok := v.(string)
		if !ok {
			break
		}
		chunk, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			break
		}
		res = append(res, chunk...)
	}
	return res
}

func formatRowKey(seq int) string {
	var b [9]byte
	for i := 8; i >= 0; i-- {
		b[i] = byte('0' + (seq % 10))
		seq /= 10
	}
	return string(b[:])
}

func (s *tableSocket) dial(addr, role string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("transport: aztable: %w", err)
	}
	ep := newEndpoint(u)
	if ep.Account == "" || ep.Key == "" {
		return errTableMissingCreds
	}
	cred, err := aztables.NewSharedKeyCredential(ep.Account, ep.Key)
	if err != nil {
		return fmt.Errorf("transport: aztable: %w", err)
	}
	client, err := aztables.NewServiceClientWithSharedKey(ep.ServiceURL(), cred, nil)
	if err != nil {
		return fmt.Errorf("transport: aztable: %w", err)
	}
	name := resourceName(u, ep.Account)

	txName, rxName := name+"req", name+"res"
	if role == "bind" {
		txName, rxName = name+"res", name+"req"
	}
	for _, tname := range []string{txName, rxName} {
		if _, err := client.CreateTable(context.Background(), tname, nil); err != nil {
			if re, ok := err.(*azcore.ResponseError); !ok || re.StatusCode != http.StatusConflict {
				return fmt.Errorf("transport: aztable: create table %s: %w", tname, err)
			}
		}
	}

	s.mu.Lock()
	s.client = client
	s.txClient, s.rxClient = client.NewClient(txName), client.NewClient(rxName)
	s.txName, s.rxName = txName, rxName
	s.mu.Unlock()
	return nil
}

func (s *tableSocket) Bind(addr string) error {
	if err := s.dial(addr, "bind"); err != nil {
		return err
	}
	s.mu.Lock()
	s.bound = true
	s.mu.Unlock()
	return nil
}

func (s *tableSocket) Unbind(addr string) error {
	s.mu.Lock()
	s.bound = false
	s.mu.Unlock()
	return nil
}

func (s *tableSocket) Connect(addr string) error {
	if err := s.dial(addr, "connect"); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *tableSocket) Disconnect(addr string) error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *tableSocket) SetIdentity(id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = append([]byte(nil), id...)
	return nil
}

func (s *tableSocket) SetSubscribe(prefix []byte) error {
	if s.kind != KindSub {
		return ErrNotSubSocket
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, append([]byte(nil), prefix...))
	return nil
}

func (s *tableSocket) matchesFilter(topic []byte) bool {
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

func (s *tableSocket) SendFrame(b []byte, more bool) error {
	s.mu.Lock()
	txClient := s.txClient
	seq := s.txSeq
	s.txSeq++
	s.mu.Unlock()
	if txClient == nil {
		return ErrNoPeer
	}

	var buf bytes.Buffer
	if err := EncodeFrame(&buf, b, more); err != nil {
		return err
	}
	entity, err := buildTableEntity("frame", formatRowKey(seq), buf.Bytes())
	if err != nil {
		return fmt.Errorf("transport: aztable: %w", err)
	}
	if _, err := txClient.AddEntity(context.Background(), entity, nil); err != nil {
		return fmt.Errorf("transport: aztable: add entity: %w", err)
	}
	return nil
}

func (s *tableSocket) RecvFrame() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rxClient == nil {
		return nil, false, ErrNoPeer
	}

	for {
		seq := s.rxSeq
		resp, err := s.rxClient.GetEntity(context.Background(), "frame", formatRowKey(seq), nil)
		if err != nil {
			if re, ok := err.(*azcore.ResponseError); ok && re.StatusCode == http.StatusNotFound {
				return nil, false, errTableNoData
			}
			return nil, false, fmt.Errorf("transport: aztable: get entity: %w", err)
		}
		s.rxSeq++

		payload, more, err := ReadFrame(bytes.NewReader(extractTableData(resp.Value)))
		if err != nil {
			return nil, false, err
		}
		if s.kind != KindSub || s.matchesFilter(payload) {
			return payload, more, nil
		}
		if !more {
			return nil, false, errTableNoData
		}
	}
}

func (s *tableSocket) Drain() error {
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

func (s *tableSocket) PollIn(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	rxClient, seq := s.rxClient, s.rxSeq
	s.mu.Unlock()
	if rxClient == nil {
		return false, ErrNoPeer
	}

	deadline := time.Now().Add(timeout)
	poll := NewAdaptivePoll(pollInterval, pollSteadyInterval)
	for {
		_, err := rxClient.GetEntity(context.Background(), "frame", formatRowKey(seq), &aztables.GetEntityOptions{})
		if err == nil {
			return true, nil
		}
		if re, ok := err.(*azcore.ResponseError); !ok || re.StatusCode != http.StatusNotFound {
			return false, fmt.Errorf("transport: aztable: get entity: %w", err)
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return false, nil
		}
		poll.Sleep()
	}
}

func (s *tableSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound, s.connected = false, false
	s.client = nil
	return nil
}
