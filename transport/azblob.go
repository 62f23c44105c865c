package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

// MaxBlobBlockSize is the maximum size of a single block in an append blob
// (4 MiB), the frame size ceiling for this medium.
const MaxBlobBlockSize = 4 * 1024 * 1024

// pollInterval is how often a blocking PollIn re-checks blob properties;
// storage-backed drivers can't select() on a socket, so they fall back to
// this spin cadence via AdaptivePoll.
const pollInterval = 10 * time.Millisecond

func init() { Register("azblob", blobDriver{}) }

// blobDriver mediates spdnet frame groups through two append blobs in an
// Azure Storage container instead of a TCP byte stream: one party appends
// to "req", the other to "res", each polling the other's blob from its own
// read offset, one frame per AppendBlock so a download is always a
// sequence of whole frames.
type blobDriver struct{}

func (blobDriver) NewSocket(kind SocketKind) (Socket, error) {
	return &blobSocket{kind: kind}, nil
}

type blobSocket struct {
	kind SocketKind

	mu        sync.Mutex
	identity  []byte
	subs      [][]byte
	container *container.Client
	ep        *endpoint

	role       string // "bind" or "connect", decides which blob is tx/rx
	txBlob     string
	rxBlob     string
	readOffset int64
	leftover   []byte

	bound, connected bool
}

var (
	errBlobNoData       = fmt.Errorf("transport: azblob: %w", ErrNoPeer)
	errBlobMissingCreds = errors.New("transport: azblob: missing account credentials")
)

func (s *blobSocket) dial(addr, role string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("transport: azblob: %w", err)
	}
	ep := newEndpoint(u)
	client, err := newBlobServiceClient(ep)
	if err != nil {
		return err
	}
	name := resourceName(u, ep.Account)

	containerClient := client.NewContainerClient(name)
	if _, err := containerClient.Create(context.Background(), nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("transport: azblob: create container %s: %w", name, err)
	}

	txBlob, rxBlob := "req", "res"
	if role == "bind" {
		txBlob, rxBlob = "res", "req"
	}
	for _, name := range []string{txBlob, rxBlob} {
		if _, err := containerClient.NewAppendBlobClient(name).Create(context.Background(), nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
			return fmt.Errorf("transport: azblob: create blob %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.ep = ep
	s.container = containerClient
	s.role = role
	s.txBlob, s.rxBlob = txBlob, rxBlob
	s.mu.Unlock()
	return nil
}

func (s *blobSocket) Bind(addr string) error {
	if err := s.dial(addr, "bind"); err != nil {
		return err
	}
	s.mu.Lock()
	s.bound = true
	s.mu.Unlock()
	return nil
}

func (s *blobSocket) Unbind(addr string) error {
	s.mu.Lock()
	s.bound = false
	s.mu.Unlock()
	return nil
}

func (s *blobSocket) Connect(addr string) error {
	if err := s.dial(addr, "connect"); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *blobSocket) Disconnect(addr string) error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *blobSocket) SetIdentity(id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = append([]byte(nil), id...)
	return nil
}

func (s *blobSocket) SetSubscribe(prefix []byte) error {
	if s.kind != KindSub {
		return ErrNotSubSocket
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, append([]byte(nil), prefix...))
	return nil
}

func (s *blobSocket) matchesFilter(topic []byte) bool {
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

func (s *blobSocket) SendFrame(b []byte, more bool) error {
	s.mu.Lock()
	containerClient, txBlob := s.container, s.txBlob
	s.mu.Unlock()
	if containerClient == nil {
		return ErrNoPeer
	}

	var buf bytes.Buffer
	if err := EncodeFrame(&buf, b, more); err != nil {
		return err
	}
	_, err := containerClient.NewAppendBlobClient(txBlob).AppendBlock(context.Background(), streaming.NopCloser(bytes.NewReader(buf.Bytes())), nil)
	if err != nil {
		return fmt.Errorf("transport: azblob: append block: %w", err)
	}
	return nil
}

// fill downloads any bytes appended to the rx blob since readOffset, but
// only once the previous download has been fully decoded (leftover is
// empty). Each AppendBlock carries one whole frame, so a download ends on a
// frame boundary.
func (s *blobSocket) fill() error {
	if len(s.leftover) > 0 {
		return nil
	}
	resp, err := s.container.NewBlobClient(s.rxBlob).DownloadStream(context.Background(), &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: s.readOffset},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return errBlobNoData
		}
		if re, ok := err.(*azcore.ResponseError); ok && re.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			return errBlobNoData
		}
		return fmt.Errorf("transport: azblob: download: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("transport: azblob: %w", err)
	}
	if len(data) == 0 {
		return errBlobNoData
	}
	s.readOffset += int64(len(data))
	s.leftover = data
	return nil
}

func (s *blobSocket) RecvFrame() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.container == nil {
		return nil, false, ErrNoPeer
	}

	for {
		if err := s.fill(); err != nil {
			return nil, false, err
		}
		r := bytes.NewReader(s.leftover)
		payload, more, err := ReadFrame(r)
		if err != nil {
			s.leftover = nil
			return nil, false, err
		}
		s.leftover = s.leftover[len(s.leftover)-r.Len():]

		if s.kind != KindSub || s.matchesFilter(payload) {
			return payload, more, nil
		}
		if !more {
			return nil, false, errBlobNoData
		}
	}
}

func (s *blobSocket) Drain() error {
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

func (s *blobSocket) PollIn(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	containerClient, rxBlob, haveLeftover := s.container, s.rxBlob, len(s.leftover) > 0
	s.mu.Unlock()
	if containerClient == nil {
		return false, ErrNoPeer
	}
	if haveLeftover {
		return true, nil
	}

	deadline := time.Now().Add(timeout)
	poll := NewAdaptivePoll(pollInterval, pollSteadyInterval)
	for {
		props, err := containerClient.NewBlobClient(rxBlob).GetProperties(context.Background(), nil)
		if err != nil {
			return false, fmt.Errorf("transport: azblob: get properties: %w", err)
		}
		s.mu.Lock()
		size := int64(0)
		if props.ContentLength != nil {
			size = *props.ContentLength
		}
		ready := size > s.readOffset
		s.mu.Unlock()
		if ready {
			return true, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return false, nil
		}
		poll.Sleep()
	}
}

func (s *blobSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound, s.connected = false, false
	s.container = nil
	return nil
}

func newBlobServiceClient(ep *endpoint) (*service.Client, error) {
	if ep.Account == "" || ep.Key == "" {
		return nil, errBlobMissingCreds
	}
	cred, err := azblob.NewSharedKeyCredential(ep.Account, ep.Key)
	if err != nil {
		return nil, fmt.Errorf("transport: azblob: %w", err)
	}
	c, err := azblob.NewClientWithSharedKeyCredential(ep.ServiceURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: azblob: %w", err)
	}
	return c.ServiceClient(), nil
}
