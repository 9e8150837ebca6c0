// Package rpctest provides test doubles for rpc.Transport.
package rpctest

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// MockTransport is a testify mock of rpc.Transport. Parameters are matched as a
// single []any argument.
type MockTransport struct {
	mock.Mock
}

var _ rpc.Transport = (*MockTransport)(nil)

func (m *MockTransport) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	args := m.Called(ctx, method, params)
	var raw json.RawMessage
	switch v := args.Get(0).(type) {
	case json.RawMessage:
		raw = v
	case string:
		raw = json.RawMessage(v)
	}
	return raw, args.Error(1)
}

func (m *MockTransport) Subscribe(ctx context.Context, method, unsubscribe string, params ...any) (rpc.Subscription, error) {
	args := m.Called(ctx, method, unsubscribe, params)
	sub, _ := args.Get(0).(rpc.Subscription)
	return sub, args.Error(1)
}

// OnRequest expects a request for method with any parameters and answers with
// result encoded as JSON.
func (m *MockTransport) OnRequest(method string, result any) *mock.Call {
	b, err := json.Marshal(result)
	if err != nil {
		panic(err)
	}
	return m.On("Request", mock.Anything, method, mock.Anything).Return(json.RawMessage(b), nil)
}

// Subscription replays a fixed list of notifications. Once they are consumed it
// returns End, or io.EOF if End is nil.
type Subscription struct {
	mu           sync.Mutex
	items        []json.RawMessage
	End          error
	Unsubscribed bool
}

var _ rpc.Subscription = (*Subscription)(nil)

func NewSubscription(items ...string) *Subscription {
	s := &Subscription{}
	for _, item := range items {
		s.items = append(s.items, json.RawMessage(item))
	}
	return s
}

func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Unsubscribed || len(s.items) == 0 {
		if s.End != nil && !s.Unsubscribed {
			return nil, s.End
		}
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *Subscription) Unsubscribe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Unsubscribed = true
	return nil
}
