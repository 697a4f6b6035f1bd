package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	resp *Response
	err  error
}

func (f *fakeClient) Complete(context.Context, *Request) (*Response, error) {
	return f.resp, f.err
}

func (f *fakeClient) Stream(context.Context, *Request) (Streamer, error) {
	return nil, f.err
}

func TestFallbackReturnsFirstSuccess(t *testing.T) {
	f := NewFallback([]Client{
		&fakeClient{err: errors.New("down")},
		&fakeClient{resp: &Response{Content: "ok"}},
	})
	resp, err := f.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
}

func TestFallbackReturnsJoinedErrorWhenAllFail(t *testing.T) {
	f := NewFallback([]Client{
		&fakeClient{err: errors.New("a")},
		&fakeClient{err: errors.New("b")},
	})
	_, err := f.Complete(context.Background(), &Request{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "a")
	require.Contains(t, err.Error(), "b")
}

func TestNewFallbackPanicsOnEmpty(t *testing.T) {
	require.Panics(t, func() { NewFallback(nil) })
}
