package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "cancellation is other",
			err:  context.Canceled,
			want: KindOther,
		},
		{
			name: "dns not found is offline",
			err:  &net.DNSError{Err: "no such host", Name: "api.openai.com", IsNotFound: true},
			want: KindOffline,
		},
		{
			name: "network unreachable is offline",
			err:  fmt.Errorf("dial tcp: %w", syscall.ENETUNREACH),
			want: KindOffline,
		},
		{
			name: "offline signature in message",
			err:  errors.New("the internet connection appears to be offline"),
			want: KindOffline,
		},
		{
			name: "unknown transport failure defaults to upstream",
			err:  errors.New("unexpected status 503"),
			want: KindUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			if tt.err == nil {
				assert.Nil(t, classified)
				return
			}
			require.NotNil(t, classified)
			assert.Equal(t, tt.want, classified.Kind)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	original := NewClassifiedError(KindMalformedResponse, errors.New("bad frame"))
	wrapped := fmt.Errorf("completing chat: %w", original)

	classified := Classify(wrapped)
	assert.Equal(t, KindMalformedResponse, classified.Kind)
	assert.Same(t, original, classified)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
	assert.Equal(t, KindOther, KindOf(nil))

	err := fmt.Errorf("outer: %w", NewClassifiedError(KindLocalIO, errors.New("disk full")))
	assert.Equal(t, KindLocalIO, KindOf(err))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "offline", KindOffline.String())
	assert.Equal(t, "upstream_unavailable", KindUpstreamUnavailable.String())
	assert.Equal(t, "malformed_response", KindMalformedResponse.String())
	assert.Equal(t, "local_io", KindLocalIO.String())
	assert.Equal(t, "other", KindOther.String())
}
