package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "transport with status",
			err:  Transport(404, nil, "fetch https://x/y.png"),
			want: "transport error (code 404): fetch https://x/y.png",
		},
		{
			name: "interaction with cause",
			err:  Interaction(fmt.Errorf("timeout"), "click a#pnnext"),
			want: "interaction error: click a#pnnext: timeout",
		},
		{
			name: "malformed",
			err:  Malformed("bad inline image"),
			want: "malformed error: bad inline image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypeOfWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("download image 2: %w", Transport(0, cause, "GET"))

	assert.Equal(t, ErrorTypeTransport, TypeOf(err))
	assert.True(t, IsType(err, ErrorTypeTransport))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 0, StatusCode(err))

	assert.Equal(t, ErrorTypeUnknown, TypeOf(cause))
	assert.False(t, IsType(nil, ErrorTypeTransport))
}

func TestPropagates(t *testing.T) {
	assert.True(t, Propagates(Structural("surface not initialized")))
	assert.False(t, Propagates(Transport(500, nil, "GET")))
	assert.False(t, Propagates(errors.New("plain")))
}
