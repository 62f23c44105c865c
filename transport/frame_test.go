package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_EncodeReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeFrame(&buf, []byte("hello"), true)
	assert.NoError(t, err)

	payload, more, err := ReadFrame(&buf)
	assert.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []byte("hello"), payload)
}

func Test_EncodeReadFrame_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeFrame(&buf, nil, false)
	assert.NoError(t, err)

	payload, more, err := ReadFrame(&buf)
	assert.NoError(t, err)
	assert.False(t, more)
	assert.Empty(t, payload)
}

func Test_EncodeReadFrame_Group(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, EncodeFrame(&buf, []byte("a"), true))
	assert.NoError(t, EncodeFrame(&buf, []byte("bb"), true))
	assert.NoError(t, EncodeFrame(&buf, []byte("ccc"), false))

	var got [][]byte
	for {
		payload, more, err := ReadFrame(&buf)
		assert.NoError(t, err)
		got = append(got, payload)
		if !more {
			break
		}
	}
	assert.Equal(t, [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}, got)
}

func Test_ReadFrame_ShortRead(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader([]byte{0, 0}))
	assert.Error(t, err)
}
