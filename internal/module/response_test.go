package module

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFirstCallIsPretty(t *testing.T) {
	resp := NewResponse()
	require.True(t, resp.Armed())

	require.NoError(t, resp.JSON(map[string]int{"a": 1}))

	assert.Equal(t, "{\n  \"a\": 1\n}", string(resp.Bytes()))
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
	assert.False(t, resp.Armed())
	assert.True(t, resp.Written())
}

func TestJSONSecondCallIsCompact(t *testing.T) {
	resp := NewResponse()
	require.NoError(t, resp.JSON(map[string]int{"a": 1}))
	first := len(resp.Bytes())

	require.NoError(t, resp.JSON(map[string]int{"b": 2}))

	assert.Equal(t, `{"b":2}`, string(resp.Bytes()[first:]))
}

func TestJSONKeepsStatus(t *testing.T) {
	resp := NewResponse()
	require.NoError(t, resp.Status(http.StatusCreated).JSON([]int{1, 2}))

	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Equal(t, "[\n  1,\n  2\n]", string(resp.Bytes()))
}

func TestOtherWritesLeaveTransformArmed(t *testing.T) {
	resp := NewResponse()
	require.NoError(t, resp.SendString("<p>hi</p>"))

	assert.True(t, resp.Armed())
	assert.Equal(t, "text/html; charset=utf-8", resp.Header().Get("Content-Type"))

	resp = NewResponse()
	_, err := resp.Write([]byte("raw"))
	require.NoError(t, err)
	assert.True(t, resp.Armed())
	assert.Equal(t, "raw", string(resp.Bytes()))
}

func TestSendPrettyDoesNotDisarm(t *testing.T) {
	resp := NewResponse()
	require.NoError(t, resp.SendPretty(map[string]bool{"ok": true}))

	assert.Equal(t, "{\n  \"ok\": true\n}", string(resp.Bytes()))
	assert.True(t, resp.Armed())
}

func TestSendErrorReplacesBuffer(t *testing.T) {
	resp := NewResponse()
	resp.Set("X-Partial", "1")
	require.NoError(t, resp.JSON(map[string]int{"partial": 1}))

	require.NoError(t, resp.SendError(http.StatusInternalServerError, map[string]string{"error": ErrorMessage}))

	assert.Equal(t, string(ErrorBody()), string(resp.Bytes()))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Empty(t, resp.Header().Get("X-Partial"))
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
}

func TestFlush(t *testing.T) {
	resp := NewResponse()
	resp.Set("X-Module", "weather")
	require.NoError(t, resp.Status(http.StatusAccepted).JSON(map[string]string{"city": "Oslo"}))

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Flush(rec))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "weather", rec.Header().Get("X-Module"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "{\n  \"city\": \"Oslo\"\n}", rec.Body.String())

	assert.ErrorIs(t, resp.JSON(1), ErrResponseClosed)
	assert.ErrorIs(t, resp.Flush(rec), ErrResponseClosed)
}

func TestInvalidStatus(t *testing.T) {
	for _, code := range []int{0, 99, 1000, -1} {
		resp := NewResponse()

		err := resp.Status(code).JSON(map[string]int{"a": 1})

		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.ErrorIs(t, resp.Err(), ErrInvalidStatus)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Empty(t, resp.Bytes())
		assert.ErrorIs(t, resp.Flush(httptest.NewRecorder()), ErrInvalidStatus)
	}

	resp := NewResponse()
	resp.WriteHeader(42)
	assert.ErrorIs(t, resp.Err(), ErrInvalidStatus)
	assert.False(t, resp.Written())

	assert.True(t, ValidStatus(http.StatusTeapot))
	assert.True(t, ValidStatus(999))
}

type presorted struct{}

func (presorted) MarshalJSON() ([]byte, error) { return []byte(`{"z":1,"a":2}`), nil }

func (presorted) MarshalIndentJSON(indent string) ([]byte, error) {
	return []byte("{\n" + indent + "\"z\": 1,\n" + indent + "\"a\": 2\n}"), nil
}

func TestCustomMarshalers(t *testing.T) {
	resp := NewResponse()
	require.NoError(t, resp.JSON(presorted{}))
	require.NoError(t, resp.JSON(presorted{}))

	assert.Equal(t, "{\n  \"z\": 1,\n  \"a\": 2\n}{\"z\":1,\"a\":2}", string(resp.Bytes()))
}

func TestMarshalError(t *testing.T) {
	resp := NewResponse()
	assert.Error(t, resp.JSON(make(chan int)))
}
