package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSuccess(t *testing.T) {
	enc := testEncoder()
	image := []byte("\xff\xd8jpeg\xff\xd9")

	var contentLength int64
	var lengthHeader, auth, ctype string
	var body []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentLength = r.ContentLength
		lengthHeader = r.Header.Get("Content-Length")
		auth = r.Header.Get("Authorization")
		ctype = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(ts.Close)

	u := NewUploader(ts.Client(), enc, Config{URL: ts.URL + "/api/iot/upload", APIKey: "iot_key", Firmware: "1.2.0"})
	res := u.Upload(context.Background(), testMeta, image)

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, http.StatusCreated, res.Status)

	want := len(enc.Head(testMeta)) + len(image) + len(enc.Tail())
	assert.Equal(t, int64(want), contentLength)
	if lengthHeader != "" {
		assert.Equal(t, strconv.Itoa(want), lengthHeader)
	}
	assert.Len(t, body, want)
	assert.Equal(t, "Bearer iot_key", auth)
	assert.Equal(t, "multipart/form-data; boundary=B0UNDARY", ctype)
}

func TestUploadServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	u := NewUploader(ts.Client(), testEncoder(), Config{URL: ts.URL})
	res := u.Upload(context.Background(), testMeta, []byte("jpeg"))

	assert.False(t, res.Success)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.ErrorContains(t, res.Err, "boom")
}

func TestUploadTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	u := NewUploader(&http.Client{Timeout: time.Second}, testEncoder(), Config{URL: url})
	res := u.Upload(context.Background(), testMeta, []byte("jpeg"))

	assert.False(t, res.Success)
	assert.Equal(t, TransportFailure, res.Status)
	assert.Error(t, res.Err)
}

func TestUploadOversizedNeverPosts(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	t.Cleanup(ts.Close)

	u := NewUploader(ts.Client(), testEncoder(), Config{URL: ts.URL})
	res := u.Upload(context.Background(), testMeta, make([]byte, 4096))

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrFrameTooLarge)
	assert.Zero(t, hits)
}
