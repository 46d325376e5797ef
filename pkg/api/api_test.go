package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dmfeed/pkg/auth"
	"dmfeed/pkg/blob"
	"dmfeed/pkg/feed"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type testServer struct {
	api    *API
	store  *store.Store
	blobs  *blob.Store
	ln     *fasthttputil.InmemoryListener
	client *fasthttp.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store"), store.Options{})
	require.NoError(t, err)
	bl, err := blob.Open(filepath.Join(dir, "blobs"), 1024)
	require.NoError(t, err)

	a := New(st, bl, Options{
		Feed:      feed.Options{PageSize: 3},
		Version:   "test",
		Heartbeat: 50 * time.Millisecond,
	})
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: a.Handler(auth.SecConfig{RPS: 1000, Burst: 1000})}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		a.Close()
		_ = srv.Shutdown()
		_ = st.Close()
		_ = bl.Close()
	})

	return &testServer{
		api:    a,
		store:  st,
		blobs:  bl,
		ln:     ln,
		client: &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }},
	}
}

func (s *testServer) do(t *testing.T, method, path, uid string, body []byte, contentType string) (int, []byte) {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://dmfeed.local" + path)
	if uid != "" {
		req.Header.Set(auth.IdentityHeader, uid)
	}
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.SetContentType(contentType)
	req.SetBody(body)
	require.NoError(t, s.client.DoTimeout(req, resp, 2*time.Second))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

func (s *testServer) send(t *testing.T, from, to, text string) models.Message {
	t.Helper()
	body, _ := json.Marshal(SendRequest{Text: text})
	code, out := s.do(t, "POST", "/v1/conversations/"+to+"/messages", from, body, "")
	require.Equal(t, fasthttp.StatusCreated, code, string(out))
	var r MessageResponse
	require.NoError(t, json.Unmarshal(out, &r))
	return r.Message
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, "GET", "/healthz", "", nil, "")
	assert.Equal(t, fasthttp.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, string(body))

	code, _ = s.do(t, "GET", "/v1/conversations", "", nil, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, code)
}

func TestSendAndPageHistory(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		s.send(t, "alice", "bob", fmt.Sprintf("m%d", i))
	}

	code, body := s.do(t, "GET", "/v1/conversations/alice/messages", "bob", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)
	var page models.MessagesResponse
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "m4", page.Messages[0].Text)
	assert.True(t, page.Pagination.HasMore)
	require.NotEmpty(t, page.Pagination.NextCursor)

	code, body = s.do(t, "GET", "/v1/conversations/alice/messages?cursor="+page.Pagination.NextCursor, "bob", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)
	var older models.MessagesResponse
	require.NoError(t, json.Unmarshal(body, &older))
	require.Len(t, older.Messages, 2)
	assert.Equal(t, "m1", older.Messages[0].Text)
	assert.Equal(t, "m0", older.Messages[1].Text)
	assert.False(t, older.Pagination.HasMore)

	code, _ = s.do(t, "GET", "/v1/conversations/alice/messages?cursor=@@@", "bob", nil, "")
	assert.Equal(t, fasthttp.StatusBadRequest, code)
}

func TestSendValidation(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, "POST", "/v1/conversations/bob/messages", "alice", []byte(`{"text":"  "}`), "")
	assert.Equal(t, fasthttp.StatusBadRequest, code)

	code, _ = s.do(t, "POST", "/v1/conversations/alice/messages", "alice", []byte(`{"text":"me"}`), "")
	assert.Equal(t, fasthttp.StatusBadRequest, code)

	code, _ = s.do(t, "POST", "/v1/conversations/bob/messages", "alice", []byte(`{`), "")
	assert.Equal(t, fasthttp.StatusBadRequest, code)

	code, _ = s.do(t, "POST", "/v1/conversations/bob/messages", "alice",
		[]byte(`{"image_ref":"blob://0b8f4a8e-8a6c-4d8e-9f55-7b0e4d1f2a3c"}`), "")
	assert.Equal(t, fasthttp.StatusNotFound, code)
}

func TestEditAndDeleteRules(t *testing.T) {
	s := newTestServer(t)
	m := s.send(t, "alice", "bob", "hello")
	path := "/v1/conversations/bob/messages/" + m.ID

	code, _ := s.do(t, "PUT", "/v1/conversations/alice/messages/"+m.ID, "bob", []byte(`{"text":"hijack"}`), "")
	assert.Equal(t, fasthttp.StatusForbidden, code)

	code, body := s.do(t, "PUT", path, "alice", []byte(`{"text":"hello!"}`), "")
	require.Equal(t, fasthttp.StatusOK, code, string(body))
	var edited MessageResponse
	require.NoError(t, json.Unmarshal(body, &edited))
	assert.Equal(t, "hello!", edited.Message.Text)
	assert.True(t, edited.Message.Edited)

	code, _ = s.do(t, "DELETE", path, "alice", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)

	code, _ = s.do(t, "PUT", path, "alice", []byte(`{"text":"again"}`), "")
	assert.Equal(t, fasthttp.StatusConflict, code)

	code, _ = s.do(t, "DELETE", "/v1/conversations/bob/messages/missing", "alice", nil, "")
	assert.Equal(t, fasthttp.StatusNotFound, code)
}

func TestImageUploadSendAndDelete(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "POST", "/v1/blobs", "alice", []byte("not an image"), "text/plain")
	assert.Equal(t, fasthttp.StatusUnsupportedMediaType, code)
	code, _ = s.do(t, "POST", "/v1/blobs", "alice", make([]byte, 2048), "image/png")
	assert.Equal(t, fasthttp.StatusRequestEntityTooLarge, code)

	code, body := s.do(t, "POST", "/v1/blobs", "alice", []byte("\x89PNG fake"), "image/png")
	require.Equal(t, fasthttp.StatusCreated, code, string(body))
	var up BlobResponse
	require.NoError(t, json.Unmarshal(body, &up))
	assert.True(t, strings.HasPrefix(up.Ref, blob.RefScheme))

	code, body = s.do(t, "GET", "/v1/blobs/"+up.ID, "bob", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)
	assert.Equal(t, "\x89PNG fake", string(body))

	sendBody, _ := json.Marshal(SendRequest{ImageRef: up.Ref})
	code, body = s.do(t, "POST", "/v1/conversations/bob/messages", "alice", sendBody, "")
	require.Equal(t, fasthttp.StatusCreated, code, string(body))
	var sent MessageResponse
	require.NoError(t, json.Unmarshal(body, &sent))
	conv, err := s.store.GetConversation("alice_bob")
	require.NoError(t, err)
	assert.Equal(t, "[image]", conv.LastMessage)

	code, body = s.do(t, "DELETE", "/v1/conversations/bob/messages/"+sent.Message.ID, "alice", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)
	var deleted MessageResponse
	require.NoError(t, json.Unmarshal(body, &deleted))
	assert.True(t, deleted.Message.Deleted)
	assert.Empty(t, deleted.Message.ImageURL)

	code, _ = s.do(t, "GET", "/v1/blobs/"+up.ID, "bob", nil, "")
	assert.Equal(t, fasthttp.StatusNotFound, code)
}

func TestTokensAndConversationList(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, "PUT", "/v1/tokens", "bob", []byte(`{"token":" "}`), "")
	assert.Equal(t, fasthttp.StatusBadRequest, code)
	code, _ = s.do(t, "PUT", "/v1/tokens", "bob", []byte(`{"token":"device-1"}`), "")
	assert.Equal(t, fasthttp.StatusOK, code)
	tok, err := s.store.GetToken("bob")
	require.NoError(t, err)
	assert.Equal(t, "device-1", tok.Token)

	s.send(t, "alice", "bob", "to bob")
	s.send(t, "alice", "carol", "to carol")

	code, body := s.do(t, "GET", "/v1/conversations?limit=1", "alice", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)
	var list models.ConversationsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "alice_carol", list.Conversations[0].ID)
	require.True(t, list.Pagination.HasMore)

	code, body = s.do(t, "GET", "/v1/conversations?limit=1&cursor="+list.Pagination.NextCursor, "alice", nil, "")
	require.Equal(t, fasthttp.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "alice_bob", list.Conversations[0].ID)
	assert.False(t, list.Pagination.HasMore)
}

func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "" && event != "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamDeliversSnapshots(t *testing.T) {
	s := newTestServer(t)
	s.send(t, "alice", "bob", "first")

	conn, err := s.ln.Dial()
	require.NoError(t, err)
	defer conn.Close()
	_, err = fmt.Fprintf(conn, "GET /v1/conversations/alice/stream HTTP/1.1\r\nHost: dmfeed.local\r\n%s: bob\r\n\r\n", auth.IdentityHeader)
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, status, "200")

	event, data := readEvent(t, r)
	require.Equal(t, "page", event)
	var page []models.Message
	require.NoError(t, json.Unmarshal([]byte(data), &page))
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Text)

	s.send(t, "alice", "bob", "second")
	for {
		event, data = readEvent(t, r)
		require.Equal(t, "page", event)
		require.NoError(t, json.Unmarshal([]byte(data), &page))
		if len(page) == 2 {
			break
		}
	}
	assert.Equal(t, "second", page[0].Text)
}
