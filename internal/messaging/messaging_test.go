package messaging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	typDispatcher "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/types"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/outcome"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeDispatcher struct {
	mu          sync.Mutex
	destination string
	payload     dispatch.Payload
	calls       int
	outcome     dispatch.Outcome
}

func (f *fakeDispatcher) Dispatch(_ context.Context, destination string, payload dispatch.Payload) dispatch.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.destination = destination
	f.payload = payload
	out := f.outcome
	out.Destination = destination
	return out
}

type fakePublisher struct {
	events []outcome.Event
}

func (f *fakePublisher) Publish(evt outcome.Event) {
	f.events = append(f.events, evt)
}

func newApp(d *fakeDispatcher, p *fakePublisher) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: router.HttpErrorHandler})
	app.Post("/api/enviar-imagem", NewController(d, p).SendMessage)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (*http.Response, router.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/enviar-imagem", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out router.Response
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp, out
}

func TestSendMessageText(t *testing.T) {
	d := &fakeDispatcher{outcome: dispatch.Outcome{Success: true, MessageID: "3EB0ABC", ChatID: "5537991470016@c.us"}}
	p := &fakePublisher{}

	resp, out := post(t, newApp(d, p), `{"destination":"37 9147-0016","text":"hello"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Status)
	assert.Equal(t, "37 9147-0016", d.destination)
	assert.Equal(t, "hello", d.payload.Text)
	assert.Nil(t, d.payload.Binary)

	require.Len(t, p.events, 1)
	assert.Equal(t, outcome.EventDispatchDelivered, p.events[0].Type)
	assert.Equal(t, "3EB0ABC", p.events[0].Outcome.MessageID)
}

func TestSendMessageNumericGroupDestination(t *testing.T) {
	d := &fakeDispatcher{outcome: dispatch.Outcome{Success: true, MessageID: "X"}}

	resp, _ := post(t, newApp(d, &fakePublisher{}), `{"destination":120363041234567890,"text":"hi"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "120363041234567890", d.destination)
}

func TestSendMessageDataURL(t *testing.T) {
	d := &fakeDispatcher{outcome: dispatch.Outcome{Success: true, MessageID: "X"}}
	body := `{"destination":"3791470016","text":"caption","binary_payload":{"base64":"data:image/png;base64,` +
		base64.StdEncoding.EncodeToString(pngHeader) + `"}}`

	resp, _ := post(t, newApp(d, &fakePublisher{}), body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, d.payload.Binary)
	assert.Equal(t, "image/png", d.payload.Binary.MediaType)
	assert.Equal(t, pngHeader, d.payload.Binary.Data)
	assert.Equal(t, "caption", d.payload.Text)
}

func TestSendMessageCamelCasePayload(t *testing.T) {
	d := &fakeDispatcher{outcome: dispatch.Outcome{Success: true, MessageID: "X"}}
	body := `{"destination":"3791470016","binaryPayload":{"mediaType":"application/pdf","base64":"` +
		base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")) + `"}}`

	resp, _ := post(t, newApp(d, &fakePublisher{}), body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, d.payload.Binary)
	assert.Equal(t, "application/pdf", d.payload.Binary.MediaType)
}

func TestSendMessageRejectsBadBase64(t *testing.T) {
	d := &fakeDispatcher{}

	resp, out := post(t, newApp(d, &fakePublisher{}), `{"destination":"3791470016","binary_payload":{"media_type":"image/png","base64":"***"}}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BINARY_PAYLOAD", out.ErrorCode)
	assert.Zero(t, d.calls)
}

func TestSendMessageFailureStatus(t *testing.T) {
	d := &fakeDispatcher{outcome: dispatch.Outcome{
		Error: &dispatch.OutcomeError{Kind: dispatch.SessionNotReady, Message: "session is not ready"},
	}}
	p := &fakePublisher{}

	resp, out := post(t, newApp(d, p), `{"destination":"3791470016","text":"hi"}`)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, out.Status)
	assert.Equal(t, string(dispatch.SessionNotReady), out.ErrorCode)
	require.Len(t, p.events, 1)
	assert.Equal(t, outcome.EventDispatchFailed, p.events[0].Type)
}

func TestPayloadFromSniffsMediaType(t *testing.T) {
	req := &typDispatcher.RequestSendMessage{
		BinaryPayload: &typDispatcher.RequestBinaryPayload{Base64: base64.StdEncoding.EncodeToString(pngHeader)},
	}

	payload, err := payloadFrom(req)

	require.NoError(t, err)
	require.NotNil(t, payload.Binary)
	assert.Equal(t, "image/png", payload.Binary.MediaType)
}

func TestPayloadFromDeclaredTypeWins(t *testing.T) {
	req := &typDispatcher.RequestSendMessage{
		BinaryPayload: &typDispatcher.RequestBinaryPayload{
			MediaType: "image/jpeg",
			Base64:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
		},
	}

	payload, err := payloadFrom(req)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", payload.Binary.MediaType)
}

func TestPayloadFromMalformedDataURL(t *testing.T) {
	req := &typDispatcher.RequestSendMessage{
		BinaryPayload: &typDispatcher.RequestBinaryPayload{Base64: "data:image/png,abc"},
	}

	_, err := payloadFrom(req)

	assert.ErrorIs(t, err, dispatch.ErrMalformedDataURL)
}
