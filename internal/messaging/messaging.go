package messaging

import (
	"context"
	"errors"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"

	typDispatcher "github.com/gdbrns/go-whatsapp-erp-dispatcher/internal/types"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/outcome"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/router"
)

const eventSource = "api"

type Dispatcher interface {
	Dispatch(ctx context.Context, destination string, payload dispatch.Payload) dispatch.Outcome
}

type Publisher interface {
	Publish(evt outcome.Event)
}

type Controller struct {
	dispatcher Dispatcher
	publisher  Publisher
}

func NewController(dispatcher Dispatcher, publisher Publisher) *Controller {
	return &Controller{dispatcher: dispatcher, publisher: publisher}
}

var errInvalidBase64 = errors.New("binary payload is not valid base64")

// payloadFrom decodes the request attachment. A missing media type falls
// back to the data url prefix, then to content sniffing.
func payloadFrom(req *typDispatcher.RequestSendMessage) (dispatch.Payload, error) {
	payload := dispatch.Payload{Text: req.Text}

	bin := req.Binary()
	if bin == nil || bin.Base64 == "" {
		return payload, nil
	}

	dataURLType, encoded, _, err := dispatch.ParseDataURL(bin.Base64)
	if err != nil {
		return payload, err
	}
	data, err := dispatch.DecodeBase64(encoded)
	if err != nil {
		return payload, errInvalidBase64
	}

	mediaType := bin.DeclaredMediaType()
	if mediaType == "" {
		mediaType = dataURLType
	}
	if mediaType == "" {
		mediaType = mimetype.Detect(data).String()
	}

	payload.Binary = &dispatch.Binary{MediaType: mediaType, Data: data}
	return payload, nil
}

// SendMessage
// @Summary     Send Image, Document or Text
// @Description Deliver a base64 image or PDF, or plain text, to a WhatsApp group or contact
// @Tags        Messaging
// @Accept      json
// @Produce     json
// @Param       body body typDispatcher.RequestSendMessage true "Destination and content"
// @Success     200 {object} dispatch.Outcome
// @Failure     400 {object} router.Response
// @Failure     404 {object} router.Response
// @Failure     502 {object} router.Response
// @Failure     503 {object} router.Response
// @Router      /api/enviar-imagem [post]
func (ctl *Controller) SendMessage(c *fiber.Ctx) error {
	var req typDispatcher.RequestSendMessage
	if err := c.BodyParser(&req); err != nil {
		log.Print(c).WithError(err).Warn("Failed to parse body request")
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	destination := req.Destination.String()
	payload, err := payloadFrom(&req)
	if err != nil {
		log.DispatchOp("SendMessage", destination).WithError(err).Warn("Rejected binary payload")
		return router.ResponseError(c, http.StatusBadRequest, "INVALID_BINARY_PAYLOAD", err.Error(), nil)
	}

	entry := log.DispatchOp("SendMessage", destination).WithField("text_length", len(payload.Text))
	if payload.Binary != nil {
		entry = entry.WithField("media_type", payload.Binary.MediaType).WithField("size", len(payload.Binary.Data))
	}
	entry.Info("Dispatching message")

	out := ctl.dispatcher.Dispatch(router.RequestContext(c), destination, payload)
	ctl.publisher.Publish(outcome.NewDispatchEvent(eventSource, out))

	return router.ResponseOutcome(c, out)
}
