package types

import (
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

// RequestBinaryPayload carries an attachment. Base64 may be a data url, in
// which case its declared type is used when MediaType is empty.
type RequestBinaryPayload struct {
	MediaType      string `json:"media_type"`
	MediaTypeCamel string `json:"mediaType"`
	Base64         string `json:"base64"`
}

func (r *RequestBinaryPayload) DeclaredMediaType() string {
	if r.MediaType != "" {
		return r.MediaType
	}
	return r.MediaTypeCamel
}

type RequestSendMessage struct {
	Destination        dispatch.Destination  `json:"destination"`
	BinaryPayload      *RequestBinaryPayload `json:"binary_payload"`
	BinaryPayloadCamel *RequestBinaryPayload `json:"binaryPayload"`
	Text               string                `json:"text"`
}

// Binary returns the attachment under either key.
func (r *RequestSendMessage) Binary() *RequestBinaryPayload {
	if r.BinaryPayload != nil {
		return r.BinaryPayload
	}
	return r.BinaryPayloadCamel
}

type RequestSendReport struct {
	CNPJ string `json:"cnpj"`
}

type RequestIssueToken struct {
	Client string `json:"client"`
	TTL    string `json:"ttl"`
}

type ResponseHealth struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version"`
}

type ResponseReportFile struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
	MediaType    string `json:"mediaType"`
}

type ResponseReportMeta struct {
	Duration    string `json:"duration"`
	ProcessedAt string `json:"processedAt"`
}

type ResponseReportSent struct {
	CNPJ        string             `json:"cnpj"`
	Company     string             `json:"empresa"`
	Destination string             `json:"grupo"`
	ChatID      string             `json:"chatId"`
	MessageID   string             `json:"messageId"`
	Timestamp   string             `json:"timestamp"`
	Synthesized bool               `json:"synthesized,omitempty"`
	File        ResponseReportFile `json:"arquivo"`
	Meta        ResponseReportMeta `json:"meta"`
}

type ResponseConnectionCheck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

type ResponseChatInfo struct {
	Destination  string `json:"destination"`
	ChatID       string `json:"chatId"`
	Kind         string `json:"kind"`
	Found        bool   `json:"found"`
	Name         string `json:"name,omitempty"`
	IsGroup      bool   `json:"isGroup"`
	Participants int    `json:"participants,omitempty"`
	Registered   *bool  `json:"registered,omitempty"`
}
