package whatsapp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sunshineplan/imgconv"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

const thumbnailWidth = 72

// thumbnail renders the small JPEG preview shown before the image downloads.
func thumbnail(image []byte) ([]byte, error) {
	decoded, err := imgconv.Decode(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail source: %w", err)
	}
	var out bytes.Buffer
	err = imgconv.Write(&out,
		imgconv.Resize(decoded, &imgconv.ResizeOption{Width: thumbnailWidth}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return out.Bytes(), nil
}

func documentMessage(up whatsmeow.UploadResponse, file dispatch.OutgoingFile, caption string) *waE2E.Message {
	doc := &waE2E.DocumentMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		Mimetype:      proto.String(file.MediaType),
		FileName:      proto.String(file.Filename),
		FileLength:    proto.Uint64(up.FileLength),
		FileSHA256:    up.FileSHA256,
		FileEncSHA256: up.FileEncSHA256,
		MediaKey:      up.MediaKey,
	}
	if caption != "" {
		doc.Caption = proto.String(caption)
	}
	return &waE2E.Message{DocumentMessage: doc}
}

// imageMessage builds the image message. thumb and thumbUp are optional.
func imageMessage(up whatsmeow.UploadResponse, mediaType string, caption string, thumb []byte, thumbUp *whatsmeow.UploadResponse) *waE2E.Message {
	img := &waE2E.ImageMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		Mimetype:      proto.String(mediaType),
		FileLength:    proto.Uint64(up.FileLength),
		FileSHA256:    up.FileSHA256,
		FileEncSHA256: up.FileEncSHA256,
		MediaKey:      up.MediaKey,
	}
	if caption != "" {
		img.Caption = proto.String(caption)
	}
	if len(thumb) > 0 {
		img.JPEGThumbnail = thumb
	}
	if thumbUp != nil {
		img.ThumbnailDirectPath = proto.String(thumbUp.DirectPath)
		img.ThumbnailSHA256 = thumbUp.FileSHA256
		img.ThumbnailEncSHA256 = thumbUp.FileEncSHA256
	}
	return &waE2E.Message{ImageMessage: img}
}

// buildMediaMessage uploads the file and returns the message to send. A
// thumbnail that cannot be produced does not fail the send.
func (s *Session) buildMediaMessage(ctx context.Context, file dispatch.OutgoingFile, caption string) (*waE2E.Message, error) {
	if dispatch.IsPDF(file.MediaType) {
		up, err := s.client.Upload(ctx, file.Data, whatsmeow.MediaDocument)
		if err != nil {
			return nil, fmt.Errorf("upload document: %w", err)
		}
		return documentMessage(up, file, caption), nil
	}

	up, err := s.client.Upload(ctx, file.Data, whatsmeow.MediaImage)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	thumb, err := thumbnail(file.Data)
	if err != nil {
		s.log.WithError(err).Warn("Sending image without thumbnail")
		return imageMessage(up, file.MediaType, caption, nil, nil), nil
	}
	thumbUp, err := s.client.Upload(ctx, thumb, whatsmeow.MediaLinkThumbnail)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.WithError(err).Warn("Thumbnail upload failed, sending inline preview only")
		return imageMessage(up, file.MediaType, caption, thumb, nil), nil
	}
	return imageMessage(up, file.MediaType, caption, thumb, &thumbUp), nil
}
