package service

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/models"
)

// maxAttachmentBytes is the size ceiling for media and file attachments.
const maxAttachmentBytes = 25 << 20

var allowedAttachmentKinds = map[string]struct{}{
	models.AttachmentImage: {},
	models.AttachmentVideo: {},
	models.AttachmentAudio: {},
	models.AttachmentFile:  {},
	models.AttachmentPost:  {},
}

// sanitizeAttachments keeps only well-formed entries: the kind must be in
// the allow-list, media and files need a URL and must fit the size ceiling,
// and post previews need a valid reference id regardless of URL. Invalid
// entries are dropped silently rather than failing the send.
func sanitizeAttachments(payloads []dto.AttachmentPayload) []models.Attachment {
	out := make([]models.Attachment, 0, len(payloads))
	for _, payload := range payloads {
		kind := strings.ToLower(strings.TrimSpace(payload.Kind))
		if _, ok := allowedAttachmentKinds[kind]; !ok {
			continue
		}

		if kind == models.AttachmentPost {
			if payload.PostRef == nil || payload.PostRef.ID == 0 {
				continue
			}
			out = append(out, models.Attachment{
				Kind: kind,
				URL:  strings.TrimSpace(payload.URL),
				Name: strings.TrimSpace(payload.Name),
				PostRef: &models.PostRef{
					ID:         payload.PostRef.ID,
					Title:      payload.PostRef.Title,
					Status:     payload.PostRef.Status,
					AuthorName: payload.PostRef.AuthorName,
					CoverURL:   payload.PostRef.CoverURL,
				},
			})
			continue
		}

		url := strings.TrimSpace(payload.URL)
		if url == "" || payload.Size > maxAttachmentBytes {
			continue
		}
		out = append(out, models.Attachment{
			Kind: kind,
			URL:  url,
			Name: strings.TrimSpace(payload.Name),
			Mime: strings.TrimSpace(payload.Mime),
			Size: payload.Size,
		})
	}
	return out
}

// encodeAttachments serializes the sanitized list for the JSON column.
// An empty list stores as NULL.
func encodeAttachments(attachments []models.Attachment) (datatypes.JSON, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
