package social

import (
	"context"

	"github.com/hyperjump/hiddenclasses/internal/models"
	"go.uber.org/zap"
)

// Publisher posts approved content, uploading the image first when there is one.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher using client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish posts text, with the image at imagePath attached when it is non-empty.
func (p *Publisher) Publish(ctx context.Context, text, imagePath string) (*models.Published, error) {
	var mediaIDs []string
	if imagePath != "" {
		id, err := p.client.UploadMedia(ctx, imagePath)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, id)
	}
	pub, err := p.client.PostStatus(ctx, text, mediaIDs...)
	if err != nil {
		return nil, err
	}
	p.client.logger.Info("post published", zap.String("id", pub.ID), zap.String("url", pub.URL))
	return pub, nil
}
