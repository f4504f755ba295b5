package celebration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"birthdaybot/internal/external"
	"birthdaybot/internal/types"
)

// DefaultUploadConcurrency bounds parallel image uploads.
const DefaultUploadConcurrency = 3

// PostResult reports what was actually delivered.
type PostResult struct {
	MessageSent bool
	ImagesSent  int
	MessageTS   string
}

// Poster uploads images and sends a single celebration post.
type Poster struct {
	slack       Publisher
	concurrency int
	logger      types.Logger
}

// NewPoster creates a Poster. A non-positive concurrency selects
// DefaultUploadConcurrency.
func NewPoster(slack Publisher, concurrency int, logger types.Logger) *Poster {
	if concurrency <= 0 {
		concurrency = DefaultUploadConcurrency
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Poster{slack: slack, concurrency: concurrency, logger: logger}
}

// Post uploads content's images, then sends one message to channel. Images
// that fail to upload are dropped. If the block layout cannot be built the
// plain message text is sent on its own, or the fallback greeting when the
// message is blank. A send failure is returned with
// MessageSent false; there is no retry here.
func (p *Poster) Post(ctx context.Context, channel string, content types.GeneratedContent, people []types.BirthdayPerson, ref time.Time) (PostResult, error) {
	files := p.upload(ctx, content.Images)

	msg := external.SlackMessage{Channel: channel, Text: FallbackText(people)}
	sentImages := len(files)

	blocks, err := BuildBlocks(content, people, files, ref)
	if err != nil {
		p.logger.Warn("failed to build celebration blocks, sending plain text",
			"channel", channel,
			"error", err.Error(),
		)
		if strings.TrimSpace(content.Message) != "" {
			msg.Text = content.Message
		}
		sentImages = 0
	} else {
		msg.Blocks = blocks
	}

	ts, err := p.slack.PostMessage(ctx, msg)
	if err != nil {
		p.logger.Error("failed to send celebration",
			"channel", channel,
			"people", len(people),
			"error", err.Error(),
		)
		return PostResult{}, err
	}

	p.logger.Info("celebration sent",
		"channel", channel,
		"people", len(people),
		"images", sentImages,
		"ts", ts,
	)
	return PostResult{MessageSent: true, ImagesSent: sentImages, MessageTS: ts}, nil
}

// upload uploads images concurrently and returns the successful uploads in
// the original image order.
func (p *Poster) upload(ctx context.Context, images []types.ImageRef) []external.UploadedFile {
	if len(images) == 0 {
		return nil
	}

	results := make([]*external.UploadedFile, len(images))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, img := range images {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("image upload panicked",
						"person_id", img.PersonID,
						"error", fmt.Sprintf("panic: %v", r),
					)
				}
			}()
			f, err := p.slack.UploadImage(gCtx, img)
			if err != nil {
				// Dropped; the post goes out with the remaining images.
				p.logger.Warn("image upload failed",
					"person_id", img.PersonID,
					"error", err.Error(),
				)
				return nil
			}
			if f.PersonID == "" {
				f.PersonID = img.PersonID
			}
			results[i] = &f
			return nil
		})
	}
	_ = g.Wait()

	files := make([]external.UploadedFile, 0, len(images))
	for _, f := range results {
		if f != nil {
			files = append(files, *f)
		}
	}
	return files
}
