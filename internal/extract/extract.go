package extract

import (
	"context"

	"github.com/finbot-dev/finbot/internal/categories"
	"github.com/finbot-dev/finbot/internal/model"
)

// UserContext carries what the extractor may know about the speaker.
type UserContext struct {
	UserID     int64
	Vocabulary *categories.Vocabulary
}

// Extractor turns a free-text utterance into a Draft.
// It fails with apperr.Unparseable when no amount can be recognized at all.
type Extractor interface {
	Extract(ctx context.Context, utterance string, uc UserContext) (model.Draft, error)
}
