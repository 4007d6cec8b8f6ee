// Package search maintains a full-text index over broadcast messages and
// serves the out-of-band history search.
package search

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
)

var _ contract.EventSink = (*Index)(nil)

// Index is a permanent sink on the router's broadcast path: every message
// that reaches BROADCAST is indexed. Rebuilding after a restart happens
// implicitly as traffic flows; the durable store stays the source of truth.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

func (i *Index) Consume(_ context.Context, e event.DomainEvent) error {
	broadcast, ok := e.(event.MessageBroadcast)
	if !ok {
		return nil
	}

	message := broadcast.Message
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("body", message.Body).StoreValue()).
		AddField(bluge.NewKeywordField("room", string(message.RoomID))).
		AddField(bluge.NewKeywordField("sender", string(message.SenderID)).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", message.CreatedAt).StoreValue())

	return i.writer.Update(doc.ID(), doc)
}

// Hit is one search result; the full record lives in the message history.
type Hit struct {
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
	SenderID  string `json:"sender_id"`
}

// Search runs a room-scoped match query over message bodies.
func (i *Index) Search(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Search reader close failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("body")).
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "body":
				hit.Body = string(value)
			case "sender":
				hit.SenderID = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
