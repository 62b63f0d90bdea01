package app

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"docuchat/internal/model"
	"docuchat/internal/pkg/chunker"
)

var ErrEmptyQuery = errors.New("query is empty")

type ChunkPublisher interface {
	Publish(ctx context.Context, chunk model.ReplyChunk) error
}

// ChatService orchestrates a query turn: assemble context, record the user
// turn, invoke the fallback chain, record the answer, chunk and hand off
// for delivery.
type ChatService struct {
	assembler   *ContextAssembler
	invoker     *ModelInvoker
	history     *HistoryLog
	registry    DeskRegistry
	publisher   ChunkPublisher
	maxReplyLen int
}

func NewChatService(
	assembler *ContextAssembler,
	invoker *ModelInvoker,
	history *HistoryLog,
	registry DeskRegistry,
	publisher ChunkPublisher,
	maxReplyLen int,
) *ChatService {
	if maxReplyLen <= 0 {
		maxReplyLen = 4096
	}
	return &ChatService{
		assembler:   assembler,
		invoker:     invoker,
		history:     history,
		registry:    registry,
		publisher:   publisher,
		maxReplyLen: maxReplyLen,
	}
}

type AskInput struct {
	UserID int64
	ChatID int64
	Query  string
}

type AskResult struct {
	Answer string   `json:"answer"`
	Model  string   `json:"model"`
	Chunks []string `json:"chunks"`
}

// Ask answers a query against the user's active documents. The desk is
// validated before the query is persisted, so a rejected query leaves no
// orphaned history entry; an assistant entry is written only after a model
// actually produced an answer.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	req, err := s.assembler.Build(ctx, input.UserID, query)
	if err != nil {
		return nil, err
	}

	if err := s.history.Append(ctx, input.UserID, model.RoleUser, query); err != nil {
		return nil, err
	}

	answer, chosenModel, err := s.invoker.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.history.Append(ctx, input.UserID, model.RoleAssistant, answer); err != nil {
		return nil, err
	}

	chunks := chunker.Split(answer, s.maxReplyLen)
	s.enqueueDelivery(ctx, input, chunks)

	return &AskResult{
		Answer: answer,
		Model:  chosenModel,
		Chunks: chunks,
	}, nil
}

// enqueueDelivery queues chunks for the async delivery worker. The answer is
// already persisted and returned to the caller at this point, so a broken
// queue is logged rather than failing the request.
func (s *ChatService) enqueueDelivery(ctx context.Context, input AskInput, chunks []string) {
	if s.publisher == nil || input.ChatID == 0 {
		return
	}
	for i, body := range chunks {
		err := s.publisher.Publish(ctx, model.ReplyChunk{
			ChatID: input.ChatID,
			UserID: input.UserID,
			Seq:    i + 1,
			Total:  len(chunks),
			Body:   body,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": input.UserID,
				"chat_id": input.ChatID,
				"seq":     i + 1,
			}).WithError(err).Error("enqueue reply chunk failed")
			return
		}
	}
}

func (s *ChatService) History(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.history.Recent(ctx, userID, limit)
}

// ClearSession drops the user's desk. The documents themselves stay both in
// the local store and on the remote service; this is the "clear and retry"
// path for expired handles.
func (s *ChatService) ClearSession(userID int64) (bool, error) {
	if userID == 0 {
		return false, ErrInvalidInput
	}
	return s.registry.Clear(userID), nil
}
