package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"docuchat/internal/model"
)

var (
	ErrNoActiveDocuments     = errors.New("no documents attached to the session")
	ErrNoResolvableDocuments = errors.New("none of the attached documents could be resolved")
)

type HandleResolver interface {
	Resolve(ctx context.Context, remoteID string) (*model.FileRef, error)
}

type HistorySource interface {
	Recent(ctx context.Context, userID int64, limit int) ([]model.Message, error)
}

type ActiveDocumentSource interface {
	ActiveDocuments(userID int64) []model.Document
}

// ContextAssembler builds the bounded request sent to the model: one file
// part per active document followed by a single composed text block of
// instruction, recent history and the new query.
type ContextAssembler struct {
	desks    ActiveDocumentSource
	history  HistorySource
	resolver HandleResolver
	maxTurns int
}

func NewContextAssembler(
	desks ActiveDocumentSource,
	history HistorySource,
	resolver HandleResolver,
	maxTurns int,
) *ContextAssembler {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &ContextAssembler{
		desks:    desks,
		history:  history,
		resolver: resolver,
		maxTurns: maxTurns,
	}
}

// Build assembles the model request for a query. The desk is validated
// before anything else so an empty desk never leaves side effects. Stored
// remote ids are re-resolved on every call; a handle the store no longer
// honors gets the document skipped, and only when every handle fails does
// the whole request fail.
func (a *ContextAssembler) Build(ctx context.Context, userID int64, query string) (*model.ModelRequest, error) {
	desk := a.desks.ActiveDocuments(userID)
	if len(desk) == 0 {
		return nil, ErrNoActiveDocuments
	}

	recent, err := a.history.Recent(ctx, userID, a.maxTurns)
	if err != nil {
		return nil, err
	}

	parts := make([]model.Part, 0, len(desk)+1)
	names := make([]string, 0, len(desk))
	for _, doc := range desk {
		ref, err := a.resolver.Resolve(ctx, doc.RemoteID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":      userID,
				"remote_id":    doc.RemoteID,
				"display_name": doc.DisplayName,
			}).WithError(err).Warn("document handle no longer resolves, skipping")
			continue
		}
		parts = append(parts, model.FilePart(*ref))
		names = append(names, doc.DisplayName)
	}
	if len(parts) == 0 {
		return nil, ErrNoResolvableDocuments
	}

	parts = append(parts, model.TextPart(composePrompt(names, recent, query)))
	return &model.ModelRequest{Parts: parts}, nil
}

func composePrompt(names []string, recent []model.Message, query string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an expert document analyst. You have been given %d document(s): %s.\n",
		len(names), strings.Join(names, ", "))
	sb.WriteString("Answer strictly from the content of the supplied documents. " +
		"When the question spans several documents, synthesize them into one coherent answer. " +
		"If the documents do not contain the information, say so plainly instead of guessing. " +
		"Keep a formal, analytical tone.\n")

	if len(recent) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, msg := range recent {
			label := "User"
			if msg.Role == model.RoleAssistant {
				label = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", label, msg.Content)
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(query)
	return sb.String()
}
