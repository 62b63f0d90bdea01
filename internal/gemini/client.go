package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"docuchat/internal/model"
)

// IngestState mirrors the remote file store's processing state.
type IngestState int

const (
	StateProcessing IngestState = iota
	StateReady
	StateFailed
)

// ErrFileNotFound marks a remote_id that no longer resolves on the file
// store. Remote files expire on the service's own schedule, so callers must
// treat this as a per-document condition, not a fatal one.
var ErrFileNotFound = errors.New("remote file not found")

type GenerationParams struct {
	Temperature     float32
	MaxOutputTokens int32
}

// Client wraps the Gemini SDK behind the three capabilities the core needs:
// file ingestion, handle resolution and grounded generation.
type Client struct {
	inner  *genai.Client
	params GenerationParams
}

func NewClient(ctx context.Context, apiKey string, params GenerationParams) (*Client, error) {
	inner, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return &Client{inner: inner, params: params}, nil
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// Upload submits raw document bytes to the file store and returns the
// canonical remote id (the file name, "files/xxx" — never the URI) together
// with the initial processing state.
func (c *Client) Upload(ctx context.Context, r io.Reader, displayName string) (string, IngestState, error) {
	file, err := c.inner.UploadFile(ctx, "", r, &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    "application/pdf",
	})
	if err != nil {
		return "", StateFailed, fmt.Errorf("gemini upload failed: %w", err)
	}
	return file.Name, fromFileState(file.State), nil
}

// Status reports the current processing state of an uploaded file.
func (c *Client) Status(ctx context.Context, remoteID string) (IngestState, error) {
	file, err := c.inner.GetFile(ctx, remoteID)
	if err != nil {
		return StateFailed, fmt.Errorf("gemini file status failed: %w", err)
	}
	return fromFileState(file.State), nil
}

// Resolve turns a stored remote_id into a usable file reference. The handle
// is re-fetched on every call because the store may expire files while the
// local record lives on.
func (c *Client) Resolve(ctx context.Context, remoteID string) (*model.FileRef, error) {
	file, err := c.inner.GetFile(ctx, remoteID)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == 404 || gerr.Code == 403) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, remoteID)
		}
		return nil, fmt.Errorf("gemini resolve file failed: %w", err)
	}
	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("%w: %s is not active", ErrFileNotFound, remoteID)
	}
	return &model.FileRef{URI: file.URI, MIMEType: file.MIMEType}, nil
}

// Generate invokes one named model with the assembled request parts and
// returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, modelName string, req *model.ModelRequest) (string, error) {
	gm := c.inner.GenerativeModel(modelName)
	gm.SetTemperature(c.params.Temperature)
	if c.params.MaxOutputTokens > 0 {
		gm.SetMaxOutputTokens(c.params.MaxOutputTokens)
	}

	resp, err := gm.GenerateContent(ctx, toGenaiParts(req)...)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := collectText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text for model %s", modelName)
	}
	return text, nil
}

func fromFileState(state genai.FileState) IngestState {
	switch state {
	case genai.FileStateActive:
		return StateReady
	case genai.FileStateFailed:
		return StateFailed
	default:
		return StateProcessing
	}
}

func toGenaiParts(req *model.ModelRequest) []genai.Part {
	parts := make([]genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.FileURI != "" {
			parts = append(parts, genai.FileData{MIMEType: p.MIME, URI: p.FileURI})
			continue
		}
		parts = append(parts, genai.Text(p.Text))
	}
	return parts
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}
