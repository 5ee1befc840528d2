package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"crewflow/internal/database"

	"github.com/go-resty/resty/v2"
)

// Gateway is the outbound surface the bot and the notifier depend on.
// *Client implements it; tests use fakes.
type Gateway interface {
	SendText(ctx context.Context, chatId int64, text string) error

	SendMenu(ctx context.Context, chatId int64, text string, keyboard [][]Button) error

	SendFile(ctx context.Context, chatId int64, fileId, kind string) error

	SendFileGroup(ctx context.Context, chatId int64, items []FileItem, caption string) error

	AnswerCallback(ctx context.Context, callbackId string) error
}

const defaultAPIHost = "https://api.telegram.org"

type Client struct {
	client *resty.Client
}

func NewClient(token string) *Client {
	return NewClientWithHost(defaultAPIHost, token)
}

// NewClientWithHost exists so tests can point the client at an httptest
// server.
func NewClientWithHost(host, token string) *Client {
	return &Client{
		client: resty.New().SetBaseURL(fmt.Sprintf("%s/bot%s", host, token)),
	}
}

func (c *Client) call(ctx context.Context, method string, body map[string]any, result any) error {
	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := c.client.R().
		SetContext(callCtx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/" + method)

	if err != nil {
		slog.Error("unable to reach telegram api", "method", method, "error", err)
		return fmt.Errorf("error calling telegram %s: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		slog.Error("error parsing telegram response", "method", method, "error", err)
		return fmt.Errorf("error parsing telegram %s response: %w", method, err)
	}

	if !res.IsSuccess() || !envelope.Ok {
		slog.Error("telegram api returned error", "method", method, "status_code", res.StatusCode(), "description", envelope.Description)
		return fmt.Errorf("telegram %s failed: %s", method, envelope.Description)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("error parsing telegram %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) SendText(ctx context.Context, chatId int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatId,
		"text":    text,
	}, nil)
}

func (c *Client) SendMenu(ctx context.Context, chatId int64, text string, keyboard [][]Button) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatId,
		"text":         text,
		"reply_markup": map[string]any{"inline_keyboard": keyboard},
	}, nil)
}

func (c *Client) SendFile(ctx context.Context, chatId int64, fileId, kind string) error {
	return c.sendSingle(ctx, chatId, fileId, kind, "")
}

func (c *Client) sendSingle(ctx context.Context, chatId int64, fileId, kind, caption string) error {
	var method, field string
	switch kind {
	case database.FilePhoto:
		method, field = "sendPhoto", "photo"
	case database.FileVideo:
		method, field = "sendVideo", "video"
	default:
		method, field = "sendDocument", "document"
	}

	body := map[string]any{
		"chat_id": chatId,
		field:     fileId,
	}
	if caption != "" {
		body["caption"] = caption
	}
	return c.call(ctx, method, body, nil)
}

// SendFileGroup batches photos and videos into one sendMediaGroup call
// with the caption on the first item. A single photo or video is sent
// directly, carrying the caption itself. Documents cannot be mixed into
// a photo/video album, so they are relayed individually.
func (c *Client) SendFileGroup(ctx context.Context, chatId int64, items []FileItem, caption string) error {
	var grouped []FileItem
	var documents []FileItem

	for _, item := range items {
		switch item.Kind {
		case database.FilePhoto, database.FileVideo:
			grouped = append(grouped, item)
		default:
			documents = append(documents, item)
		}
	}

	switch {
	case len(grouped) == 1:
		if err := c.sendSingle(ctx, chatId, grouped[0].FileId, grouped[0].Kind, caption); err != nil {
			return err
		}
	case len(grouped) > 1:
		media := make([]map[string]any, 0, len(grouped))
		for i, item := range grouped {
			entry := map[string]any{"type": item.Kind, "media": item.FileId}
			if i == 0 && caption != "" {
				entry["caption"] = caption
			}
			media = append(media, entry)
		}
		if err := c.call(ctx, "sendMediaGroup", map[string]any{
			"chat_id": chatId,
			"media":   media,
		}, nil); err != nil {
			return err
		}
	case caption != "":
		if err := c.SendText(ctx, chatId, caption); err != nil {
			return err
		}
	}

	for _, doc := range documents {
		if err := c.SendFile(ctx, chatId, doc.FileId, doc.Kind); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackId string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackId,
	}, nil)
}

// Updates long-polls getUpdates. The server holds the request up to
// timeout seconds; the http timeout is padded accordingly.
func (c *Client) Updates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout+10)*time.Second)
	defer cancel()

	res, err := c.client.R().
		SetContext(callCtx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"offset":  offset,
			"timeout": timeout,
		}).
		Post("/getUpdates")

	if err != nil {
		return nil, fmt.Errorf("error calling telegram getUpdates: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("error parsing telegram getUpdates response: %w", err)
	}
	if !res.IsSuccess() || !envelope.Ok {
		return nil, fmt.Errorf("telegram getUpdates failed: %s", envelope.Description)
	}

	var updates []Update
	if err := json.Unmarshal(envelope.Result, &updates); err != nil {
		return nil, fmt.Errorf("error parsing telegram updates: %w", err)
	}
	return updates, nil
}
