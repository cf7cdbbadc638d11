package gigachat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/prompts"
)

var (
	uuidPattern    = regexp.MustCompile(`(?i)[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}`)
	dataURIPattern = regexp.MustCompile(`(?i)data:image/[^;]+;base64,([A-Za-z0-9+/=]+)`)
)

// ErrNoImage is returned when a reply carries neither a file id nor inline
// image data. GigaChat answers with a plain description when it declines to
// draw.
var ErrNoImage = errors.New("gigachat reply contains no image")

// GenerateImage asks the model to draw req.Count images, one chat call per
// image, and downloads each produced file.
func (c *Client) GenerateImage(ctx context.Context, req llm.ImageRequest) ([][]byte, error) {
	req = req.WithDefaults()
	prompt, err := drawPrompt(req)
	if err != nil {
		return nil, err
	}

	images := make([][]byte, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		img, err := c.drawOnce(ctx, prompt)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func drawPrompt(req llm.ImageRequest) (string, error) {
	tmpl, err := prompts.Get(prompts.ImageFile, "gigachat-draw")
	if err != nil {
		return "", err
	}
	prompt := prompts.Format(tmpl, map[string]string{"Prompt": req.Prompt})

	if negative := strings.TrimSpace(req.NegativePrompt); negative != "" {
		exclude, err := prompts.Get(prompts.ImageFile, "gigachat-draw-exclude")
		if err != nil {
			return "", err
		}
		prompt += prompts.Format(exclude, map[string]string{"Negative": negative})
	}
	return prompt, nil
}

func (c *Client) drawOnce(ctx context.Context, prompt string) ([]byte, error) {
	msg, err := c.chat(ctx, chatRequest{
		Model:        c.GetModel(llm.TierStandard),
		Messages:     []chatMessage{{Role: "user", Content: prompt}},
		FunctionCall: "auto",
	})
	if err != nil {
		return nil, err
	}

	if id := fileIDFromReply(msg); id != "" {
		c.logger.Debug("gigachat image ready", zap.String("file_id", id))
		return c.downloadFile(ctx, id)
	}
	if m := dataURIPattern.FindStringSubmatch(msg.Content); m != nil {
		img, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline image: %w", err)
		}
		return img, nil
	}

	preview := msg.Content
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return nil, fmt.Errorf("%w: %q", ErrNoImage, preview)
}

// fileIDFromReply looks for the generated file id in the function call
// arguments, then attachments, then an <img src> tag, then any UUID in the
// content.
func fileIDFromReply(msg *replyMessage) string {
	if msg.FunctionCall != nil {
		if id := fileIDFromArguments(msg.FunctionCall.Arguments); id != "" {
			return id
		}
	}

	for _, a := range msg.Attachments {
		if a.FileID != "" {
			return a.FileID
		}
		if a.ID != "" {
			return a.ID
		}
	}

	if id := imgSource(msg.Content); id != "" {
		return id
	}
	return uuidPattern.FindString(msg.Content)
}

// fileIDFromArguments accepts arguments as a JSON object or as a JSON string
// holding an object.
func fileIDFromArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return ""
		}
		if err := json.Unmarshal([]byte(encoded), &args); err != nil {
			return uuidPattern.FindString(encoded)
		}
	}

	for _, key := range []string{"file_id", "fileId", "id", "image_id"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func imgSource(content string) string {
	if !strings.Contains(content, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src = strings.TrimSpace(s.AttrOr("src", ""))
		return src == ""
	})
	return src
}

func (c *Client) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	data, err := c.call(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", "application/jpg", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download image %s: %w", fileID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", fileID)
	}
	return data, nil
}
