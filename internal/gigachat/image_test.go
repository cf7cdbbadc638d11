package gigachat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/greeting-personalizer/internal/llm"
)

const fileID = "0f3c5a1e-8d2b-4c6f-9a7e-1b2c3d4e5f60"

func TestGenerateImage_FunctionCallFileID(t *testing.T) {
	f := &fakeAPI{
		reply: replyMessage{
			Role:         "function",
			FunctionCall: &functionCall{Name: "text2image", Arguments: json.RawMessage(`{"file_id":"` + fileID + `"}`)},
		},
		files: map[string][]byte{fileID: []byte("jpeg-bytes")},
	}
	c := newTestClient(t, f)

	images, err := c.GenerateImage(context.Background(), llm.ImageRequest{
		Prompt:         "новогодняя елка, снежинки",
		NegativePrompt: "текст, надписи",
		Count:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("jpeg-bytes"), []byte("jpeg-bytes")}, images)
	assert.Equal(t, int32(2), f.chatCalls.Load())

	assert.Equal(t, "auto", f.lastChat.FunctionCall)
	prompt := f.lastChat.Messages[0].Content
	assert.True(t, strings.HasPrefix(prompt, "Нарисуй новогодняя елка, снежинки."))
	assert.True(t, strings.HasSuffix(prompt, " Строго исключи: текст, надписи"))
}

func TestGenerateImage_ImgTag(t *testing.T) {
	f := &fakeAPI{
		reply: replyMessage{Content: `Готово! <img src="` + fileID + `" fuse="true"/>`},
		files: map[string][]byte{fileID: []byte("png")},
	}
	images, err := newTestClient(t, f).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "цветы"})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("png")}, images)
	assert.NotContains(t, f.lastChat.Messages[0].Content, "Строго исключи")
}

func TestGenerateImage_InlineData(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("inline"))
	f := &fakeAPI{reply: replyMessage{Content: "data:image/png;base64," + payload}}

	images, err := newTestClient(t, f).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("inline")}, images)
}

func TestGenerateImage_NoImage(t *testing.T) {
	f := &fakeAPI{reply: replyMessage{Content: "Я не могу нарисовать это изображение."}}
	_, err := newTestClient(t, f).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "x"})
	assert.True(t, errors.Is(err, ErrNoImage))
}

func TestGenerateImage_MissingFile(t *testing.T) {
	f := &fakeAPI{reply: replyMessage{Attachments: []attachment{{FileID: fileID}}}}
	_, err := newTestClient(t, f).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "x"})
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
}

func TestFileIDFromReply_Priority(t *testing.T) {
	other := "11111111-2222-3333-4444-555555555555"

	tests := []struct {
		name string
		msg  replyMessage
		want string
	}{
		{
			name: "arguments win over attachments",
			msg: replyMessage{
				FunctionCall: &functionCall{Arguments: json.RawMessage(`{"file_id":"from-args"}`)},
				Attachments:  []attachment{{FileID: "from-attachment"}},
			},
			want: "from-args",
		},
		{
			name: "arguments encoded as a string",
			msg:  replyMessage{FunctionCall: &functionCall{Arguments: json.RawMessage(`"{\"fileId\":\"abc\"}"`)}},
			want: "abc",
		},
		{
			name: "attachment id",
			msg:  replyMessage{Attachments: []attachment{{ID: "att-id"}}, Content: other},
			want: "att-id",
		},
		{
			name: "img tag before bare uuid",
			msg:  replyMessage{Content: other + ` <img src="` + fileID + `"/>`},
			want: fileID,
		},
		{
			name: "bare uuid",
			msg:  replyMessage{Content: "Файл: " + other},
			want: other,
		},
		{
			name: "nothing",
			msg:  replyMessage{Content: "описание картинки"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileIDFromReply(&tt.msg))
		})
	}
}
