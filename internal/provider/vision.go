package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// ocrPrompt 要求视觉模型把图片内容转成可检索的文本
const ocrPrompt = "请提取图片中的全部文字内容，保留原有的段落与表格结构，以 Markdown 输出。" +
	"如果图片不含文字，请简要描述图片内容。只输出提取结果，不要附加说明。"

// openaiVision 基于 OpenAI 兼容多模态模型的图片文字提取
type openaiVision struct {
	chatModel ecomodel.ChatModel
}

func newOpenAIVision(ctx context.Context, pc config.ProviderConfig, modelName string) (Vision, error) {
	timeout := time.Duration(pc.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   modelName,
		Timeout: timeout,
	})
	if err != nil {
		return nil, kberrors.Wrap(kberrors.KindConfiguration, err)
	}
	return &openaiVision{chatModel: chatModel}, nil
}

// ExtractText 将图片交给视觉模型做 OCR，返回 Markdown 文本
func (v *openaiVision) ExtractText(ctx context.Context, visionModel, mimeType string, data []byte) (string, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	messages := []*schema.Message{
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type: schema.ChatMessagePartTypeText,
					Text: ocrPrompt,
				},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL: dataURI,
					},
				},
			},
		},
	}

	resp, err := v.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindVision, err)
	}
	if resp.Content == "" {
		return "", kberrors.New(kberrors.KindVision, "vision model %s returned empty content", visionModel)
	}
	return resp.Content, nil
}

var _ Vision = (*openaiVision)(nil)
