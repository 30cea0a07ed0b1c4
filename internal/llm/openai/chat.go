package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"investment-chat/internal/common/validation"
	"investment-chat/internal/llm"

	sdk "github.com/openai/openai-go"
)

// Chat calls /chat/completions.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    c.config.ChatModel,
		Messages: toChatMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	for _, t := range req.Tools {
		fn := sdk.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: toParameters(t.Parameters),
		}
		if t.Description != "" {
			fn.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, sdk.ChatCompletionToolParam{Function: fn})
	}
	if len(params.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: sdk.String(string(req.ToolChoice)),
		}
	}

	started := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err = observe(ctx, "chat", started, err); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat: response contained no choices")
	}

	msg := resp.Choices[0].Message
	out := &llm.ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	c.logger.Debug("chat completion received", map[string]interface{}{
		"model":     c.config.ChatModel,
		"toolCalls": len(out.ToolCalls),
		"latencyMs": time.Since(started).Milliseconds(),
	})
	return out, nil
}

func toChatMessages(messages []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case llm.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case llm.RoleTool:
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		case llm.RoleAssistant:
			assistant := sdk.ChatCompletionAssistantMessageParam{}
			// Content is left out when the message only carries tool calls.
			if m.Content != "" || len(m.ToolCalls) == 0 {
				assistant.Content.OfString = sdk.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, sdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

// toParameters converts a schema into the loose map the SDK declares tools with.
func toParameters(schema validation.JSONSchema) sdk.FunctionParameters {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var params sdk.FunctionParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return nil
	}
	return params
}
