// Package gemini implements the llm contracts over google.golang.org/genai.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/metrics"
	"investment-chat/internal/common/validation"
	"investment-chat/internal/llm"

	"google.golang.org/genai"
)

type Config struct {
	APIKey         string
	ChatModel      string
	CodeModel      string
	EmbeddingModel string
	// BaseURL overrides the API endpoint; empty uses the public Gemini API.
	BaseURL string
}

type Client struct {
	client *genai.Client
	config Config
	logger logger.Logger
}

func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.5-flash"
	}
	if cfg.CodeModel == "" {
		cfg.CodeModel = "gemini-2.5-pro"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
		logger: log.With(map[string]interface{}{"provider": "gemini"}),
	}, nil
}

// Chat calls GenerateContent with function declarations.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	contents, system := toContents(req.Messages)

	config := &genai.GenerateContentConfig{SystemInstruction: system}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		if req.ToolChoice == llm.ToolChoiceAuto {
			config.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
			}
		}
	}

	started := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.ChatModel, contents, config)
	if err = observe(ctx, "chat", started, err); err != nil {
		return nil, err
	}

	out := &llm.ChatResponse{Content: resp.Text()}
	for i, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("chat: encode function args: %w", err)
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: id, Name: fc.Name, Arguments: string(args)})
	}
	return out, nil
}

// RunCode uploads the file and asks the code model to answer with code execution enabled.
func (c *Client) RunCode(ctx context.Context, req llm.CodeRequest) (string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()

	started := time.Now()
	file, err := c.client.Files.Upload(ctx, f, &genai.UploadFileConfig{MIMEType: "text/plain"})
	if err = observe(ctx, "file_upload", started, err); err != nil {
		return "", err
	}
	defer c.deleteFile(file.Name)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{CodeExecution: &genai.ToolCodeExecution{}}},
	}

	started = time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.CodeModel, contents, config)
	if err = observe(ctx, "code_execution", started, err); err != nil {
		return "", err
	}
	return codeOutput(resp), nil
}

func (c *Client) deleteFile(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.client.Files.Delete(ctx, name, nil); err != nil {
		c.logger.Warn("failed to delete uploaded file", map[string]interface{}{
			"file":  name,
			"error": err.Error(),
		})
	}
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch uses the native batch support of EmbedContent.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	started := time.Now()
	result, err := c.client.Models.EmbedContent(ctx, c.config.EmbeddingModel, contents,
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
	if err = observe(ctx, "embedding", started, err); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d vectors, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (c *Client) Name() string {
	return "genai:" + c.config.EmbeddingModel
}

func observe(ctx context.Context, service string, started time.Time, err error) error {
	metrics.ExternalCallDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", llm.ErrTimeout, service, err)
	}
	return fmt.Errorf("%s: %w", service, err)
}

// toContents maps the transcript onto genai contents. System messages become
// the system instruction; tool results are function responses from the user side.
func toContents(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
		case llm.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case llm.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				part := genai.NewPartFromFunctionCall(tc.Name, args)
				part.FunctionCall.ID = tc.ID
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case llm.RoleTool:
			part := genai.NewPartFromFunctionResponse(m.Name, map[string]any{"output": m.Content})
			part.FunctionResponse.ID = m.ToolCallID
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}
	return contents, system
}

func toSchema(s validation.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Type:     genai.Type(strings.ToUpper(s.Type)),
		Required: s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = propertySchema(p)
		}
	}
	return out
}

func propertySchema(p validation.Property) *genai.Schema {
	s := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(p.Type)),
		Description: p.Description,
		Enum:        p.Enum,
		Required:    p.Required,
	}
	if p.Items != nil {
		s.Items = propertySchema(*p.Items)
	}
	if len(p.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for name, child := range p.Properties {
			s.Properties[name] = propertySchema(child)
		}
	}
	return s
}

// codeOutput renders text, executed code and its results in response order.
func codeOutput(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.Text != "":
			sb.WriteString(part.Text)
		case part.ExecutableCode != nil:
			sb.WriteString("\n```python\n")
			sb.WriteString(part.ExecutableCode.Code)
			sb.WriteString("\n```\n")
		case part.CodeExecutionResult != nil && part.CodeExecutionResult.Output != "":
			sb.WriteString("\n```\n")
			sb.WriteString(part.CodeExecutionResult.Output)
			sb.WriteString("\n```\n")
		}
	}
	return sb.String()
}

var (
	_ llm.ChatModel  = (*Client)(nil)
	_ llm.CodeRunner = (*Client)(nil)
	_ llm.Embedder   = (*Client)(nil)
)
