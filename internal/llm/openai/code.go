package openai

import (
	"context"
	"fmt"
	"os"
	"time"

	"investment-chat/internal/llm"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
)

// RunCode uploads the file, runs the instruction through the code interpreter
// tool of the responses API and deletes the upload afterwards.
func (c *Client) RunCode(ctx context.Context, req llm.CodeRequest) (string, error) {
	fileID, err := c.uploadFile(ctx, req.FilePath)
	if err != nil {
		return "", err
	}
	defer c.deleteFile(fileID)

	started := time.Now()
	resp, err := c.api.Responses.New(ctx, responses.ResponseNewParams{
		Model: c.config.CodeModel,
		Input: responses.ResponseNewParamsInputUnion{OfString: sdk.String(req.Instruction)},
		Tools: []responses.ToolUnionParam{{
			OfCodeInterpreter: &responses.ToolCodeInterpreterParam{
				Container: responses.ToolCodeInterpreterContainerUnionParam{
					OfCodeInterpreterContainerAuto: &responses.ToolCodeInterpreterContainerCodeInterpreterContainerAutoParam{
						FileIDs: []string{fileID},
					},
				},
			},
		}},
	})
	if err = observe(ctx, "code_execution", started, err); err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("code_execution: %s", resp.Error.Message)
	}

	return resp.OutputText(), nil
}

// uploadFile sends the file under its base name; the SDK builds the multipart body.
func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()

	started := time.Now()
	file, err := c.api.Files.New(ctx, sdk.FileNewParams{
		File:    f,
		Purpose: sdk.FilePurposeAssistants,
	})
	if err = observe(ctx, "file_upload", started, err); err != nil {
		return "", err
	}
	if file.ID == "" {
		return "", fmt.Errorf("file_upload: response carried no file id")
	}
	return file.ID, nil
}

// deleteFile is best-effort and detached from the turn's deadline.
func (c *Client) deleteFile(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.api.Files.Delete(ctx, id); err != nil {
		c.logger.Warn("failed to delete uploaded file", map[string]interface{}{
			"fileId": id,
			"error":  err.Error(),
		})
	}
}
