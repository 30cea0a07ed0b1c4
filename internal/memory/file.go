package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend stores turns as line-delimited JSON. The default session uses
// path itself; other sessions get a sibling file named <stem>.<session><ext>.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (f *FileBackend) Name() string { return "file" }

// fileLine accepts the legacy "content" key alongside "text".
type fileLine struct {
	Role    Role    `json:"role"`
	Text    *string `json:"text"`
	Content *string `json:"content"`
}

func (f *FileBackend) Read(_ context.Context, session string, limit int) ([]Turn, error) {
	file, err := os.Open(f.pathFor(session))
	if errors.Is(err, fs.ErrNotExist) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	turns := []Turn{}
	reader := bufio.NewReader(file)
	for {
		raw, err := reader.ReadBytes('\n')
		if line := bytes.TrimSpace(raw); len(line) > 0 {
			if turn, ok := decodeLine(line); ok {
				turns = append(turns, turn)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name(), err)
		}
	}

	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// decodeLine reports false for corrupt lines and unknown roles.
func decodeLine(line []byte) (Turn, bool) {
	var l fileLine
	if err := json.Unmarshal(line, &l); err != nil || !validRole(l.Role) {
		return Turn{}, false
	}
	switch {
	case l.Text != nil:
		return Turn{Role: l.Role, Text: *l.Text}, true
	case l.Content != nil:
		return Turn{Role: l.Role, Text: *l.Content}, true
	}
	return Turn{}, false
}

func (f *FileBackend) Write(_ context.Context, session string, turns ...Turn) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, t := range turns {
		if err := enc.Encode(t); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.pathFor(session), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *FileBackend) pathFor(session string) string {
	if session == "" || session == DefaultSession {
		return f.path
	}
	ext := filepath.Ext(f.path)
	stem := strings.TrimSuffix(f.path, ext)
	return stem + "." + encodeSession(session) + ext
}

// encodeSession keeps letters, digits, '-' and '_' and writes every other
// byte as %XX. The mapping is injective and never yields a path separator.
func encodeSession(session string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(session); i++ {
		c := session[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0x0F])
		}
	}
	return sb.String()
}
