package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pavelanni/k5assist/internal/model"
)

// Stream yields completion text incrementally.
//
//	s, err := client.StreamCompletion(ctx, req)
//	...
//	defer s.Close()
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	provider string
	body     io.ReadCloser
	reader   *bufio.Reader
	cancel   context.CancelFunc

	pending []string
	text    string
	err     error
	done    bool
}

// newLineStream reads newline-delimited JSON events from body.
func newLineStream(provider string, body io.ReadCloser) *Stream {
	return &Stream{provider: provider, body: body, reader: bufio.NewReader(body)}
}

// newChunkStream yields content as one chunk, or nothing if it is empty.
func newChunkStream(content string) *Stream {
	s := &Stream{}
	if content != "" {
		s.pending = []string{content}
	}
	return s
}

// Next advances to the next non-empty chunk. It returns false at the end of
// the stream or on error; check Err afterwards.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if len(s.pending) > 0 {
		s.text = s.pending[0]
		s.pending = s.pending[1:]
		return true
	}
	if s.reader == nil {
		s.finish()
		return false
	}

	for {
		line, err := s.reader.ReadString('\n')
		if chunk, ok := decodeEvent(line); ok {
			s.text = chunk
			return true
		}
		if err != nil {
			if err != io.EOF {
				s.err = &model.TransportError{Provider: s.provider, Err: err}
			}
			s.finish()
			return false
		}
	}
}

// Text returns the chunk produced by the last successful Next.
func (s *Stream) Text() string {
	return s.text
}

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the underlying connection. It is safe to call more than
// once.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

// Collect drains the stream, calling onChunk for every chunk, and returns
// the concatenated text. A non-nil error from onChunk stops the stream.
func (s *Stream) Collect(onChunk func(string) error) (string, error) {
	defer s.Close()

	var sb strings.Builder
	for s.Next() {
		chunk := s.Text()
		sb.WriteString(chunk)
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return sb.String(), err
			}
		}
	}
	return sb.String(), s.Err()
}

func (s *Stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.text = ""
	if s.body != nil {
		s.body.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// decodeEvent extracts the text of one streamed event. Blank or malformed
// lines and events without text report false.
func decodeEvent(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	var ev ollamaGenerateResponse
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return "", false
	}
	return ev.Response, ev.Response != ""
}
