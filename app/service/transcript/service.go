package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"salesbot/app/config"

	"github.com/samber/do"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9@._-]`)

// Service keeps one JSON-lines journal per chat.
type Service struct {
	dir string
	mu  sync.Mutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWithDir(filepath.Join(cfg.Data.Dir, "transcripts"))
}

func NewWithDir(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcripts dir: %w", err)
	}

	return &Service{dir: dir}, nil
}

func (s *Service) Append(chatID string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path(chatID), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	if _, err = file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	return nil
}

// Read returns all entries for chatID in write order. A chat without a
// transcript yields an empty slice.
func (s *Service) Read(chatID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Entry, 0)

	file, err := os.Open(s.path(chatID))
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err = json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}

		result = append(result, entry)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}

	return result, nil
}

func (s *Service) path(chatID string) string {
	return filepath.Join(s.dir, unsafeChars.ReplaceAllString(chatID, "_")+".jsonl")
}
