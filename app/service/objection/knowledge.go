package objection

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/elliotchance/pie/v2"
	"gopkg.in/yaml.v3"
)

type Entry struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

type KnowledgeBase struct {
	Entries []Entry `yaml:"entries"`
}

func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var kb KnowledgeBase
	if err = yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	for i := range kb.Entries {
		kb.Entries[i].Keywords = pie.Map(kb.Entries[i].Keywords, normalize)
	}

	return &kb, nil
}

type scored struct {
	entry Entry
	score int
}

// Retrieve returns up to k entries sharing at least one keyword with text,
// best match first.
func (kb *KnowledgeBase) Retrieve(text string, k int) []Entry {
	text = normalize(text)

	matches := make([]scored, 0)
	for _, e := range kb.Entries {
		score := len(pie.Filter(e.Keywords, func(kw string) bool {
			return kw != "" && strings.Contains(text, kw)
		}))
		if score > 0 {
			matches = append(matches, scored{entry: e, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}

	return pie.Map(matches, func(s scored) Entry {
		return s.entry
	})
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}
