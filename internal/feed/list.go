package feed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// List is the feeds.yaml document polled by the poll command.
type List struct {
	Feeds []Source `yaml:"feeds"`
}

type Source struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	// Disabled feeds stay in the file but are not polled.
	Disabled bool `yaml:"disabled"`
}

func LoadList(path string) (*List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed list: %w", err)
	}
	return ParseList(raw)
}

func ParseList(raw []byte) (*List, error) {
	var list List
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse feed list: %w", err)
	}
	for i, source := range list.Feeds {
		if strings.TrimSpace(source.URL) == "" {
			return nil, fmt.Errorf("feed list entry %d has no url", i+1)
		}
	}
	return &list, nil
}

// URLs returns the enabled feed URLs without duplicates, in file order.
func (l *List) URLs() []string {
	if l == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(l.Feeds))
	out := make([]string, 0, len(l.Feeds))
	for _, source := range l.Feeds {
		if source.Disabled {
			continue
		}
		url := strings.TrimSpace(source.URL)
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		out = append(out, url)
	}
	return out
}
