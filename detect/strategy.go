package detect

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Entity type keys. They double as selector cache keys.
const (
	EntityMessageContainers = "messageContainers"
	EntityTimestampElements = "timestampElements"
	EntityReelElements      = "reelElements"
	EntityLoadMoreControls  = "loadMoreControls"
)

// Strategy is one named way of locating elements of an entity type.
type Strategy struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
	Method   Method `yaml:"method"`
}

// Table is the ordered strategy list for one entity type, highest
// specificity first, plus an optional text-pattern fallback that is
// consulted when no structural strategy matches.
type Table struct {
	Entity     string     `yaml:"entity"`
	Strategies []Strategy `yaml:"strategies"`
	// TextPattern is a regex applied to the trimmed text of elements
	// matched by FallbackSelector.
	TextPattern      string `yaml:"text_pattern"`
	FallbackSelector string `yaml:"fallback_selector"`
	// MaxTextLen rejects text-pattern candidates whose text exceeds this
	// length. Large containers tend to contain a matching substring
	// somewhere, so a missing value defaults to 30.
	MaxTextLen int `yaml:"max_text_len"`

	textRe *regexp.Regexp
}

const defaultMaxTextLen = 30

func (t *Table) compile() error {
	if t.MaxTextLen <= 0 {
		t.MaxTextLen = defaultMaxTextLen
	}
	if t.TextPattern == "" {
		return nil
	}
	re, err := regexp.Compile(t.TextPattern)
	if err != nil {
		return fmt.Errorf("entity %s: compiling text pattern: %w", t.Entity, err)
	}
	t.textRe = re
	return nil
}

// DefaultTables returns the built-in strategy tables for the DM view.
// The selectors follow the priority ladder: exact semantic attributes
// first, then ARIA labels, generic attributes, class substrings, tag
// structure and finally a broad fallback.
func DefaultTables() map[string]*Table {
	tables := map[string]*Table{
		EntityMessageContainers: {
			Entity: EntityMessageContainers,
			Strategies: []Strategy{
				{Name: "dm message row", Selector: `div[data-testid="message-bubble"]`, Method: MethodInstagram},
				{Name: "message testid", Selector: `[data-testid*="message"]`, Method: MethodTestID},
				{Name: "message aria", Selector: `div[aria-label*="essage"]`, Method: MethodAriaLabel},
				{Name: "chat row role", Selector: `div[role="row"]`, Method: MethodAttribute},
				{Name: "message class", Selector: `div[class*="message"], div[class*="bubble"]`, Method: MethodClass},
				{Name: "list row structure", Selector: `div[role="grid"] > div > div`, Method: MethodStructure},
				{Name: "broad rows", Selector: `div[role="row"], div[role="listitem"]`, Method: MethodFallback},
			},
		},
		EntityTimestampElements: {
			Entity: EntityTimestampElements,
			Strategies: []Strategy{
				{Name: "time tag", Selector: `time[datetime]`, Method: MethodInstagram},
				{Name: "timestamp testid", Selector: `[data-testid*="timestamp"]`, Method: MethodTestID},
				{Name: "time aria", Selector: `span[aria-label*=":"], abbr[aria-label]`, Method: MethodAriaLabel},
				{Name: "title attr", Selector: `span[title], abbr[title]`, Method: MethodAttribute},
				{Name: "timestamp class", Selector: `span[class*="time"], div[class*="timestamp"]`, Method: MethodClass},
			},
			// Relative ("2h", "3w"), clock ("4:12 PM") and day-month forms.
			TextPattern:      `^(\d+\s?[smhdw]|\d{1,2}:\d{2}(\s?[AP]M)?|[A-Z][a-z]{2,8} \d{1,2}(, \d{4})?.*)$`,
			FallbackSelector: `span, abbr`,
		},
		EntityReelElements: {
			Entity: EntityReelElements,
			Strategies: []Strategy{
				{Name: "reel link", Selector: `a[href*="/reel/"], a[href*="/reels/"]`, Method: MethodInstagram},
				{Name: "media testid", Selector: `[data-testid*="media"], [data-testid*="reel"], [data-testid*="video"]`, Method: MethodTestID},
				{Name: "reel aria", Selector: `[aria-label*="Reel"], [aria-label*="video"]`, Method: MethodAriaLabel},
				{Name: "video poster", Selector: `video[poster], video[src]`, Method: MethodAttribute},
				{Name: "clip class", Selector: `div[class*="reel"], div[class*="clip"], div[class*="video"]`, Method: MethodClass},
				{Name: "media structure", Selector: `div[role="button"] video, div[role="button"] img`, Method: MethodStructure},
			},
			TextPattern:      `(?i)(shared a reel|sent a reel|shared a video)`,
			FallbackSelector: `div[role="button"], span`,
		},
		EntityLoadMoreControls: {
			Entity: EntityLoadMoreControls,
			Strategies: []Strategy{
				{Name: "load more testid", Selector: `[data-testid*="load"], [data-testid*="more"]`, Method: MethodTestID},
				{Name: "load more aria", Selector: `[aria-label*="Load"], [aria-label*="older"]`, Method: MethodAriaLabel},
				{Name: "loading spinner", Selector: `[data-visualcompletion="loading-state"]`, Method: MethodAttribute},
				{Name: "load more class", Selector: `div[class*="loadMore"], button[class*="load"]`, Method: MethodClass},
			},
			TextPattern:      `(?i)(load (older|more)|see (older|more) messages)`,
			FallbackSelector: `button, div[role="button"]`,
		},
	}
	for _, t := range tables {
		// built-ins are static, the patterns always compile
		_ = t.compile()
	}
	return tables
}

// LoadTables reads strategy tables from a yaml file and overlays them on
// the built-in defaults, so a table file only needs to list the entity
// types whose markup drifted.
func LoadTables(path string) (map[string]*Table, error) {
	tables := DefaultTables()
	if path == "" {
		return tables, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy file: %w", err)
	}
	var file struct {
		Tables []*Table `yaml:"tables"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing strategy file: %w", err)
	}
	for _, t := range file.Tables {
		if err := t.compile(); err != nil {
			return nil, err
		}
		tables[t.Entity] = t
	}
	return tables, nil
}
