package detect

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Stats counts classification outcomes for one entity type.
type Stats struct {
	Attempts  int
	Hits      int
	CacheHits int
	Methods   map[Method]int
}

// Classifier runs strategy tables against a document or subtree. It owns
// its selector cache and statistics explicitly so that several
// classifiers can coexist without shared module state.
type Classifier struct {
	tables map[string]*Table
	cache  Cache
	logger *slog.Logger

	mu    sync.Mutex
	stats map[string]*Stats
}

func NewClassifier(tables map[string]*Table, cache Cache, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Classifier{
		tables: tables,
		cache:  cache,
		logger: logger,
		stats:  map[string]*Stats{},
	}
}

// Classify looks up the strategy table registered for the entity type and
// runs it against scope, using the entity type as cache key.
func (c *Classifier) Classify(entity string, scope *goquery.Selection) Result {
	table, ok := c.tables[entity]
	if !ok {
		c.logger.Warn("no strategy table for entity", slog.String("entity", entity))
		return noneResult()
	}
	return c.ClassifyTable(table, entity, scope)
}

// ClassifyTable runs one strategy table against scope. The cached
// selector for cacheKey is tried first; on a fresh success the winning
// selector is written back to the cache. A classification that matches
// nothing is a normal result with method "none", never an error.
func (c *Classifier) ClassifyTable(table *Table, cacheKey string, scope *goquery.Selection) Result {
	c.countAttempt(cacheKey)

	if entry, ok := c.cache.Get(cacheKey); ok {
		sel := c.find(scope, entry.Selector)
		if entry.Method == MethodTextPattern {
			sel = c.textMatches(table, sel)
		}
		if sel != nil && sel.Length() > 0 {
			res := Result{
				Elements:   sel,
				Confidence: 1.0,
				Method:     entry.Method,
				Selector:   entry.Selector,
				Cached:     true,
				Timestamp:  time.Now(),
			}
			c.countHit(cacheKey, res)
			return res
		}
		// The page markup moved on, the stale entry is simply ignored
		// until the full search overwrites it.
		c.logger.Debug("cached selector no longer matches",
			slog.String("entity", cacheKey), slog.String("selector", entry.Selector))
	}

	for _, strat := range table.Strategies {
		sel := c.find(scope, strat.Selector)
		if sel == nil || sel.Length() == 0 {
			continue
		}
		res := Result{
			Elements:   sel,
			Confidence: strat.Method.Confidence(),
			Method:     strat.Method,
			Selector:   strat.Selector,
			Timestamp:  time.Now(),
		}
		c.remember(CacheEntry{Entity: cacheKey, Selector: strat.Selector, Method: strat.Method})
		c.countHit(cacheKey, res)
		c.logger.Debug("strategy matched",
			slog.String("entity", cacheKey),
			slog.String("strategy", strat.Name),
			slog.Int("elements", sel.Length()))
		return res
	}

	if res, ok := c.classifyByText(table, cacheKey, scope); ok {
		c.countHit(cacheKey, res)
		return res
	}

	return noneResult()
}

// classifyByText is the content-pattern fallback: elements matched by the
// broad fallback selector whose trimmed text matches the table's pattern
// and stays under the length ceiling. A success caches the fallback
// selector; replay re-applies the text filter so the cached path yields
// the same element set.
func (c *Classifier) classifyByText(table *Table, cacheKey string, scope *goquery.Selection) (Result, bool) {
	if table.textRe == nil || table.FallbackSelector == "" {
		return Result{}, false
	}
	matched := c.textMatches(table, c.find(scope, table.FallbackSelector))
	if matched == nil || matched.Length() == 0 {
		return Result{}, false
	}
	c.remember(CacheEntry{Entity: cacheKey, Selector: table.FallbackSelector, Method: MethodTextPattern})
	return Result{
		Elements:   matched,
		Confidence: MethodTextPattern.Confidence(),
		Method:     MethodTextPattern,
		Selector:   table.FallbackSelector,
		Timestamp:  time.Now(),
	}, true
}

// textMatches narrows candidates to those whose own trimmed text matches
// the table's pattern under the length ceiling.
func (c *Classifier) textMatches(table *Table, candidates *goquery.Selection) *goquery.Selection {
	if table.textRe == nil || candidates == nil {
		return nil
	}
	return candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(ownText(s))
		return text != "" && len(text) <= table.MaxTextLen && table.textRe.MatchString(text)
	})
}

// ownText concatenates the direct child text nodes of an element,
// skipping nested elements. A wrapper only matches the text pattern if
// the text sits in the wrapper itself.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				b.WriteString(child.Data)
			}
		}
	}
	return b.String()
}

// find evaluates a selector defensively: an invalid selector is logged
// and treated as a miss instead of panicking inside goquery.
func (c *Classifier) find(scope *goquery.Selection, selector string) *goquery.Selection {
	m, err := cascadia.Compile(selector)
	if err != nil {
		c.logger.Warn("invalid selector", slog.String("selector", selector), slog.String("err", err.Error()))
		return nil
	}
	return scope.FindMatcher(m)
}

func (c *Classifier) remember(entry CacheEntry) {
	if err := c.cache.Put(entry); err != nil {
		c.logger.Warn("selector cache write failed",
			slog.String("entity", entry.Entity), slog.String("err", err.Error()))
	}
}

func (c *Classifier) countAttempt(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entityStats(entity).Attempts++
}

func (c *Classifier) countHit(entity string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.entityStats(entity)
	st.Hits++
	if res.Cached {
		st.CacheHits++
	}
	st.Methods[res.Method]++
}

func (c *Classifier) entityStats(entity string) *Stats {
	st, ok := c.stats[entity]
	if !ok {
		st = &Stats{Methods: map[Method]int{}}
		c.stats[entity] = st
	}
	return st
}

// Stats returns a copy of the per-entity counters.
func (c *Classifier) Stats() map[string]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Stats, len(c.stats))
	for k, v := range c.stats {
		methods := make(map[Method]int, len(v.Methods))
		for m, n := range v.Methods {
			methods[m] = n
		}
		out[k] = Stats{Attempts: v.Attempts, Hits: v.Hits, CacheHits: v.CacheHits, Methods: methods}
	}
	return out
}
