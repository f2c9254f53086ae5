// Package faq searches the bilingual FAQ corpus and tracks helpfulness votes.
package faq

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/background"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

const (
	minimumQueryRunes    = 2
	defaultSearchTimeout = 3 * time.Second

	scoreQuestionMatch = 100
	scoreAnswerMatch   = 50
	scoreCategoryMatch = 40
	scoreKeywordMatch  = 30
	scoreTokenMatch    = 10

	backgroundTaskVote = "forward_faq_vote"

	logEventRemoteSearchFailed = "faq_remote_search_failed"
	logEventRemoteSearchEmpty  = "faq_remote_search_empty"
	logFieldQuery              = "query"
)

var (
	ErrInvalidVoteKind = errors.New("invalid_vote_kind")
	ErrUnknownEntry    = errors.New("unknown_faq_entry")
)

// RemoteSearcher is the backend FAQ search.
type RemoteSearcher interface {
	SearchFAQ(ctx context.Context, query string, limit int) ([]gateway.FAQRecord, error)
}

// VoteForwarder is the backend vote sink.
type VoteForwarder interface {
	VoteFAQ(ctx context.Context, faqID string, voteType string) error
}

type Options struct {
	Corpus        []Entry
	Remote        RemoteSearcher
	Forwarder     VoteForwarder
	Dispatcher    *background.Dispatcher
	SearchTimeout time.Duration
	Logger        *zap.Logger
}

// VoteResult reports the outcome of a vote.
type VoteResult struct {
	Recorded bool
	Item     Item
}

// Stats summarizes the corpus.
type Stats struct {
	Total      int
	Categories int
}

// Engine owns the corpus and its in-memory vote counters.
type Engine struct {
	mutex         sync.RWMutex
	entries       []Entry
	positions     map[string]int
	remote        RemoteSearcher
	forwarder     VoteForwarder
	dispatcher    *background.Dispatcher
	searchTimeout time.Duration
	logger        *zap.Logger
}

// NewEngine builds an engine. The built-in corpus is used when options carry none.
func NewEngine(options Options) *Engine {
	corpus := options.Corpus
	if corpus == nil {
		corpus = DefaultCorpus()
	}
	entries := make([]Entry, len(corpus))
	copy(entries, corpus)
	positions := make(map[string]int, len(entries))
	for index, entry := range entries {
		positions[entry.ID] = index
	}
	searchTimeout := options.SearchTimeout
	if searchTimeout <= 0 {
		searchTimeout = defaultSearchTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		entries:       entries,
		positions:     positions,
		remote:        options.Remote,
		forwarder:     options.Forwarder,
		dispatcher:    options.Dispatcher,
		searchTimeout: searchTimeout,
		logger:        logger,
	}
}

// All returns the whole corpus in corpus order.
func (engine *Engine) All(language i18n.Language) []Item {
	engine.mutex.RLock()
	defer engine.mutex.RUnlock()
	items := make([]Item, 0, len(engine.entries))
	for _, entry := range engine.entries {
		items = append(items, entry.localize(language))
	}
	return items
}

// Search returns the FAQs matching query. Queries shorter than two characters list the whole
// corpus. Otherwise the backend search is tried first and the local ranking is the fallback
// when it fails or finds nothing.
func (engine *Engine) Search(ctx context.Context, query string, language i18n.Language) []Item {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minimumQueryRunes {
		return engine.All(language)
	}
	if remoteItems := engine.searchRemote(ctx, trimmed, language); len(remoteItems) > 0 {
		return remoteItems
	}
	return RankLocal(engine.All(language), trimmed)
}

func (engine *Engine) searchRemote(ctx context.Context, query string, language i18n.Language) []Item {
	if engine.remote == nil {
		return nil
	}
	searchContext, cancel := context.WithTimeout(ctx, engine.searchTimeout)
	defer cancel()
	records, searchErr := engine.remote.SearchFAQ(searchContext, query, gateway.FAQSearchLimit)
	if searchErr != nil {
		engine.logger.Debug(logEventRemoteSearchFailed, zap.String(logFieldQuery, query), zap.Error(searchErr))
		return nil
	}
	if len(records) == 0 {
		engine.logger.Debug(logEventRemoteSearchEmpty, zap.String(logFieldQuery, query))
		return nil
	}
	items := make([]Item, 0, len(records))
	for _, record := range records {
		items = append(items, itemFromRecord(record, language))
	}
	return items
}

// RankLocal scores items against query and returns the matching ones, best first.
// Items of equal score keep their input order.
func RankLocal(items []Item, query string) []Item {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	if normalizedQuery == "" {
		return nil
	}
	queryTokens := strings.Fields(normalizedQuery)

	type scoredItem struct {
		item  Item
		score int
	}
	scored := make([]scoredItem, 0, len(items))
	for _, item := range items {
		score := Score(item, normalizedQuery, queryTokens)
		if score > 0 {
			scored = append(scored, scoredItem{item: item, score: score})
		}
	}
	sort.SliceStable(scored, func(left, right int) bool {
		return scored[left].score > scored[right].score
	})
	ranked := make([]Item, 0, len(scored))
	for _, entry := range scored {
		ranked = append(ranked, entry.item)
	}
	return ranked
}

// Score is the relevance of item for an already lower-cased query.
func Score(item Item, normalizedQuery string, queryTokens []string) int {
	question := strings.ToLower(item.Question)
	answer := strings.ToLower(item.Answer)

	score := 0
	if strings.Contains(question, normalizedQuery) {
		score += scoreQuestionMatch
	}
	if strings.Contains(answer, normalizedQuery) {
		score += scoreAnswerMatch
	}
	contentTokens := append(strings.Fields(question), strings.Fields(answer)...)
	for _, keyword := range item.Keywords {
		lowered := strings.ToLower(keyword)
		if strings.Contains(lowered, normalizedQuery) {
			score += scoreKeywordMatch
		}
		contentTokens = append(contentTokens, lowered)
	}
	if strings.Contains(strings.ToLower(item.Category), normalizedQuery) {
		score += scoreCategoryMatch
	}
	for _, queryToken := range queryTokens {
		for _, contentToken := range contentTokens {
			if strings.Contains(contentToken, queryToken) || strings.Contains(queryToken, contentToken) {
				score += scoreTokenMatch
			}
		}
	}
	return score
}

// FilterByCategory returns the corpus entries of category; CategoryAll returns everything.
func (engine *Engine) FilterByCategory(category string, language i18n.Language) []Item {
	all := engine.All(language)
	if category == CategoryAll || category == "" {
		return all
	}
	filtered := make([]Item, 0, len(all))
	for _, item := range all {
		if item.Category == category {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Vote counts one helpfulness vote per profile and entry. A repeated vote is accepted but not
// counted. The backend is notified in the background and its failure does not undo the count.
func (engine *Engine) Vote(store prefs.Store, faqID string, kind string, language i18n.Language) (VoteResult, error) {
	if kind != prefs.VoteHelpful && kind != prefs.VoteUnhelpful {
		return VoteResult{}, ErrInvalidVoteKind
	}

	engine.mutex.Lock()
	position, known := engine.positions[faqID]
	if !known {
		engine.mutex.Unlock()
		return VoteResult{}, ErrUnknownEntry
	}
	if !prefs.RecordVoteReceipt(store, faqID, kind) {
		item := engine.entries[position].localize(language)
		engine.mutex.Unlock()
		return VoteResult{Recorded: false, Item: item}, nil
	}
	if kind == prefs.VoteHelpful {
		engine.entries[position].HelpfulCount++
	} else {
		engine.entries[position].UnhelpfulCount++
	}
	item := engine.entries[position].localize(language)
	engine.mutex.Unlock()

	engine.forwardVote(faqID, kind)
	return VoteResult{Recorded: true, Item: item}, nil
}

func (engine *Engine) forwardVote(faqID string, kind string) {
	if engine.forwarder == nil {
		return
	}
	engine.dispatcher.Go(backgroundTaskVote, func(ctx context.Context) error {
		return engine.forwarder.VoteFAQ(ctx, faqID, kind)
	})
}

// Stats counts entries and distinct categories.
func (engine *Engine) Stats() Stats {
	engine.mutex.RLock()
	defer engine.mutex.RUnlock()
	categories := make(map[string]struct{})
	for _, entry := range engine.entries {
		categories[entry.Category] = struct{}{}
	}
	return Stats{Total: len(engine.entries), Categories: len(categories)}
}
