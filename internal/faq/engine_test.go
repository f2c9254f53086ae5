package faq_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/background"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/faq"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/gateway"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
)

type stubRemote struct {
	mutex   sync.Mutex
	calls   []string
	records []gateway.FAQRecord
	err     error
}

func (remote *stubRemote) SearchFAQ(_ context.Context, query string, limit int) ([]gateway.FAQRecord, error) {
	remote.mutex.Lock()
	defer remote.mutex.Unlock()
	remote.calls = append(remote.calls, query)
	if limit != gateway.FAQSearchLimit {
		return nil, errors.New("unexpected limit")
	}
	return remote.records, remote.err
}

type stubForwarder struct {
	mutex sync.Mutex
	votes []string
	err   error
}

func (forwarder *stubForwarder) VoteFAQ(_ context.Context, faqID string, voteType string) error {
	forwarder.mutex.Lock()
	defer forwarder.mutex.Unlock()
	forwarder.votes = append(forwarder.votes, faqID+":"+voteType)
	return forwarder.err
}

func itemIDs(items []faq.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestDefaultCorpusHasTenEntriesInFourCategories(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})
	require.Equal(testingT, faq.Stats{Total: 10, Categories: 4}, engine.Stats())

	items := engine.All(i18n.Hindi)
	require.Equal(testingT, "faq_login_otp", items[0].ID)
	require.Equal(testingT, "मैं OTP से कैसे लॉगिन करूं?", items[0].Question)
	require.Equal(testingT, 127, items[0].HelpfulCount)
}

func TestShortQueriesReturnWholeCorpusWithoutRemoteCall(testingT *testing.T) {
	remote := &stubRemote{}
	engine := faq.NewEngine(faq.Options{Remote: remote})
	all := itemIDs(engine.All(i18n.English))

	for _, query := range []string{"", " ", "o", "  क  "} {
		require.Equal(testingT, all, itemIDs(engine.Search(context.Background(), query, i18n.English)), query)
	}
	require.Empty(testingT, remote.calls)
}

func TestOCRQueryRanksOCREntriesFirst(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})

	results := engine.Search(context.Background(), "OCR", i18n.English)

	expected := []string{"faq_ocr_scan", "faq_ocr_accuracy", "faq_hindi_support", "faq_data_security"}
	if diff := cmp.Diff(expected, itemIDs(results)); diff != "" {
		testingT.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestQuestionSubstringScoresAtLeastOneHundred(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})
	for _, language := range []i18n.Language{i18n.English, i18n.Hindi} {
		for _, item := range engine.All(language) {
			question := strings.ToLower(item.Question)
			runes := []rune(question)
			fragment := strings.TrimSpace(string(runes[:len(runes)/2]))
			if fragment == "" {
				continue
			}
			require.GreaterOrEqual(testingT, faq.Score(item, fragment, strings.Fields(fragment)), 100, item.ID)
		}
	}
}

func TestRankLocalUsesLanguageOfItems(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})

	results := faq.RankLocal(engine.All(i18n.Hindi), "योजना")

	require.Equal(testingT, []string{"faq_schemes_find", "faq_schemes_eligibility", "faq_scam_protection"}, itemIDs(results))
}

func TestRemoteResultsWinWhenPresent(testingT *testing.T) {
	remote := &stubRemote{records: []gateway.FAQRecord{{
		ID:         "remote_1",
		Category:   faq.CategoryGeneral,
		QuestionEN: "Remote question",
		QuestionHI: "रिमोट प्रश्न",
		AnswerEN:   "Remote answer",
	}}}
	engine := faq.NewEngine(faq.Options{Remote: remote})

	results := engine.Search(context.Background(), "remote", i18n.Hindi)

	require.Len(testingT, results, 1)
	require.Equal(testingT, "रिमोट प्रश्न", results[0].Question)
	require.Equal(testingT, "Remote answer", results[0].Answer)
	require.Equal(testingT, []string{"remote"}, remote.calls)
}

func TestRemoteFailureOrEmptyFallsBackToLocalRanking(testingT *testing.T) {
	for name, remote := range map[string]*stubRemote{
		"error": {err: errors.New("offline")},
		"empty": {},
	} {
		engine := faq.NewEngine(faq.Options{Remote: remote})
		results := engine.Search(context.Background(), "scam", i18n.English)
		require.Equal(testingT, "faq_scam_report", results[0].ID, name)
		require.Equal(testingT, "faq_scam_protection", results[1].ID, name)
	}
}

func TestFilterByCategory(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})

	require.Equal(testingT, []string{"faq_scam_report", "faq_scam_protection"}, itemIDs(engine.FilterByCategory(faq.CategoryScam, i18n.English)))
	require.Len(testingT, engine.FilterByCategory(faq.CategoryAll, i18n.English), 10)
	require.Empty(testingT, engine.FilterByCategory("Scam", i18n.English))
}

func TestVoteCountsOncePerProfile(testingT *testing.T) {
	forwarder := &stubForwarder{}
	dispatcher := background.NewDispatcher(time.Second, nil)
	engine := faq.NewEngine(faq.Options{Forwarder: forwarder, Dispatcher: dispatcher})
	store := prefs.NewMemoryStore("profile-1")

	first, firstErr := engine.Vote(store, "faq_ocr_scan", prefs.VoteHelpful, i18n.English)
	require.NoError(testingT, firstErr)
	require.True(testingT, first.Recorded)
	require.Equal(testingT, 190, first.Item.HelpfulCount)

	second, secondErr := engine.Vote(store, "faq_ocr_scan", prefs.VoteUnhelpful, i18n.English)
	require.NoError(testingT, secondErr)
	require.False(testingT, second.Recorded)
	require.Equal(testingT, 15, second.Item.UnhelpfulCount)

	dispatcher.Close()
	require.Equal(testingT, []string{"faq_ocr_scan:helpful"}, forwarder.votes)
	require.Equal(testingT, map[string]string{"faq_ocr_scan": prefs.VoteHelpful}, prefs.VoteReceipts(store))
}

type slowStore struct {
	prefs.Store
	delay time.Duration
}

func (store slowStore) Set(key string, value string) {
	time.Sleep(store.delay)
	store.Store.Set(key, value)
}

func TestConcurrentVotesFromOneProfileCountOnce(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})
	store := slowStore{Store: prefs.NewMemoryStore("profile-concurrent"), delay: 5 * time.Millisecond}
	const voters = 10

	var waitGroup sync.WaitGroup
	var recordedMutex sync.Mutex
	recorded := 0
	for index := 0; index < voters; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			result, voteErr := engine.Vote(store, "faq_ocr_scan", prefs.VoteHelpful, i18n.English)
			if voteErr != nil || !result.Recorded {
				return
			}
			recordedMutex.Lock()
			recorded++
			recordedMutex.Unlock()
		}()
	}
	waitGroup.Wait()

	require.Equal(testingT, 1, recorded)
	for _, item := range engine.All(i18n.English) {
		if item.ID == "faq_ocr_scan" {
			require.Equal(testingT, 190, item.HelpfulCount)
		}
	}
}

func TestConcurrentVotesOnDifferentEntriesKeepEveryReceipt(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})
	store := slowStore{Store: prefs.NewMemoryStore("profile-many"), delay: 2 * time.Millisecond}
	ids := itemIDs(engine.All(i18n.English))

	var waitGroup sync.WaitGroup
	for _, faqID := range ids {
		waitGroup.Add(1)
		go func(faqID string) {
			defer waitGroup.Done()
			_, _ = engine.Vote(store, faqID, prefs.VoteUnhelpful, i18n.English)
		}(faqID)
	}
	waitGroup.Wait()

	require.Len(testingT, prefs.VoteReceipts(store), len(ids))
	for _, faqID := range ids {
		again, againErr := engine.Vote(store, faqID, prefs.VoteHelpful, i18n.English)
		require.NoError(testingT, againErr)
		require.False(testingT, again.Recorded, faqID)
	}
}

func TestVoteSurvivesForwardingFailure(testingT *testing.T) {
	forwarder := &stubForwarder{err: errors.New("backend down")}
	dispatcher := background.NewDispatcher(time.Second, nil)
	engine := faq.NewEngine(faq.Options{Forwarder: forwarder, Dispatcher: dispatcher})
	store := prefs.NewMemoryStore("profile-2")

	result, voteErr := engine.Vote(store, "faq_data_security", prefs.VoteUnhelpful, i18n.English)
	dispatcher.Close()

	require.NoError(testingT, voteErr)
	require.True(testingT, result.Recorded)
	require.Equal(testingT, 5, engine.FilterByCategory(faq.CategoryGeneral, i18n.English)[3].UnhelpfulCount)
}

func TestVoteRejectsInvalidInput(testingT *testing.T) {
	engine := faq.NewEngine(faq.Options{})
	store := prefs.NewMemoryStore("profile-3")

	_, kindErr := engine.Vote(store, "faq_ocr_scan", "love", i18n.English)
	require.ErrorIs(testingT, kindErr, faq.ErrInvalidVoteKind)

	_, entryErr := engine.Vote(store, "missing", prefs.VoteHelpful, i18n.English)
	require.ErrorIs(testingT, entryErr, faq.ErrUnknownEntry)
	require.Empty(testingT, prefs.VoteReceipts(store))
}

func TestLoadCorpusRejectsDuplicates(testingT *testing.T) {
	_, loadErr := faq.LoadCorpus([]byte("- id: a\n  question: {en: A}\n- id: a\n  question: {en: B}\n"))
	require.ErrorIs(testingT, loadErr, faq.ErrInvalidCorpus)

	_, incompleteErr := faq.LoadCorpus([]byte("- id: a\n"))
	require.ErrorIs(testingT, incompleteErr, faq.ErrInvalidCorpus)
}

func TestCategoryPresentation(testingT *testing.T) {
	require.Equal(testingT, "धोखाधड़ी सुरक्षा", faq.CategoryLabel(faq.CategoryScam, i18n.Hindi))
	require.Equal(testingT, "Scam Protection", faq.CategoryLabel(faq.CategoryScam, i18n.English))
	require.Equal(testingT, "custom", faq.CategoryLabel("custom", i18n.English))
	require.Equal(testingT, "📋", faq.CategoryEmoji(faq.CategorySchemes))
	require.Equal(testingT, "❓", faq.CategoryEmoji("custom"))
	require.Contains(testingT, faq.Suggestions(), "fraud protection")
}
