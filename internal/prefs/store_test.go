package prefs_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/i18n"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/prefs"
	"github.com/MarkoPoloResearchLab/ruralassist/internal/testutil"
)

const (
	testProfileID      = "profile-a"
	testOtherProfileID = "profile-b"
)

var errBackendUnavailable = errors.New("backend unavailable")

type failingBackend struct{}

func (failingBackend) Load(context.Context, string, string) (string, bool, error) {
	return "", false, errBackendUnavailable
}

func (failingBackend) Save(context.Context, string, string, string) error {
	return errBackendUnavailable
}

func (failingBackend) Delete(context.Context, string, string) error {
	return errBackendUnavailable
}

func TestBackendsRoundTripAndIsolateProfiles(t *testing.T) {
	database := testutil.NewSQLiteTestDatabase(t).OpenMigrated(t)

	backends := map[string]prefs.Backend{
		"memory": prefs.NewMemoryBackend(),
		"gorm":   prefs.NewGormBackend(database),
	}

	for name, backend := range backends {
		t.Run(name, func(testingT *testing.T) {
			store := prefs.NewProfileStore(context.Background(), backend, testProfileID, nil)
			otherStore := prefs.NewProfileStore(context.Background(), backend, testOtherProfileID, nil)

			_, found := store.Get(prefs.KeyToken)
			require.False(testingT, found)

			store.Set(prefs.KeyToken, "first")
			store.Set(prefs.KeyToken, "second")
			value, found := store.Get(prefs.KeyToken)
			require.True(testingT, found)
			require.Equal(testingT, "second", value)

			_, otherFound := otherStore.Get(prefs.KeyToken)
			require.False(testingT, otherFound)

			store.Remove(prefs.KeyToken)
			_, found = store.Get(prefs.KeyToken)
			require.False(testingT, found)
		})
	}
}

func TestProfileStoreSwallowsBackendErrors(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	store := prefs.NewProfileStore(context.Background(), failingBackend{}, testProfileID, zap.New(core))

	store.Set(prefs.KeyLanguage, "hi")
	value, found := store.Get(prefs.KeyLanguage)
	store.Remove(prefs.KeyLanguage)

	require.False(t, found)
	require.Empty(t, value)
	require.Equal(t, 3, recorded.Len())
}

func TestToggleSavedSchemeAddsThenRemoves(t *testing.T) {
	store := prefs.NewMemoryStore(testProfileID)
	store.Set(prefs.KeySavedSchemes, `["7"]`)

	require.True(t, prefs.ToggleSavedScheme(store, "42"))
	require.Equal(t, []string{"7", "42"}, prefs.SavedSchemes(store))
	require.True(t, prefs.SavedSchemeSet(store)["42"])

	require.False(t, prefs.ToggleSavedScheme(store, "42"))
	require.Equal(t, []string{"7"}, prefs.SavedSchemes(store))
}

func TestSavedSchemesIgnoresCorruptValue(t *testing.T) {
	store := prefs.NewMemoryStore(testProfileID)
	store.Set(prefs.KeySavedSchemes, "not json")

	require.Empty(t, prefs.SavedSchemes(store))
	require.True(t, prefs.ToggleSavedScheme(store, "1"))
	require.Equal(t, []string{"1"}, prefs.SavedSchemes(store))
}

func TestRecordVoteReceiptNeverOverwrites(t *testing.T) {
	store := prefs.NewMemoryStore(testProfileID)

	require.True(t, prefs.RecordVoteReceipt(store, "faq_login_otp", prefs.VoteHelpful))
	require.False(t, prefs.RecordVoteReceipt(store, "faq_login_otp", prefs.VoteUnhelpful))
	require.Equal(t, map[string]string{"faq_login_otp": prefs.VoteHelpful}, prefs.VoteReceipts(store))
}

type delayedSetStore struct {
	prefs.Store
}

func (store delayedSetStore) Set(key string, value string) {
	time.Sleep(time.Millisecond)
	store.Store.Set(key, value)
}

func TestConcurrentListUpdatesKeepEveryValue(t *testing.T) {
	store := delayedSetStore{Store: prefs.NewMemoryStore(testProfileID)}
	const writers = 8

	var waitGroup sync.WaitGroup
	for index := 0; index < writers; index++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			identifier := strconv.Itoa(index)
			prefs.ToggleSavedScheme(store, identifier)
			prefs.RecordVoteReceipt(store, "faq_"+identifier, prefs.VoteHelpful)
		}(index)
	}
	waitGroup.Wait()

	require.Len(t, prefs.SavedSchemes(store), writers)
	require.Len(t, prefs.VoteReceipts(store), writers)
}

func TestConsumeRedirectTargetIsOneShot(t *testing.T) {
	store := prefs.NewMemoryStore(testProfileID)
	store.Set(prefs.KeyLoginRedirect, "/schemes")

	require.Equal(t, "/schemes", prefs.ConsumeRedirectTarget(store))
	require.Equal(t, "/", prefs.ConsumeRedirectTarget(store))
}

func TestConsumeRedirectTargetRejectsForeignOrigins(t *testing.T) {
	for _, target := range []string{"https://evil.example", "//evil.example/x", "schemes"} {
		store := prefs.NewMemoryStore(testProfileID)
		store.Set(prefs.KeyLoginRedirect, target)
		require.Equal(t, "/", prefs.ConsumeRedirectTarget(store), target)
	}
}

func TestLanguageFallsBackAndPersists(t *testing.T) {
	store := prefs.NewMemoryStore(testProfileID)
	require.Equal(t, i18n.English, prefs.Language(store, i18n.English))

	prefs.SetLanguage(store, i18n.Hindi)
	require.Equal(t, i18n.Hindi, prefs.Language(store, i18n.English))
}

func TestOpenBackendFallsBackToMemory(t *testing.T) {
	sqliteBackend := prefs.OpenBackend(context.Background(), prefs.BackendOptions{Driver: prefs.DriverSQLite}, nil)
	require.IsType(t, &prefs.MemoryBackend{}, sqliteBackend)

	redisBackend := prefs.OpenBackend(context.Background(), prefs.BackendOptions{
		Driver:       prefs.DriverRedis,
		RedisAddress: "127.0.0.1:1",
		ProfileTTL:   time.Hour,
	}, nil)
	require.IsType(t, &prefs.MemoryBackend{}, redisBackend)

	database := testutil.NewSQLiteTestDatabase(t).OpenMigrated(t)
	gormBackend := prefs.OpenBackend(context.Background(), prefs.BackendOptions{Driver: prefs.DriverSQLite, Database: database}, nil)
	require.IsType(t, &prefs.GormBackend{}, gormBackend)
}

func TestCloseBackendReleasesRedisClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	backend := prefs.NewRedisBackend(client, time.Hour)

	require.NoError(t, prefs.CloseBackend(backend))
	require.Error(t, client.Close())
	require.NoError(t, prefs.CloseBackend(prefs.NewMemoryBackend()))
}
