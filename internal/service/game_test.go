package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/randomlysa/hangman-api/internal/config"
	"github.com/randomlysa/hangman-api/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	games   map[string]*domain.Game
	history map[string][]domain.HistoryEntry
	scores  []domain.Score
	ranks   map[string]domain.UserRank
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*domain.User),
		games:   make(map[string]*domain.Game),
		history: make(map[string][]domain.HistoryEntry),
		ranks:   make(map[string]domain.UserRank),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Name == user.Name {
			return domain.ErrUserExists
		}
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) GetUserByName(_ context.Context, name string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Name == name {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeStore) CreateGame(_ context.Context, game *domain.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *game
	copied.History = nil
	f.games[game.ID] = &copied
	return nil
}

func (f *fakeStore) GetGame(_ context.Context, gameID string) (*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	game, ok := f.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	copied := *game
	copied.History = nil
	return &copied, nil
}

func (f *fakeStore) UpdateGame(_ context.Context, game *domain.Game, newEntries []domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.games[game.ID]; !ok {
		return domain.ErrGameNotFound
	}
	copied := *game
	copied.History = nil
	f.games[game.ID] = &copied
	f.history[game.ID] = append(f.history[game.ID], newEntries...)
	return nil
}

func (f *fakeStore) GamesByUser(_ context.Context, userID string, difficulty domain.Difficulty) ([]*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var games []*domain.Game
	for _, game := range f.games {
		if game.UserID == userID && game.AttemptsAllowed == int(difficulty) {
			copied := *game
			games = append(games, &copied)
		}
	}
	return games, nil
}

func (f *fakeStore) UnfinishedGameIDsByUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, game := range f.games {
		if game.UserID == userID && game.Status == domain.StatusInProgress {
			ids = append(ids, game.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) ListInProgressGames(_ context.Context) ([]*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var games []*domain.Game
	for _, game := range f.games {
		if game.Status == domain.StatusInProgress {
			copied := *game
			games = append(games, &copied)
		}
	}
	return games, nil
}

func (f *fakeStore) HistoryByGame(_ context.Context, gameID string) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.HistoryEntry(nil), f.history[gameID]...), nil
}

func (f *fakeStore) CreateScore(_ context.Context, score *domain.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.scores {
		if existing.GameID == score.GameID {
			return nil
		}
	}
	score.ID = int64(len(f.scores) + 1)
	f.scores = append(f.scores, *score)
	return nil
}

func (f *fakeStore) ScoresByUser(_ context.Context, userID string) ([]domain.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var scores []domain.Score
	for _, score := range f.scores {
		if score.UserID == userID {
			scores = append(scores, score)
		}
	}
	return scores, nil
}

func (f *fakeStore) ListScores(_ context.Context) ([]domain.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Score(nil), f.scores...), nil
}

func rankKey(userID string, difficulty domain.Difficulty) string {
	return userID + ":" + difficulty.Label()
}

func (f *fakeStore) UpsertRank(_ context.Context, rank domain.UserRank) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranks[rankKey(rank.UserID, rank.Difficulty)] = rank
	return nil
}

func (f *fakeStore) GetRank(_ context.Context, userID string, difficulty domain.Difficulty) (*domain.UserRank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rank, ok := f.ranks[rankKey(userID, difficulty)]
	if !ok {
		return nil, domain.ErrRankNotFound
	}
	return &rank, nil
}

func (f *fakeStore) ListRanks(_ context.Context, difficulty domain.Difficulty, limit int) ([]domain.UserRank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ranks []domain.UserRank
	for _, rank := range f.ranks {
		if rank.Difficulty == difficulty {
			ranks = append(ranks, rank)
		}
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].Performance > ranks[j].Performance })
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

type fakeCache struct {
	mu     sync.Mutex
	avg    float64
	avgSet bool
	avgCh  chan float64
}

func newFakeCache() *fakeCache {
	return &fakeCache{avgCh: make(chan float64, 8)}
}

func (c *fakeCache) UpsertRank(context.Context, domain.UserRank) error { return nil }

func (c *fakeCache) GetTopRanks(context.Context, domain.Difficulty, int) ([]domain.UserRank, error) {
	return nil, nil
}

func (c *fakeCache) ReplaceRankings(context.Context, domain.Difficulty, []domain.UserRank) error {
	return nil
}

func (c *fakeCache) SetUserName(context.Context, string, string) error { return nil }

func (c *fakeCache) SetAverageAttempts(_ context.Context, avg float64) error {
	c.mu.Lock()
	c.avg = avg
	c.avgSet = true
	c.mu.Unlock()
	select {
	case c.avgCh <- avg:
	default:
	}
	return nil
}

func (c *fakeCache) GetAverageAttempts(context.Context) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avg, c.avgSet, nil
}

type fixedWordSource struct {
	word string
	err  error
}

func (f fixedWordSource) Pick(context.Context, int, int) (string, error) {
	return f.word, f.err
}

type recordingBroadcaster struct {
	mu           sync.Mutex
	gameUpdates  []string
	rankingCalls []domain.Difficulty
}

func (b *recordingBroadcaster) BroadcastGameUpdate(gameID string, _ domain.GuessResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gameUpdates = append(b.gameUpdates, gameID)
}

func (b *recordingBroadcaster) BroadcastRankingUpdate(difficulty domain.Difficulty, _ []domain.UserRank) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rankingCalls = append(b.rankingCalls, difficulty)
}

func newTestService(t *testing.T, store *fakeStore, word string) *GameService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGameService(store, fixedWordSource{word: word}, nil, nil, config.DefaultConfig(), logger)
}

func createTestUser(t *testing.T, svc *GameService, name string) *domain.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), name, "")
	if err != nil {
		t.Fatalf("CreateUser(%q) error: %v", name, err)
	}
	return user
}

func TestCreateUser(t *testing.T) {
	svc := newTestService(t, newFakeStore(), "wolf")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated user id")
	}

	if _, err := svc.CreateUser(ctx, "alice", ""); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("duplicate name error = %v, want ErrUserExists", err)
	}
	if _, err := svc.CreateUser(ctx, "  ", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("blank name error = %v, want ErrInvalidRequest", err)
	}
}

func TestCreateGame(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if game.AttemptsRemaining != 6 {
		t.Errorf("AttemptsRemaining = %d, want 6", game.AttemptsRemaining)
	}
	if game.Status != domain.StatusInProgress {
		t.Errorf("Status = %q, want in_progress", game.Status)
	}

	if _, err := svc.CreateGame(ctx, "nobody", 6, 0, 0); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user error = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.CreateGame(ctx, "alice", 7, 0, 0); !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Errorf("attempts=7 error = %v, want ErrInvalidDifficulty", err)
	}
	if _, err := svc.CreateGame(ctx, "alice", 6, 10, 4); !errors.Is(err, domain.ErrInvalidRange) {
		t.Errorf("inverted range error = %v, want ErrInvalidRange", err)
	}
}

func TestCreateGameRefreshesAverageAttempts(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewGameService(store, fixedWordSource{word: "wolf"}, cache, nil, config.DefaultConfig(), logger)
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	if _, err := svc.CreateGame(ctx, "alice", 6, 0, 0); err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}

	// The refresh runs in the background after the game persists.
	select {
	case avg := <-cache.avgCh:
		if avg != 6 {
			t.Errorf("cached average attempts = %v, want 6", avg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("average attempts cache was not refreshed after CreateGame")
	}
}

func TestGetUserRankWithoutGames(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	user := createTestUser(t, svc, "alice")

	rank, err := svc.GetUserRank(ctx, "alice", domain.DifficultyHard)
	if err != nil {
		t.Fatalf("GetUserRank error: %v", err)
	}
	if rank.UserID != user.ID || rank.UserName != "alice" {
		t.Errorf("rank identifies %q/%q, want %q/alice", rank.UserID, rank.UserName, user.ID)
	}
	if rank.Performance != 0 {
		t.Errorf("Performance = %d, want 0", rank.Performance)
	}

	if _, err := svc.GetUserRank(ctx, "nobody", domain.DifficultyHard); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user error = %v, want ErrUserNotFound", err)
	}
}

func TestSubmitGuessWinRecordsScoreAndRank(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	user := createTestUser(t, svc, "alice")

	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}

	for _, guess := range []string{"w", "z"} {
		if _, err := svc.SubmitGuess(ctx, game.ID, guess); err != nil {
			t.Fatalf("SubmitGuess(%q) error: %v", guess, err)
		}
	}
	result, err := svc.SubmitGuess(ctx, game.ID, "wolf")
	if err != nil {
		t.Fatalf("SubmitGuess(wolf) error: %v", err)
	}
	if result.Status != domain.StatusWon {
		t.Fatalf("Status = %q, want won", result.Status)
	}

	scores, err := svc.GetUserScores(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserScores error: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("got %d scores, want 1", len(scores))
	}
	// One correct and one incorrect letter before the solve.
	if scores[0].Value != 500 {
		t.Errorf("score = %d, want 500", scores[0].Value)
	}

	rank, err := svc.GetUserRank(ctx, "alice", domain.DifficultyHard)
	if err != nil {
		t.Fatalf("GetUserRank error: %v", err)
	}
	if rank.Performance != 1000 {
		t.Errorf("performance = %d, want 1000", rank.Performance)
	}
	if rank.UserID != user.ID {
		t.Errorf("rank user = %q, want %q", rank.UserID, user.ID)
	}
}

func TestSubmitGuessPersistsHistory(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}

	guesses := []string{"w", "w", "z", ""}
	for _, guess := range guesses {
		if _, err := svc.SubmitGuess(ctx, game.ID, guess); err != nil {
			t.Fatalf("SubmitGuess(%q) error: %v", guess, err)
		}
	}

	history, err := svc.GetHistory(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if len(history) != len(guesses) {
		t.Fatalf("got %d history entries, want %d", len(history), len(guesses))
	}
	for i, entry := range history {
		if entry.Guess != guesses[i] {
			t.Errorf("history[%d].Guess = %q, want %q", i, entry.Guess, guesses[i])
		}
	}
}

func TestSubmitGuessAfterFinishLeavesNoTrace(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, err := svc.SubmitGuess(ctx, game.ID, "wolf"); err != nil {
		t.Fatalf("SubmitGuess(wolf) error: %v", err)
	}

	result, err := svc.SubmitGuess(ctx, game.ID, "a")
	if err != nil {
		t.Fatalf("SubmitGuess after finish error: %v", err)
	}
	if result.Status != domain.StatusWon {
		t.Errorf("Status = %q, want won", result.Status)
	}

	history, err := svc.GetHistory(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("got %d history entries, want 1", len(history))
	}
	scores, _ := svc.ListScores(ctx)
	if len(scores) != 1 {
		t.Errorf("got %d scores, want 1", len(scores))
	}
}

func TestCancelGame(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}

	cancelled, err := svc.CancelGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("CancelGame error: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", cancelled.Status)
	}

	if _, err := svc.CancelGame(ctx, game.ID); !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Errorf("second cancel error = %v, want ErrAlreadyTerminal", err)
	}

	// Cancelled games never score.
	scores, _ := svc.ListScores(ctx)
	if len(scores) != 0 {
		t.Errorf("got %d scores, want 0", len(scores))
	}
}

func TestCancelledGamesDragPerformance(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	// One win, then enough cancellations to drop the completion rate
	// below the threshold.
	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, err := svc.SubmitGuess(ctx, game.ID, "wolf"); err != nil {
		t.Fatalf("SubmitGuess error: %v", err)
	}

	cancelled, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, err := svc.CancelGame(ctx, cancelled.ID); err != nil {
		t.Fatalf("CancelGame error: %v", err)
	}

	rank, err := svc.GetUserRank(ctx, "alice", domain.DifficultyHard)
	if err != nil {
		t.Fatalf("GetUserRank error: %v", err)
	}
	// 1 win of 1 finished, but completion rate 1/2: floor(0.5 * 1000).
	if rank.Performance != 500 {
		t.Errorf("performance = %d, want 500", rank.Performance)
	}
}

func TestGetUserGamesListsOnlyUnfinished(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	active, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	finished, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, err := svc.SubmitGuess(ctx, finished.ID, "wolf"); err != nil {
		t.Fatalf("SubmitGuess error: %v", err)
	}

	ids, err := svc.GetUserGames(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserGames error: %v", err)
	}
	if len(ids) != 1 || ids[0] != active.ID {
		t.Errorf("GetUserGames = %v, want [%s]", ids, active.ID)
	}
}

func TestGetRankingsValidatesAndClamps(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()

	if _, err := svc.GetRankings(ctx, domain.Difficulty(7), 10); !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Errorf("difficulty=7 error = %v, want ErrInvalidDifficulty", err)
	}

	for i := 0; i < 3; i++ {
		name := string(rune('a' + i))
		user := createTestUser(t, svc, name)
		store.UpsertRank(ctx, domain.UserRank{
			UserID: user.ID, Difficulty: domain.DifficultyEasy, Performance: 100 * (i + 1),
		})
	}

	ranks, err := svc.GetRankings(ctx, domain.DifficultyEasy, 2)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if len(ranks) != 2 {
		t.Fatalf("got %d ranks, want 2", len(ranks))
	}
	if ranks[0].Performance != 300 {
		t.Errorf("top performance = %d, want 300", ranks[0].Performance)
	}
}

func TestGetAverageAttempts(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, "wolf")
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	avg, err := svc.GetAverageAttempts(ctx)
	if err != nil {
		t.Fatalf("GetAverageAttempts error: %v", err)
	}
	if avg != 0 {
		t.Errorf("average with no games = %v, want 0", avg)
	}

	if _, err := svc.CreateGame(ctx, "alice", 6, 0, 0); err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, err := svc.CreateGame(ctx, "alice", 12, 0, 0); err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}

	avg, err = svc.GetAverageAttempts(ctx)
	if err != nil {
		t.Fatalf("GetAverageAttempts error: %v", err)
	}
	if avg != 9 {
		t.Errorf("average = %v, want 9", avg)
	}
}

func TestWordSourceFailureSurfaces(t *testing.T) {
	store := newFakeStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewGameService(store, fixedWordSource{err: domain.ErrNoWordsAvailable}, nil, nil, config.DefaultConfig(), logger)
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	if _, err := svc.CreateGame(ctx, "alice", 6, 0, 0); !errors.Is(err, domain.ErrNoWordsAvailable) {
		t.Errorf("CreateGame error = %v, want ErrNoWordsAvailable", err)
	}
}

func TestBroadcasterReceivesUpdates(t *testing.T) {
	store := newFakeStore()
	broadcaster := &recordingBroadcaster{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewGameService(store, fixedWordSource{word: "wolf"}, nil, broadcaster, config.DefaultConfig(), logger)
	ctx := context.Background()
	createTestUser(t, svc, "alice")

	game, err := svc.CreateGame(ctx, "alice", 6, 0, 0)
	if err != nil {
		t.Fatalf("CreateGame error: %v", err)
	}
	if _, err := svc.SubmitGuess(ctx, game.ID, "wolf"); err != nil {
		t.Fatalf("SubmitGuess error: %v", err)
	}

	if len(broadcaster.gameUpdates) != 1 || broadcaster.gameUpdates[0] != game.ID {
		t.Errorf("game updates = %v, want one for %s", broadcaster.gameUpdates, game.ID)
	}
	if len(broadcaster.rankingCalls) != 1 || broadcaster.rankingCalls[0] != domain.DifficultyHard {
		t.Errorf("ranking updates = %v, want one for difficulty 6", broadcaster.rankingCalls)
	}
}
