package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randomlysa/hangman-api/internal/config"
	"github.com/randomlysa/hangman-api/internal/domain"
)

// Store is the persistence layer used by the game service.
type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByName(ctx context.Context, name string) (*domain.User, error)

	CreateGame(ctx context.Context, game *domain.Game) error
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game, newEntries []domain.HistoryEntry) error
	GamesByUser(ctx context.Context, userID string, difficulty domain.Difficulty) ([]*domain.Game, error)
	UnfinishedGameIDsByUser(ctx context.Context, userID string) ([]string, error)
	ListInProgressGames(ctx context.Context) ([]*domain.Game, error)
	HistoryByGame(ctx context.Context, gameID string) ([]domain.HistoryEntry, error)

	CreateScore(ctx context.Context, score *domain.Score) error
	ScoresByUser(ctx context.Context, userID string) ([]domain.Score, error)
	ListScores(ctx context.Context) ([]domain.Score, error)

	UpsertRank(ctx context.Context, rank domain.UserRank) error
	GetRank(ctx context.Context, userID string, difficulty domain.Difficulty) (*domain.UserRank, error)
	ListRanks(ctx context.Context, difficulty domain.Difficulty, limit int) ([]domain.UserRank, error)
}

// WordSource supplies target words for new games.
type WordSource interface {
	Pick(ctx context.Context, minLetters, maxLetters int) (string, error)
}

// RankCache is the Redis-backed read path for rankings and game stats.
// The store remains the source of truth; cache failures degrade reads,
// never writes.
type RankCache interface {
	UpsertRank(ctx context.Context, rank domain.UserRank) error
	GetTopRanks(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.UserRank, error)
	ReplaceRankings(ctx context.Context, difficulty domain.Difficulty, ranks []domain.UserRank) error
	SetUserName(ctx context.Context, userID, name string) error
	SetAverageAttempts(ctx context.Context, avg float64) error
	GetAverageAttempts(ctx context.Context) (float64, bool, error)
}

// Broadcaster pushes live updates to websocket subscribers.
type Broadcaster interface {
	BroadcastGameUpdate(gameID string, result domain.GuessResult)
	BroadcastRankingUpdate(difficulty domain.Difficulty, ranks []domain.UserRank)
}

// GameService provides business logic for game operations
type GameService struct {
	store       Store
	words       WordSource
	cache       RankCache
	broadcaster Broadcaster
	config      *config.Config
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGameService creates a new game service. cache and broadcaster may
// be nil, in which case the service runs without caching or live
// updates.
func NewGameService(
	store Store,
	words WordSource,
	cache RankCache,
	broadcaster Broadcaster,
	cfg *config.Config,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		store:       store,
		words:       words,
		cache:       cache,
		broadcaster: broadcaster,
		config:      cfg,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing guesses for one game.
func (s *GameService) sessionLock(gameID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[gameID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[gameID] = lock
	}
	return lock
}

func (s *GameService) releaseSessionLock(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, gameID)
}

// CreateUser registers a new user with a unique name
func (s *GameService) CreateUser(ctx context.Context, name, email string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: user name is required", domain.ErrInvalidRequest)
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetUserName(ctx, user.ID, user.Name); err != nil {
			s.logger.Warn("failed to cache user name", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// CreateGame starts a new game for a user. minLetters and maxLetters
// bound the target word length; zero values fall back to configured
// defaults.
func (s *GameService) CreateGame(ctx context.Context, userName string, attempts, minLetters, maxLetters int) (*domain.Game, error) {
	user, err := s.store.GetUserByName(ctx, userName)
	if err != nil {
		return nil, err
	}

	if minLetters == 0 {
		minLetters = s.config.Words.DefaultMinLetters
	}
	if maxLetters == 0 {
		maxLetters = s.config.Words.DefaultMaxLetters
	}
	if err := domain.ValidateNewGame(attempts, minLetters, maxLetters); err != nil {
		return nil, err
	}

	word, err := s.words.Pick(ctx, minLetters, maxLetters)
	if err != nil {
		return nil, fmt.Errorf("picking target word: %w", err)
	}

	game := domain.NewGame(uuid.New().String(), user.ID, word, attempts)
	if err := s.store.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	// The pool of active games just changed; refresh the cached average
	// out of band so reads right after creation are not stale.
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.RefreshAverageAttempts(refreshCtx); err != nil {
			s.logger.Warn("failed to refresh average attempts", "error", err)
		}
	}()

	s.logger.Info("game created",
		"game_id", game.ID,
		"user_id", user.ID,
		"attempts_allowed", game.AttemptsAllowed,
	)
	return game, nil
}

// GetGame retrieves a game by id
func (s *GameService) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	return s.store.GetGame(ctx, gameID)
}

// SubmitGuess evaluates one guess against a game. Guesses for the same
// game are serialized; each accepted guess is persisted together with
// its history entry before the result is returned.
func (s *GameService) SubmitGuess(ctx context.Context, gameID, guess string) (*domain.GuessResult, error) {
	lock := s.sessionLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	// The game is loaded without history, so entries appended by the
	// evaluation are exactly the new ones to persist.
	result := game.ApplyGuess(guess)
	if len(game.History) == 0 {
		// Guess against a finished game: no state change, nothing to save.
		return &result, nil
	}

	if err := s.store.UpdateGame(ctx, game, game.History); err != nil {
		return nil, err
	}

	if game.Status.Terminal() {
		s.finalizeGame(ctx, game)
		s.releaseSessionLock(gameID)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGameUpdate(game.ID, result)
	}
	return &result, nil
}

// CancelGame cancels an in-progress game. Cancelled games never score
// but count against the user's completion rate.
func (s *GameService) CancelGame(ctx context.Context, gameID string) (*domain.Game, error) {
	lock := s.sessionLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := game.Cancel(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateGame(ctx, game, game.History); err != nil {
		return nil, err
	}

	s.updateRank(ctx, game)
	s.releaseSessionLock(gameID)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGameUpdate(game.ID, domain.GuessResult{
			Message:           "Game cancelled.",
			RevealedPattern:   game.RevealedPattern(),
			AttemptsRemaining: game.AttemptsRemaining,
			Status:            game.Status,
		})
	}

	s.logger.Info("game cancelled", "game_id", game.ID, "user_id", game.UserID)
	return game, nil
}

// finalizeGame records the score and recomputes the user's rank once a
// game reaches won or lost.
func (s *GameService) finalizeGame(ctx context.Context, game *domain.Game) {
	value, err := domain.ComputeScore(game)
	if err != nil {
		s.logger.Error("failed to compute score", "game_id", game.ID, "error", err)
		return
	}
	score := &domain.Score{
		GameID:      game.ID,
		UserID:      game.UserID,
		Difficulty:  domain.Difficulty(game.AttemptsAllowed),
		Value:       value,
		CompletedAt: game.UpdatedAt,
	}
	if err := s.store.CreateScore(ctx, score); err != nil {
		s.logger.Error("failed to record score", "game_id", game.ID, "error", err)
	}

	s.updateRank(ctx, game)
}

// updateRank fully recomputes the user's rank at the game's difficulty
// from all of their games and writes it through to the store, cache,
// and ranking subscribers.
func (s *GameService) updateRank(ctx context.Context, game *domain.Game) {
	difficulty := domain.Difficulty(game.AttemptsAllowed)
	games, err := s.store.GamesByUser(ctx, game.UserID, difficulty)
	if err != nil {
		s.logger.Error("failed to load games for rank", "user_id", game.UserID, "error", err)
		return
	}

	rank := domain.ComputeRank(game.UserID, difficulty, games)
	if err := s.store.UpsertRank(ctx, rank); err != nil {
		s.logger.Error("failed to upsert rank", "user_id", game.UserID, "error", err)
		return
	}
	if s.cache != nil {
		if err := s.cache.UpsertRank(ctx, rank); err != nil {
			s.logger.Warn("failed to cache rank", "user_id", game.UserID, "error", err)
		}
	}

	if s.broadcaster != nil {
		ranks, err := s.store.ListRanks(ctx, difficulty, s.config.Rankings.DefaultLimit)
		if err != nil {
			s.logger.Warn("failed to load rankings for broadcast", "error", err)
			return
		}
		s.broadcaster.BroadcastRankingUpdate(difficulty, ranks)
	}
}

// GetHistory returns a game's guess log in order
func (s *GameService) GetHistory(ctx context.Context, gameID string) ([]domain.HistoryEntry, error) {
	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	return s.store.HistoryByGame(ctx, gameID)
}

// GetUserGames returns the ids of a user's unfinished games
func (s *GameService) GetUserGames(ctx context.Context, userName string) ([]string, error) {
	user, err := s.store.GetUserByName(ctx, userName)
	if err != nil {
		return nil, err
	}
	return s.store.UnfinishedGameIDsByUser(ctx, user.ID)
}

// GetUserScores returns a user's scores, most recent first
func (s *GameService) GetUserScores(ctx context.Context, userName string) ([]domain.Score, error) {
	user, err := s.store.GetUserByName(ctx, userName)
	if err != nil {
		return nil, err
	}
	return s.store.ScoresByUser(ctx, user.ID)
}

// ListScores returns all recorded scores, most recent first
func (s *GameService) ListScores(ctx context.Context) ([]domain.Score, error) {
	return s.store.ListScores(ctx)
}

// GetUserRank returns a user's rank at a difficulty
func (s *GameService) GetUserRank(ctx context.Context, userName string, difficulty domain.Difficulty) (*domain.UserRank, error) {
	if !difficulty.Valid() {
		return nil, domain.ErrInvalidDifficulty
	}
	user, err := s.store.GetUserByName(ctx, userName)
	if err != nil {
		return nil, err
	}
	rank, err := s.store.GetRank(ctx, user.ID, difficulty)
	if err != nil {
		if errors.Is(err, domain.ErrRankNotFound) {
			// A real user who has no finished games at this difficulty
			// simply ranks at zero.
			return &domain.UserRank{
				UserID:     user.ID,
				UserName:   user.Name,
				Difficulty: difficulty,
			}, nil
		}
		return nil, err
	}
	rank.UserName = user.Name
	return rank, nil
}

// GetRankings returns the top users at a difficulty, best first. Reads
// come from the cache when available, falling back to the store.
func (s *GameService) GetRankings(ctx context.Context, difficulty domain.Difficulty, limit int) ([]domain.UserRank, error) {
	if !difficulty.Valid() {
		return nil, domain.ErrInvalidDifficulty
	}
	if limit <= 0 {
		limit = s.config.Rankings.DefaultLimit
	}
	if limit > s.config.Rankings.MaxLimit {
		limit = s.config.Rankings.MaxLimit
	}

	if s.cache != nil {
		ranks, err := s.cache.GetTopRanks(ctx, difficulty, limit)
		if err == nil && len(ranks) > 0 {
			return ranks, nil
		}
		if err != nil {
			s.logger.Warn("rank cache read failed, falling back to store", "error", err)
		}
	}
	return s.store.ListRanks(ctx, difficulty, limit)
}

// GetAverageAttempts returns the average attempts remaining across all
// active games, preferring the cached value.
func (s *GameService) GetAverageAttempts(ctx context.Context) (float64, error) {
	if s.cache != nil {
		avg, ok, err := s.cache.GetAverageAttempts(ctx)
		if err != nil {
			s.logger.Warn("average attempts cache read failed", "error", err)
		} else if ok {
			return avg, nil
		}
	}
	return s.RefreshAverageAttempts(ctx)
}

// RefreshAverageAttempts recomputes the average attempts remaining
// across active games and updates the cache.
func (s *GameService) RefreshAverageAttempts(ctx context.Context) (float64, error) {
	games, err := s.store.ListInProgressGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active games: %w", err)
	}
	avg := domain.AverageAttemptsRemaining(games)
	if s.cache != nil {
		if err := s.cache.SetAverageAttempts(ctx, avg); err != nil {
			s.logger.Warn("failed to cache average attempts", "error", err)
		}
	}
	return avg, nil
}

// RefreshRankCache rebuilds every difficulty's cached ranking from the
// store.
func (s *GameService) RefreshRankCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	for _, difficulty := range []domain.Difficulty{
		domain.DifficultyHard,
		domain.DifficultyMedium,
		domain.DifficultyEasy,
	} {
		ranks, err := s.store.ListRanks(ctx, difficulty, s.config.Rankings.MaxLimit)
		if err != nil {
			return fmt.Errorf("listing ranks for difficulty %d: %w", int(difficulty), err)
		}
		if err := s.cache.ReplaceRankings(ctx, difficulty, ranks); err != nil {
			return fmt.Errorf("replacing cached rankings for difficulty %d: %w", int(difficulty), err)
		}
	}
	return nil
}
