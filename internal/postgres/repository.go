package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/randomlysa/hangman-api/internal/config"
	"github.com/randomlysa/hangman-api/internal/domain"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			target_word VARCHAR(64) NOT NULL,
			correct_letters VARCHAR(32) NOT NULL DEFAULT '',
			incorrect_letters VARCHAR(32) NOT NULL DEFAULT '',
			attempts_allowed INT NOT NULL,
			attempts_remaining INT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_history (
			id BIGSERIAL PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			guess VARCHAR(64) NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			attempts_remaining_after INT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id BIGSERIAL PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL UNIQUE REFERENCES games(id) ON DELETE CASCADE,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			difficulty INT NOT NULL,
			value INT NOT NULL,
			completed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_ranks (
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			difficulty INT NOT NULL,
			performance INT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, difficulty)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_user ON games(user_id, attempts_allowed)`,
		`CREATE INDEX IF NOT EXISTS idx_games_status ON games(status)`,
		`CREATE INDEX IF NOT EXISTS idx_game_history_game ON game_history(game_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user ON scores(user_id, completed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_user_ranks_difficulty ON user_ranks(difficulty, performance DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateUser inserts a new user. Names are unique.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrUserExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT id, name, email, created_at FROM users WHERE id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// GetUserByName retrieves a user by unique name
func (r *Repository) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	query := `SELECT id, name, email, created_at FROM users WHERE name = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, name).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by name: %w", err)
	}
	return &user, nil
}

// ListUsersWithEmail returns all users that have an email address
func (r *Repository) ListUsersWithEmail(ctx context.Context) ([]domain.User, error) {
	query := `SELECT id, name, email, created_at FROM users WHERE email <> ''`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users with email: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

// CreateGame inserts a new game row
func (r *Repository) CreateGame(ctx context.Context, game *domain.Game) error {
	query := `
		INSERT INTO games (id, user_id, target_word, correct_letters, incorrect_letters,
			attempts_allowed, attempts_remaining, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		game.ID,
		game.UserID,
		game.TargetWord,
		game.CorrectLetters,
		game.IncorrectLetters,
		game.AttemptsAllowed,
		game.AttemptsRemaining,
		string(game.Status),
		game.CreatedAt,
		game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}
	return nil
}

// GetGame retrieves a game by id, without its history
func (r *Repository) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	query := `
		SELECT id, user_id, target_word, correct_letters, incorrect_letters,
			attempts_allowed, attempts_remaining, status, created_at, updated_at
		FROM games
		WHERE id = $1
	`
	game, err := scanGame(r.pool.QueryRow(ctx, query, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return game, nil
}

// UpdateGame persists the post-guess game state and any new history
// entries in a single transaction, so every accepted guess lands with
// its log line or not at all.
func (r *Repository) UpdateGame(ctx context.Context, game *domain.Game, newEntries []domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE games
		SET correct_letters = $2, incorrect_letters = $3, attempts_remaining = $4,
			status = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		game.ID,
		game.CorrectLetters,
		game.IncorrectLetters,
		game.AttemptsRemaining,
		string(game.Status),
		game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}

	for _, entry := range newEntries {
		_, err := tx.Exec(ctx,
			`INSERT INTO game_history (game_id, guess, message, attempts_remaining_after, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			game.ID, entry.Guess, entry.Message, entry.AttemptsRemainingAfter, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("appending history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing game update: %w", err)
	}
	return nil
}

// GamesByUser returns every game a user has played at a difficulty
func (r *Repository) GamesByUser(ctx context.Context, userID string, difficulty domain.Difficulty) ([]*domain.Game, error) {
	query := `
		SELECT id, user_id, target_word, correct_letters, incorrect_letters,
			attempts_allowed, attempts_remaining, status, created_at, updated_at
		FROM games
		WHERE user_id = $1 AND attempts_allowed = $2
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, userID, int(difficulty))
	if err != nil {
		return nil, fmt.Errorf("listing games by user: %w", err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// UnfinishedGameIDsByUser returns ids of a user's in-progress games
func (r *Repository) UnfinishedGameIDsByUser(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT id FROM games WHERE user_id = $1 AND status = $2 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, userID, string(domain.StatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("listing unfinished games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CountUnfinishedGames returns how many in-progress games a user has
func (r *Repository) CountUnfinishedGames(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM games WHERE user_id = $1 AND status = $2`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, string(domain.StatusInProgress)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unfinished games: %w", err)
	}
	return count, nil
}

// ListInProgressGames returns all non-terminal games
func (r *Repository) ListInProgressGames(ctx context.Context) ([]*domain.Game, error) {
	query := `
		SELECT id, user_id, target_word, correct_letters, incorrect_letters,
			attempts_allowed, attempts_remaining, status, created_at, updated_at
		FROM games
		WHERE status = $1
	`
	rows, err := r.pool.Query(ctx, query, string(domain.StatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("listing in-progress games: %w", err)
	}
	defer rows.Close()
	return scanGames(rows)
}

// HistoryByGame returns a game's guess log in insertion order
func (r *Repository) HistoryByGame(ctx context.Context, gameID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT guess, message, attempts_remaining_after, created_at
		FROM game_history
		WHERE game_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting game history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.Guess, &entry.Message, &entry.AttemptsRemainingAfter, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateScore records the score for a finished game, at most once per game
func (r *Repository) CreateScore(ctx context.Context, score *domain.Score) error {
	query := `
		INSERT INTO scores (game_id, user_id, difficulty, value, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		score.GameID,
		score.UserID,
		int(score.Difficulty),
		score.Value,
		score.CompletedAt,
	).Scan(&score.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Score already recorded for this game.
			return nil
		}
		return fmt.Errorf("creating score: %w", err)
	}
	return nil
}

// ScoresByUser returns a user's scores, most recent first
func (r *Repository) ScoresByUser(ctx context.Context, userID string) ([]domain.Score, error) {
	query := `
		SELECT id, game_id, user_id, difficulty, value, completed_at
		FROM scores
		WHERE user_id = $1
		ORDER BY completed_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing scores by user: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// ListScores returns all scores, most recent first
func (r *Repository) ListScores(ctx context.Context) ([]domain.Score, error) {
	query := `
		SELECT id, game_id, user_id, difficulty, value, completed_at
		FROM scores
		ORDER BY completed_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// UpsertRank creates or replaces the single rank record for a user and
// difficulty. Last writer wins; the value is always a full recompute
// from the source games.
func (r *Repository) UpsertRank(ctx context.Context, rank domain.UserRank) error {
	query := `
		INSERT INTO user_ranks (user_id, difficulty, performance, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, difficulty)
		DO UPDATE SET performance = $3, updated_at = $4
	`
	_, err := r.pool.Exec(ctx, query, rank.UserID, int(rank.Difficulty), rank.Performance, rank.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting rank: %w", err)
	}
	return nil
}

// GetRank retrieves a user's rank at a difficulty
func (r *Repository) GetRank(ctx context.Context, userID string, difficulty domain.Difficulty) (*domain.UserRank, error) {
	query := `
		SELECT r.user_id, u.name, r.difficulty, r.performance, r.updated_at
		FROM user_ranks r
		JOIN users u ON u.id = r.user_id
		WHERE r.user_id = $1 AND r.difficulty = $2
	`
	var rank domain.UserRank
	var difficultyValue int
	err := r.pool.QueryRow(ctx, query, userID, int(difficulty)).Scan(
		&rank.UserID, &rank.UserName, &difficultyValue, &rank.Performance, &rank.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRankNotFound
		}
		return nil, fmt.Errorf("getting rank: %w", err)
	}
	rank.Difficulty = domain.Difficulty(difficultyValue)
	return &rank, nil
}

// ListRanks returns the top ranks at a difficulty, best first
func (r *Repository) ListRanks(ctx context.Context, difficulty domain.Difficulty, limit int) ([]domain.UserRank, error) {
	query := `
		SELECT r.user_id, u.name, r.difficulty, r.performance, r.updated_at
		FROM user_ranks r
		JOIN users u ON u.id = r.user_id
		WHERE r.difficulty = $1
		ORDER BY r.performance DESC, u.name
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, int(difficulty), limit)
	if err != nil {
		return nil, fmt.Errorf("listing ranks: %w", err)
	}
	defer rows.Close()

	var ranks []domain.UserRank
	for rows.Next() {
		var rank domain.UserRank
		var difficultyValue int
		if err := rows.Scan(&rank.UserID, &rank.UserName, &difficultyValue, &rank.Performance, &rank.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning rank: %w", err)
		}
		rank.Difficulty = domain.Difficulty(difficultyValue)
		ranks = append(ranks, rank)
	}
	return ranks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var game domain.Game
	var status string
	err := row.Scan(
		&game.ID,
		&game.UserID,
		&game.TargetWord,
		&game.CorrectLetters,
		&game.IncorrectLetters,
		&game.AttemptsAllowed,
		&game.AttemptsRemaining,
		&status,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	game.Status = domain.Status(status)
	return &game, nil
}

func scanGames(rows pgx.Rows) ([]*domain.Game, error) {
	var games []*domain.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, nil
}

func scanScores(rows pgx.Rows) ([]domain.Score, error) {
	var scores []domain.Score
	for rows.Next() {
		var score domain.Score
		var difficulty int
		err := rows.Scan(&score.ID, &score.GameID, &score.UserID, &difficulty, &score.Value, &score.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		score.Difficulty = domain.Difficulty(difficulty)
		scores = append(scores, score)
	}
	return scores, nil
}
