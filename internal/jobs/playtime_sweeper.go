package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/internal/relay"
	"github.com/relkin/staffportal/internal/repository"
)

const sweepInterval = time.Minute

// PlaytimeSweeper credits every player currently in a session with one
// minute of playtime, once a minute, per connected endpoint. Each
// endpoint's sweep is a single transaction so a half-applied minute never
// persists.
type PlaytimeSweeper struct {
	Hub            *relay.Hub
	UserRepository *repository.UserRepository
	DB             *pgxpool.Pool
	Log            *zap.Logger
}

func NewPlaytimeSweeper(hub *relay.Hub, userRepository *repository.UserRepository, db *pgxpool.Pool, zap *zap.Logger) *PlaytimeSweeper {
	return &PlaytimeSweeper{
		Hub:            hub,
		UserRepository: userRepository,
		DB:             db,
		Log:            zap,
	}
}

func (sweeper *PlaytimeSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweeper.sweep(ctx)
		}
	}
}

func (sweeper *PlaytimeSweeper) sweep(ctx context.Context) {
	for _, sess := range sweeper.Hub.VerifiedSessions() {
		callCtx, cancel := context.WithTimeout(ctx, relay.CallTimeout)
		players, ok := sess.Players(callCtx, nil)
		cancel()
		if !ok {
			sweeper.Log.Debug("roster fetch failed during sweep", zap.String("identifier", sess.Identifier()))
			continue
		}

		err := sweeper.credit(ctx, players)
		if err != nil {
			sweeper.Log.Warn("playtime sweep failed for endpoint",
				zap.String("identifier", sess.Identifier()),
				zap.Error(err))
		}
	}
}

func (sweeper *PlaytimeSweeper) credit(ctx context.Context, players []model.Player) error {
	tx, err := sweeper.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		rollbackErr := tx.Rollback(ctx)
		if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			sweeper.Log.Warn("sweep rollback failed", zap.Error(rollbackErr))
		}
	}()

	for _, player := range players {
		// players that never resolved to an identity earn nothing
		if player.Id == "" {
			continue
		}
		err = sweeper.UserRepository.IncrementPlaytime(ctx, tx, player.Id, 1)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
