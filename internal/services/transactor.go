package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/ToolConnectBack/internal/repository"
)

type transactor interface {
	InTx(ctx context.Context, fn func(directory *ConversationDirectory, log *MessageLog) error) error
}

// PgTransactor runs directory and log work inside one Postgres transaction.
type PgTransactor struct {
	db        *pgxpool.Pool
	directory *ConversationDirectory
	log       *MessageLog
}

func NewPgTransactor(db *pgxpool.Pool, directory *ConversationDirectory, log *MessageLog) *PgTransactor {
	return &PgTransactor{db: db, directory: directory, log: log}
}

func (t *PgTransactor) InTx(ctx context.Context, fn func(directory *ConversationDirectory, log *MessageLog) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txDirectory := t.directory.WithStore(repository.NewConversationRepository(tx))
	txLog := t.log.WithStore(repository.NewMessageRepository(tx))

	if err := fn(txDirectory, txLog); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
