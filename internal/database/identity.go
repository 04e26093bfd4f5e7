// internal/database/identity.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ownedTable is a table whose rows belong to a character through column.
type ownedTable struct {
	name   string
	column string
}

// characterTables are cleared, in order, before the characters themselves.
var characterTables = []ownedTable{
	{"character_account_data", "guid"},
	{"character_action", "guid"},
	{"character_aura", "guid"},
	{"character_homebind", "guid"},
	{"character_instance", "guid"},
	{"character_inventory", "guid"},
	{"item_instance", "owner_guid"},
	{"character_pet", "owner"},
	{"character_queststatus", "guid"},
	{"character_queststatus_rewarded", "guid"},
	{"character_reputation", "guid"},
	{"character_spell", "guid"},
	{"character_spell_cooldown", "guid"},
	{"character_stats", "guid"},
	{"character_skills", "guid"},
	{"character_glyphs", "guid"},
	{"character_talent", "guid"},
}

// IdentityStore deletes the throwaway accounts created for lobby players.
type IdentityStore struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// NewIdentityStore wraps pool.
func NewIdentityStore(pool *pgxpool.Pool, logger logrus.FieldLogger) *IdentityStore {
	return &IdentityStore{pool: pool, log: logger}
}

// DeleteIdentity removes account, its characters and everything they own in
// one transaction. Deleting an unknown account is not an error.
func (s *IdentityStore) DeleteIdentity(ctx context.Context, account uuid.UUID) error {
	var characters int64
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, t := range characterTables {
			q := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (SELECT guid FROM characters WHERE account_id = $1)`, t.name, t.column)
			if _, err := tx.Exec(ctx, q, account); err != nil {
				return fmt.Errorf("clear %s: %w", t.name, err)
			}
		}
		ct, err := tx.Exec(ctx, `DELETE FROM characters WHERE account_id = $1`, account)
		if err != nil {
			return fmt.Errorf("delete characters: %w", err)
		}
		characters = ct.RowsAffected()
		if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, account); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"account":    account,
		"characters": characters,
	}).Debug("identity deleted")
	return nil
}

// LogCleaner stands in for IdentityStore when no database is configured. It
// only records what would have been deleted.
type LogCleaner struct {
	Log logrus.FieldLogger
}

func (c LogCleaner) DeleteIdentity(ctx context.Context, account uuid.UUID) error {
	c.Log.WithField("account", account).Info("no database configured; skipping identity cleanup")
	return nil
}
