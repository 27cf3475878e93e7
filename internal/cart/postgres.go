package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

// PostgresPersister keeps session records in the cart_sessions table.
type PostgresPersister struct {
	db *sql.DB
}

func NewPostgresPersister(db *sql.DB) *PostgresPersister {
	return &PostgresPersister{db: db}
}

func (r *PostgresPersister) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload
		FROM cart_sessions
		WHERE session_id = $1
	`, sessionID).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("load cart session: %w", err)
	}
	return payload, nil
}

func (r *PostgresPersister) Save(ctx context.Context, sessionID string, record []byte) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Save"),
	)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_sessions (session_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, sessionID, string(record))
	if err != nil {
		log.Error("failed to upsert cart session", zap.Error(err))
		return fmt.Errorf("save cart session: %w", err)
	}

	log.Debug("cart session saved", zap.Int("bytes", len(record)))
	return nil
}

func (r *PostgresPersister) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_sessions
		WHERE session_id = $1
	`, sessionID); err != nil {
		return fmt.Errorf("delete cart session: %w", err)
	}
	return nil
}
