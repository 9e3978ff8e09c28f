package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// Filter narrows ListRecent. Zero values match everything.
type Filter struct {
	EntityType string
	EntityID   string
	Limit      int
}

// ListRecent returns the newest audit events first.
func (r *Reader) ListRecent(ctx context.Context, filter Filter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
		  al.id,
		  al.actor_user_id,
		  u.username,
		  al.action,
		  al.entity_type,
		  al.entity_id,
		  al.meta,
		  al.created_at
		FROM audit_log al
		LEFT JOIN admin_users u ON u.id = al.actor_user_id
		WHERE ($1 = '' OR al.entity_type = $1)
		  AND ($2 = '' OR al.entity_id = $2)
		ORDER BY al.created_at DESC
		LIMIT $3
	`, filter.EntityType, filter.EntityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var item Event
		var actorUserID uuid.NullUUID
		var actorName *string
		var metaRaw []byte

		if err := rows.Scan(&item.ID, &actorUserID, &actorName, &item.Action, &item.EntityType, &item.EntityID, &metaRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		if actorUserID.Valid {
			item.ActorUserID = &actorUserID.UUID
		}
		if actorName != nil {
			item.ActorName = *actorName
		}

		item.Meta = map[string]interface{}{}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &item.Meta)
		}

		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return out, nil
}
