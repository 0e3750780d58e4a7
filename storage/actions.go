package storage

import (
	"context"
	"encoding/json"

	"taskboard-api/domain"
)

// CreateAction appends an immutable audit record to a card's timeline.
func (s *Storage) CreateAction(ctx context.Context, cardID, userID domain.ID, typ domain.ActionType, data domain.ActionData) (domain.Action, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return domain.Action{}, err
	}
	a := domain.Action{CardID: cardID, UserID: userID, Type: typ, Data: data}
	err = s.pool.QueryRow(ctx,
		`insert into action(card_id, user_id, type, data) values($1, $2, $3, $4)
		 returning id, created_at`,
		cardID, userID, string(typ), payload).
		Scan(&a.ID, &a.CreatedAt)
	return a, err
}

// ListWebhooks returns every enabled webhook registration.
func (s *Storage) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	rows, err := s.pool.Query(ctx,
		`select id, name, url, coalesce(access_token, ''), enabled from webhook where enabled order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Webhook
	for rows.Next() {
		var w domain.Webhook
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.AccessToken, &w.Enabled); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
