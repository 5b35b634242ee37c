package store

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"
)

func (d *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	if _, err := d.Bun.NewInsert().Model(e).Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := d.Bun.NewSelect().
		Model(&e).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, apperr.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &e, nil
}
