package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.DeliveryStatus == "" {
		n.DeliveryStatus = entity.NotificationStatusPending
	}

	query := `
		INSERT INTO notifications (
			id, user_id, type, title, message, entity_type, entity_id,
			is_read, delivery_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.EntityType,
		n.EntityID,
		n.DeliveryStatus,
		utc(n.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, entity_type, entity_id, is_read, read_at,
			delivery_status, delivered_at, error_message, created_at
		FROM notifications
		WHERE user_id = ?
	`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var readAt, deliveredAt sql.NullTime
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.EntityType,
			&n.EntityID,
			&n.IsRead,
			&readAt,
			&n.DeliveryStatus,
			&deliveredAt,
			&n.ErrorMessage,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ReadAt = timePtr(readAt)
		n.DeliveredAt = timePtr(deliveredAt)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead marks a notification read for its owner. Other users' rows are untouched.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	query := `UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND user_id = ? AND is_read = 0`

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, query, utc(at), id, userID); err != nil {
		r.logger.Error("Failed to mark notification read", zap.String("notification_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// UpdateDelivery records the outcome of pushing a notification to chat
func (r *NotificationRepository) UpdateDelivery(ctx context.Context, id, status, errorMsg string, at time.Time) error {
	query := `UPDATE notifications SET delivery_status = ?, error_message = ?, delivered_at = ? WHERE id = ?`

	var deliveredAt interface{}
	if status == entity.NotificationStatusSent {
		deliveredAt = utc(at)
	}

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, query, status, errorMsg, deliveredAt, id); err != nil {
		r.logger.Error("Failed to update notification delivery",
			zap.String("notification_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update notification delivery: %w", err)
	}
	return nil
}

// ExistsSince reports whether a matching notification was created at or after since
func (r *NotificationRepository) ExistsSince(ctx context.Context, userID, notificationType, entityID string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = ? AND type = ? AND entity_id = ? AND created_at >= ?
		)
	`

	var exists bool
	if err := executorFor(ctx, r.db).QueryRowContext(ctx, query, userID, notificationType, entityID, utc(since)).Scan(&exists); err != nil {
		r.logger.Error("Failed to check notification", zap.String("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return exists, nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
