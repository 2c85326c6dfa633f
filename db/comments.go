package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// defaultTemplateComments используются, пока в базе нет импортированных шаблонов.
var defaultTemplateComments = []string{
	"Diagnosis completed",
	"Interesting breakdown",
	"Replacement part required",
	"Repair finished successfully",
	"Very strange, we will investigate",
	"Waiting for spare parts delivery",
}

// AddComment добавляет комментарий к заявке и взводит флаг has_comment.
// Непустой repairParts дописывается к списку запчастей заявки, не заменяя его.
func (s *Storage) AddComment(ctx context.Context, requestID, masterID int64, message string, repairParts *string) (*Comment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM repair_requests WHERE request_id = ?`, requestID); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	c := &Comment{Message: message, MasterID: masterID, RequestID: requestID}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO comments (message, master_id, request_id)
        VALUES (?, ?, ?)
        RETURNING comment_id, created_at`, message, masterID, requestID).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE repair_requests SET has_comment = 1 WHERE request_id = ?`, requestID); err != nil {
		return nil, err
	}

	if repairParts != nil && *repairParts != "" {
		_, err := tx.ExecContext(ctx, `
            UPDATE repair_requests
            SET repair_parts = COALESCE(repair_parts || ', ', '') || ?
            WHERE request_id = ?`, *repairParts, requestID)
		if err != nil {
			return nil, err
		}
	}
	return c, tx.Commit()
}

// InsertCommentTx вставляет комментарий внутри чужой транзакции
// (импорт, аудит назначения мастера) и взводит has_comment у заявки.
func InsertCommentTx(ctx context.Context, q sqlx.ExtContext, requestID, masterID int64, externalID *int64, message string) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO comments (external_id, message, master_id, request_id)
        VALUES (?, ?, ?, ?)`, externalID, message, masterID, requestID)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE repair_requests SET has_comment = 1 WHERE request_id = ?`, requestID)
	return err
}

// ListComments возвращает все комментарии (денормализованная проекция).
func (s *Storage) ListComments(ctx context.Context) ([]CommentView, error) {
	comments := []CommentView{}
	err := s.db.SelectContext(ctx, &comments,
		`SELECT * FROM vw_comments_full ORDER BY created_at DESC, comment_id DESC`)
	return comments, err
}

// ListCommentsForRequest возвращает комментарии одной заявки.
func (s *Storage) ListCommentsForRequest(ctx context.Context, requestID int64) ([]CommentView, error) {
	comments := []CommentView{}
	err := s.db.SelectContext(ctx, &comments,
		`SELECT * FROM vw_comments_full WHERE request_id = ? ORDER BY created_at, comment_id`, requestID)
	return comments, err
}

// TemplateComments возвращает готовые варианты комментариев:
// уникальные сообщения из импортированного файла либо стандартный набор.
func (s *Storage) TemplateComments(ctx context.Context) ([]string, error) {
	templates := []string{}
	err := s.db.SelectContext(ctx, &templates, `
        SELECT DISTINCT message FROM comments
        WHERE external_id IS NOT NULL ORDER BY message`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if len(templates) == 0 {
		templates = append(templates, defaultTemplateComments...)
	}
	return templates, nil
}
