package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/liteclaw/internal/providers"
	"github.com/nextlevelbuilder/liteclaw/internal/store"
)

// EnsureSession creates the session row if it does not exist.
func (s *Store) EnsureSession(ctx context.Context, id, parentID string) error {
	var parent sql.NullString
	if parentID != "" {
		parent = sql.NullString{String: parentID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, parent_session_id)
		VALUES (?, ?)
		ON CONFLICT(session_id) DO NOTHING`, id, parent)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// AddMessage appends a message, dropping it when identical to the most
// recent row of the session. Retries against streaming providers tend
// to replay the same message.
func (s *Store) AddMessage(ctx context.Context, sessionID string, msg providers.Message) error {
	if err := s.EnsureSession(ctx, sessionID, ""); err != nil {
		return err
	}

	var toolCallsJSON sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCallsJSON = sql.NullString{String: string(data), Valid: true}
	}

	dup, err := s.isAdjacentDuplicate(ctx, sessionID, msg)
	if err != nil {
		return err
	}
	if dup {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, tool_calls, tool_call_id, name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, msg.Role, msg.Content, toolCallsJSON,
		nullIfEmpty(msg.ToolCallID), nullIfEmpty(msg.Name))
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (s *Store) isAdjacentDuplicate(ctx context.Context, sessionID string, msg providers.Message) (bool, error) {
	var role string
	var content, toolCallID, name sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT role, content, tool_call_id, name FROM messages
		WHERE session_id = ?
		ORDER BY id DESC LIMIT 1`, sessionID).Scan(&role, &content, &toolCallID, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("last message: %w", err)
	}
	return role == msg.Role &&
		content.String == msg.Content &&
		toolCallID.String == msg.ToolCallID &&
		name.String == msg.Name, nil
}

// Messages returns the most recent limit messages in chronological order.
func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]providers.Message, error) {
	query := `
		SELECT role, content, tool_calls, tool_call_id, name FROM messages
		WHERE session_id = ?
		ORDER BY id DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []providers.Message
	for rows.Next() {
		var role string
		var content, toolCallsJSON, toolCallID, name sql.NullString
		if err := rows.Scan(&role, &content, &toolCallsJSON, &toolCallID, &name); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg := providers.Message{
			Role:       role,
			Content:    content.String,
			ToolCallID: toolCallID.String,
			Name:       name.String,
		}
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows came newest-first; flip to chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ClearSession deletes all messages for a session.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]store.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, parent_session_id, created_at FROM sessions
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []store.Session
	for rows.Next() {
		var sess store.Session
		var parent sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&sess.ID, &parent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.ParentID = parent.String
		sess.CreatedAt = createdAt
		out = append(out, sess)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
