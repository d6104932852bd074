package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// ResetTableStatus puts a table into PROCESSING with a fresh reset token and
// returns the token. Workers holding an older token lose the right to
// change the status.
func (s *SQLiteStore) ResetTableStatus(ctx context.Context, id core.IDAndVersion) (string, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	_, err = q.ExecContext(ctx,
		`INSERT INTO table_status (table_id, version, state, reset_token, changed_on)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (table_id, version) DO UPDATE SET
		   state = excluded.state,
		   reset_token = excluded.reset_token,
		   progress_message = '',
		   progress_current = 0,
		   progress_total = 0,
		   error_message = '',
		   error_details = '',
		   changed_on = excluded.changed_on`,
		id.ID, versionKey(id), string(core.TableStateProcessing), token, nowMillis())
	if err != nil {
		return "", fmt.Errorf("failed to reset table status: %w", err)
	}
	s.logger.Debug("reset table status", "table", id.String(), "token", token)
	return token, nil
}

// GetTableStatus returns the status of a table.
func (s *SQLiteStore) GetTableStatus(ctx context.Context, id core.IDAndVersion) (*core.TableStatus, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	st := &core.TableStatus{ID: id}
	var state string
	var changed int64
	err = q.QueryRowContext(ctx,
		`SELECT state, reset_token, last_change_etag, progress_message, progress_current, progress_total,
		        error_message, error_details, changed_on
		 FROM table_status WHERE table_id = ? AND version = ?`, id.ID, versionKey(id)).
		Scan(&state, &st.ResetToken, &st.LastTableChangeEtag, &st.ProgressMessage, &st.ProgressCurrent,
			&st.ProgressTotal, &st.ErrorMessage, &st.ErrorDetails, &changed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "table status", Key: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table status: %w", err)
	}
	st.State = core.TableState(state)
	st.ChangedOn = time.UnixMilli(changed).UTC()
	return st, nil
}

// AttemptToSetTableStatusToAvailable marks a table AVAILABLE if token is
// still its current reset token.
func (s *SQLiteStore) AttemptToSetTableStatusToAvailable(ctx context.Context, id core.IDAndVersion, token, etag string) error {
	return s.updateWithToken(ctx, id, token,
		`UPDATE table_status SET state = ?, last_change_etag = ?, error_message = '', error_details = '', changed_on = ?
		 WHERE table_id = ? AND version = ? AND reset_token = ?`,
		string(core.TableStateAvailable), etag, nowMillis())
}

// AttemptToSetTableStatusToFailed marks a table PROCESSING_FAILED if token
// is still its current reset token.
func (s *SQLiteStore) AttemptToSetTableStatusToFailed(ctx context.Context, id core.IDAndVersion, token, message, details string) error {
	return s.updateWithToken(ctx, id, token,
		`UPDATE table_status SET state = ?, error_message = ?, error_details = ?, changed_on = ?
		 WHERE table_id = ? AND version = ? AND reset_token = ?`,
		string(core.TableStateProcessingFailed), message, details, nowMillis())
}

// AttemptToUpdateTableProgress records progress if token is still the
// current reset token.
func (s *SQLiteStore) AttemptToUpdateTableProgress(ctx context.Context, id core.IDAndVersion, token, message string, current, total int64) error {
	return s.updateWithToken(ctx, id, token,
		`UPDATE table_status SET progress_message = ?, progress_current = ?, progress_total = ?, changed_on = ?
		 WHERE table_id = ? AND version = ? AND reset_token = ?`,
		message, current, total, nowMillis())
}

// DeleteTableStatus removes the status of a table.
func (s *SQLiteStore) DeleteTableStatus(ctx context.Context, id core.IDAndVersion) error {
	q, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM table_status WHERE table_id = ? AND version = ?`, id.ID, versionKey(id)); err != nil {
		return fmt.Errorf("failed to delete table status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) updateWithToken(ctx context.Context, id core.IDAndVersion, token, query string, args ...any) error {
	q, err := s.conn(ctx)
	if err != nil {
		return err
	}
	args = append(args, id.ID, versionKey(id), token)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update table status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update table status: %w", err)
	}
	if n == 0 {
		return &core.InvalidStatusTokenError{Table: id}
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
