package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is an input_requests.status value.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAnswered  RequestStatus = "answered"
	RequestCancelled RequestStatus = "cancelled"
	RequestTimeout   RequestStatus = "timeout"
)

func (s RequestStatus) terminal() bool {
	return s == RequestAnswered || s == RequestCancelled || s == RequestTimeout
}

// InputRequest is one row of the input_requests table.
type InputRequest struct {
	RequestID   string
	AgentID     string
	Question    string
	Context     string
	Options     string
	Status      RequestStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
	Response    string
}

// RequestStore manages input_requests, enforcing that at most one
// transition from pending to any terminal status occurs per row
// (spec.md §8 property 1).
type RequestStore struct{ s *Store }

// Create writes a new pending request row, returning its generated id.
func (r *RequestStore) Create(ctx context.Context, agentID, question, context_, options string) (string, error) {
	requestID := uuid.NewString()[:8]
	now := time.Now().UTC()
	err := r.s.execute(ctx, "requests.create", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO input_requests (request_id, agent_id, question, context, options, status, created_at)
			VALUES (?, ?, ?, ?, ?, 'pending', ?)`,
			requestID, agentID, question, context_, options, now)
		return err
	})
	if err != nil {
		return "", err
	}
	return requestID, nil
}

// Get reads one request row.
func (r *RequestStore) Get(ctx context.Context, requestID string) (*InputRequest, error) {
	row := r.s.queryRow(ctx, `
		SELECT request_id, agent_id, question, context, options, status, created_at, responded_at, response
		FROM input_requests WHERE request_id = ?`, requestID)
	return scanRequest(row)
}

func scanRequest(row *sql.Row) (*InputRequest, error) {
	var req InputRequest
	var ctxVal, options, response sql.NullString
	var respondedAt sql.NullTime
	var status string
	if err := row.Scan(&req.RequestID, &req.AgentID, &req.Question, &ctxVal, &options, &status, &req.CreatedAt, &respondedAt, &response); err != nil {
		return nil, err
	}
	req.Status = RequestStatus(status)
	req.Context = ctxVal.String
	req.Options = options.String
	req.Response = response.String
	if respondedAt.Valid {
		req.RespondedAt = &respondedAt.Time
	}
	return &req, nil
}

// Transition moves requestID from pending to a terminal status with a
// response body, inside one write transaction that re-fetches the row
// first (spec.md §4.1's "fetch current row inside same write
// transaction"). A transition away from an already-terminal row is
// silently ignored and logged, never an error — idempotent per
// spec.md §4.1/§4.6.
func (r *RequestStore) Transition(ctx context.Context, requestID string, newStatus RequestStatus, response string) error {
	return r.s.execute(ctx, "requests.transition", func(tx *sql.Tx) error {
		var currentStatus string
		row := tx.QueryRowContext(ctx, `SELECT status FROM input_requests WHERE request_id = ?`, requestID)
		if err := row.Scan(&currentStatus); err != nil {
			return err
		}
		if RequestStatus(currentStatus).terminal() {
			r.s.log.Info("store: ignoring transition from terminal request status",
				"request_id", requestID, "current_status", currentStatus, "attempted_status", newStatus)
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE input_requests SET status = ?, response = ?, responded_at = ?
			WHERE request_id = ? AND status = 'pending'`,
			string(newStatus), response, time.Now().UTC(), requestID)
		return err
	})
}

// FindPendingForSender returns the most recently created pending
// request for agentID, used by the C6 correlator's recency fallback
// tier. Returns nil, nil if none exists.
func (r *RequestStore) FindPendingForSender(ctx context.Context, agentID string, within time.Duration) (*InputRequest, error) {
	row := r.s.queryRow(ctx, `
		SELECT request_id, agent_id, question, context, options, status, created_at, responded_at, response
		FROM input_requests
		WHERE agent_id = ? AND status = 'pending' AND created_at >= ?
		ORDER BY created_at DESC LIMIT 1`,
		agentID, time.Now().UTC().Add(-within))
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return req, err
}
