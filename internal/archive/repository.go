package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-classroom/backend/internal/models"
)

// ErrNotFound is returned when an archived row does not exist.
var ErrNotFound = errors.New("archive: not found")

// Repository handles archive persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an archive repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SavePoll inserts an ended poll. Saving the same poll twice is a no-op.
func (r *Repository) SavePoll(ctx context.Context, e models.PollHistoryEntry) error {
	options, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	correct, err := json.Marshal(e.CorrectAnswers)
	if err != nil {
		return fmt.Errorf("marshal correct answers: %w", err)
	}
	const query = `INSERT INTO polls (id, question, options, correct_answers, duration, start_time, end_time, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	_, err = r.pool.Exec(ctx, query, e.ID, e.Question, options, correct, e.Duration, e.StartTime, e.EndTime, e.EndedAt)
	return err
}

const pollColumns = `id, question, options, correct_answers, duration, start_time, end_time, ended_at, report_url, archived_at`

// GetPoll returns an archived poll by ID.
func (r *Repository) GetPoll(ctx context.Context, id uuid.UUID) (*models.ArchivedPoll, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id)
	p, err := scanPoll(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPolls returns the most recently ended polls first.
func (r *Repository) ListPolls(ctx context.Context, limit int) ([]models.ArchivedPoll, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pollColumns+` FROM polls ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.ArchivedPoll, 0)
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// SetReportURL records where the rendered report of a poll was uploaded.
func (r *Repository) SetReportURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE polls SET report_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPoll(row pgx.Row) (*models.ArchivedPoll, error) {
	var (
		p       models.ArchivedPoll
		options []byte
		correct []byte
	)
	err := row.Scan(&p.ID, &p.Question, &options, &correct, &p.Duration, &p.StartTime, &p.EndTime, &p.EndedAt, &p.ReportURL, &p.ArchivedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &p.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := json.Unmarshal(correct, &p.CorrectAnswers); err != nil {
		return nil, fmt.Errorf("unmarshal correct answers: %w", err)
	}
	return &p, nil
}

// SaveChatMessage inserts a relayed chat message.
func (r *Repository) SaveChatMessage(ctx context.Context, m models.ChatMessage) error {
	var clientTS []byte
	if len(m.Timestamp) > 0 {
		clientTS = m.Timestamp
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, message, sender, sender_type, client_ts) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		m.ID, m.Message, m.Sender, m.SenderType, clientTS)
	return err
}

// LogJoin opens an attendance row when a participant is added to the roster.
func (r *Repository) LogJoin(ctx context.Context, p models.Participant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attendance_logs (participant_id, name, joined_at) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.JoinedAt)
	return err
}

// LogLeave closes the most recent open attendance row of the participant.
func (r *Repository) LogLeave(ctx context.Context, p models.Participant, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attendance_logs a SET left_at = NOW(), left_reason = $2,
		   stay_seconds = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - a.joined_at))::BIGINT)
		 FROM (SELECT id FROM attendance_logs WHERE participant_id = $1 AND left_at IS NULL ORDER BY joined_at DESC LIMIT 1) AS sub
		 WHERE a.id = sub.id`,
		p.ID, reason)
	return err
}

// ListAttendance returns attendance rows, most recent first.
func (r *Repository) ListAttendance(ctx context.Context, limit int) ([]models.AttendanceLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, participant_id, name, joined_at, left_at, COALESCE(left_reason, ''), stay_seconds
		 FROM attendance_logs ORDER BY joined_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.AttendanceLog, 0)
	for rows.Next() {
		var row models.AttendanceLog
		if err := rows.Scan(&row.ID, &row.ParticipantID, &row.Name, &row.JoinedAt, &row.LeftAt, &row.LeftReason, &row.StaySeconds); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
