package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"flashnotes/internal/domain"
)

const uniqueViolation = "23505"

const noteColumns = `id, owner_id, title, question, answer, explanation, created_at, miss_count`

// NoteStore keeps notes in the notes table. Every query filters by owner.
type NoteStore struct {
	pool *pgxpool.Pool
}

func NewNoteStore(pool *pgxpool.Pool) *NoteStore {
	return &NoteStore{pool: pool}
}

func (s *NoteStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Note, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+noteColumns+` FROM notes WHERE owner_id=$1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]domain.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func (s *NoteStore) FindByTitle(ctx context.Context, ownerID, title string) (domain.Note, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE owner_id=$1 AND title=$2`, ownerID, title)
	n, err := scanNote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Note{}, false, nil
	}
	if err != nil {
		return domain.Note{}, false, fmt.Errorf("find note by title: %w", err)
	}
	return n, true, nil
}

// Insert relies on the (owner_id, title) unique constraint to close the race
// left open by the caller's pre-check.
func (s *NoteStore) Insert(ctx context.Context, note domain.Note) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`,
		id, note.OwnerID, note.Title, note.Question, note.Answer, note.Explanation, note.CreatedAt)
	if err != nil {
		return "", mapError("insert note", err)
	}
	return id, nil
}

func (s *NoteStore) Update(ctx context.Context, ownerID, id string, patch domain.NotePatch) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notes SET
			title = COALESCE($3::text, title),
			question = COALESCE($4::text, question),
			answer = COALESCE($5::text, answer),
			explanation = COALESCE($6::text, explanation)
		WHERE owner_id=$1 AND id=$2`,
		ownerID, id, patch.Title, patch.Question, patch.Answer, patch.Explanation)
	if err != nil {
		return mapError("update note", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

func (s *NoteStore) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// IncrementMissCount bumps the counter inside the database so concurrent
// increments are not lost.
func (s *NoteStore) IncrementMissCount(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notes SET miss_count = miss_count + 1 WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("increment miss count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

func scanNote(row pgx.Row) (domain.Note, error) {
	var n domain.Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Question, &n.Answer, &n.Explanation, &n.CreatedAt, &n.MissCount)
	return n, err
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateTitle
	}
	return fmt.Errorf("%s: %w", op, err)
}
