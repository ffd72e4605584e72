// Package notes implements note CRUD with owner-scoped visibility.
// Every query takes the acting user's ID explicitly; a note that exists
// but belongs to someone else is indistinguishable from one that does
// not exist at all.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/quietpieces/ya-note/internal/db"
	"github.com/quietpieces/ya-note/internal/errs"
)

// Service handles note CRUD operations.
type Service struct {
	db *sql.DB
}

// NewService creates a new notes service.
func NewService(sqlDB *sql.DB) *Service {
	return &Service{db: sqlDB}
}

// Create creates a new note for authorID. When params.Slug is empty a
// slug is derived from the title. Returns FieldErrors for invalid input
// and for slug collisions; the storage UNIQUE constraint is the
// authority on uniqueness, so concurrent creates cannot both win.
func (s *Service) Create(ctx context.Context, authorID string, params CreateNoteParams) (*Note, error) {
	if authorID == "" {
		return nil, errs.New(errs.InvalidArgument, "author ID is required")
	}

	params.Title = strings.TrimSpace(params.Title)
	params.Slug = strings.TrimSpace(params.Slug)

	fieldErrs := validateNoteFields(params.Title, params.Text)
	if params.Slug == "" {
		params.Slug = Slugify(params.Title)
		if params.Slug == "" && params.Title != "" {
			fieldErrs = append(fieldErrs, FieldError{
				Field:   "title",
				Message: "could not derive a slug from this title, set one explicitly",
			})
		}
	} else if !ValidateSlug(params.Slug) {
		fieldErrs = append(fieldErrs, FieldError{
			Field:   "slug",
			Message: "slug must be at most 100 characters of letters, digits, hyphens and underscores",
		})
	} else if taken, err := s.slugExists(ctx, params.Slug); err != nil {
		return nil, err
	} else if taken {
		// Advisory only. Two concurrent creates can both pass this
		// check; the UNIQUE constraint below decides the loser.
		fieldErrs = append(fieldErrs, FieldError{Field: "slug", Message: params.Slug + SlugTakenWarning})
	}
	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (title, text, slug, author_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		params.Title, params.Text, params.Slug, authorID, now.Unix(),
	)
	if err != nil {
		if db.IsUniqueViolation(err, "notes.slug") {
			return nil, FieldErrors{{Field: "slug", Message: params.Slug + SlugTakenWarning}}
		}
		return nil, errs.Wrap(errs.Internal, "create note", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "read note ID", err)
	}

	return &Note{
		ID:        id,
		Title:     params.Title,
		Text:      params.Text,
		Slug:      params.Slug,
		AuthorID:  authorID,
		CreatedAt: now,
	}, nil
}

// slugExists reports whether any note, regardless of owner, already
// uses slug.
func (s *Service) slugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE slug = ?`, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.Internal, "check slug", err)
	}
	return true, nil
}

// ListOwnedBy returns all notes owned by authorID in creation order.
func (s *Service) ListOwnedBy(ctx context.Context, authorID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, text, slug, author_id, created_at
		 FROM notes WHERE author_id = ? ORDER BY id ASC`,
		authorID,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "list notes", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "scan note", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, "iterate notes", err)
	}
	return out, nil
}

// GetOwnedBy returns the note with slug if it is owned by authorID.
// Notes owned by someone else report not found, same as absent slugs.
func (s *Service) GetOwnedBy(ctx context.Context, authorID, slug string) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, text, slug, author_id, created_at
		 FROM notes WHERE slug = ? AND author_id = ?`,
		slug, authorID,
	)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.NotFound, "note not found")
		}
		return nil, errs.Wrap(errs.Internal, "get note", err)
	}
	return &n, nil
}

// Update replaces the title and text of the note with slug, if it is
// owned by authorID. The slug itself never changes.
func (s *Service) Update(ctx context.Context, authorID, slug string, params UpdateNoteParams) (*Note, error) {
	existing, err := s.GetOwnedBy(ctx, authorID, slug)
	if err != nil {
		return nil, err
	}

	params.Title = strings.TrimSpace(params.Title)
	if fieldErrs := validateNoteFields(params.Title, params.Text); len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, text = ? WHERE id = ?`,
		params.Title, params.Text, existing.ID,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "update note", err)
	}

	existing.Title = params.Title
	existing.Text = params.Text
	return existing, nil
}

// Delete removes the note with slug if it is owned by authorID.
func (s *Service) Delete(ctx context.Context, authorID, slug string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notes WHERE slug = ? AND author_id = ?`,
		slug, authorID,
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "delete note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Internal, "delete note", err)
	}
	if affected == 0 {
		return errs.New(errs.NotFound, "note not found")
	}
	return nil
}

func validateNoteFields(title, text string) FieldErrors {
	var fieldErrs FieldErrors
	if title == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "title", Message: "title is required"})
	} else if len([]rune(title)) > MaxTitleLength {
		fieldErrs = append(fieldErrs, FieldError{Field: "title", Message: "title must be at most 100 characters"})
	}
	if strings.TrimSpace(text) == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "text", Message: "text is required"})
	}
	return fieldErrs
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var (
		n         Note
		createdAt int64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Text, &n.Slug, &n.AuthorID, &createdAt); err != nil {
		return Note{}, err
	}
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	return n, nil
}
