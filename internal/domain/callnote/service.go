package callnote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/repcompanion/repcompanion/internal/domain/directory"
	"github.com/repcompanion/repcompanion/internal/platform/kvstore"
	"github.com/repcompanion/repcompanion/pkg/models"
)

// Doctors resolves the doctor a note is recorded against.
type Doctors interface {
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
}

// notebook is the in-memory note list of one workspace.
type notebook struct {
	notes  []*models.CallNote
	loaded bool
}

// Service keeps the notebooks of the MaxWorkspaces most recently used
// workspaces. An evicted notebook is rebuilt from the seed and the persisted
// notes on its next use. The kv backend is expected to be workspace scoped.
type Service struct {
	kv      kvstore.Store
	doctors Doctors
	seed    []*models.CallNote
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	workspaces *lru.Cache[string, *notebook]
}

func NewService(kv kvstore.Store, doctors Doctors, seed []*models.CallNote, logger zerolog.Logger) *Service {
	return &Service{
		kv:         kv,
		doctors:    doctors,
		seed:       seed,
		logger:     logger.With().Str("component", "callnote").Logger(),
		now:        time.Now,
		workspaces: newNotebookCache(MaxWorkspaces),
	}
}

func newNotebookCache(size int) *lru.Cache[string, *notebook] {
	c, err := lru.New[string, *notebook](size)
	if err != nil {
		panic(fmt.Sprintf("callnote: notebook cache: %v", err))
	}
	return c
}

func validNotes(notes []*models.CallNote) error {
	for i, n := range notes {
		switch {
		case n == nil:
			return fmt.Errorf("entry %d is null", i)
		case n.ID == "":
			return fmt.Errorf("entry %d has no id", i)
		case n.DoctorID == "":
			return fmt.Errorf("note %s has no doctorId", n.ID)
		}
	}
	return nil
}

func (s *Service) persisted(ctx context.Context) []*models.CallNote {
	notes := kvstore.LoadJSON(ctx, s.kv, s.logger, KeyAddedNotes, validNotes)
	if notes == nil {
		return []*models.CallNote{}
	}
	return notes
}

// book returns the workspace notebook, creating it from the seed notes.
// Callers hold s.mu.
func (s *Service) book(ctx context.Context) *notebook {
	ws := kvstore.WorkspaceFromContext(ctx)
	b, ok := s.workspaces.Get(ws)
	if !ok {
		b = &notebook{notes: make([]*models.CallNote, 0, len(s.seed))}
		for _, n := range s.seed {
			c := *n
			b.notes = append(b.notes, &c)
		}
		s.workspaces.Add(ws, b)
	}
	return b
}

// merge appends the persisted notes whose id is not already present and
// returns how many were added.
func (b *notebook) merge(persisted []*models.CallNote) int {
	seen := make(map[string]bool, len(b.notes))
	for _, n := range b.notes {
		seen[n.ID] = true
	}
	merged := 0
	for _, n := range persisted {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		b.notes = append(b.notes, n)
		merged++
	}
	return merged
}

// loaded returns the workspace notebook with persisted notes merged in.
// Callers hold s.mu.
func (s *Service) loaded(ctx context.Context) *notebook {
	b := s.book(ctx)
	if !b.loaded {
		b.merge(s.persisted(ctx))
		b.loaded = true
	}
	return b
}

// Load merges the workspace's persisted notes into memory. Running it again
// adds nothing that is already present.
func (s *Service) Load(ctx context.Context) LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.book(ctx)
	merged := b.merge(s.persisted(ctx))
	b.loaded = true
	return LoadResult{Merged: merged, Total: len(b.notes)}
}

// Add records a note against doctorID. The note is prepended to the
// in-memory list and appended to the persisted one.
func (s *Service) Add(ctx context.Context, doctorID string, in NoteInput) (*models.CallNote, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("doctor %s: %w", doctorID, ErrNotFound)
		}
		return nil, err
	}

	text := strings.TrimSpace(in.Notes)
	if text == "" {
		return nil, invalid("notes are required")
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, invalid("date must be YYYY-MM-DD, got %q", in.Date)
	}
	createdBy := strings.TrimSpace(in.CreatedBy)
	if createdBy == "" {
		createdBy = DefaultCreatedBy
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate call note id: %w", err)
	}
	note := &models.CallNote{
		ID:        "cn-" + id.String(),
		DoctorID:  doctorID,
		Date:      date,
		Notes:     text,
		CreatedBy: createdBy,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.loaded(ctx)
	if err := kvstore.SaveJSON(ctx, s.kv, KeyAddedNotes, append(s.persisted(ctx), note)); err != nil {
		return nil, fmt.Errorf("save call note: %w", err)
	}
	b.notes = append([]*models.CallNote{note}, b.notes...)

	s.logger.Info().Str("note_id", note.ID).Str("doctor_id", doctorID).Msg("call note added")
	out := *note
	return &out, nil
}

// ForDoctor returns the doctor's notes, newest date first. Notes sharing a
// date keep their list order.
func (s *Service) ForDoctor(ctx context.Context, doctorID string) []*models.CallNote {
	s.mu.Lock()
	b := s.loaded(ctx)
	out := []*models.CallNote{}
	for _, n := range b.notes {
		if n.DoctorID == doctorID {
			c := *n
			out = append(out, &c)
		}
	}
	s.mu.Unlock()

	// YYYY-MM-DD sorts lexically.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Recent returns at most limit of the doctor's newest notes. A limit below 1
// means DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, doctorID string, limit int) []*models.CallNote {
	if limit < 1 {
		limit = DefaultRecentLimit
	}
	notes := s.ForDoctor(ctx, doctorID)
	if len(notes) > limit {
		notes = notes[:limit]
	}
	return notes
}
