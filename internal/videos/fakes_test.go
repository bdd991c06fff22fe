package videos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danribes/mystic-ecom-sub009/internal/models"
	"github.com/danribes/mystic-ecom-sub009/internal/stream"
	"github.com/danribes/mystic-ecom-sub009/pkg/queue"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*models.Video
	byProvider map[string]*models.Video
	active     map[string]bool // courseID/lessonID

	createErr error
	lookupErr error
	applyErr  error

	created []*models.Video
	applied []*models.Video
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:       map[uuid.UUID]*models.Video{},
		byProvider: map[string]*models.Video{},
		active:     map[string]bool{},
	}
}

func (s *fakeStore) add(v *models.Video) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	cp := *v
	s.byID[v.ID] = &cp
	if v.ProviderVideoID != "" {
		s.byProvider[v.ProviderVideoID] = &cp
	}
}

func (s *fakeStore) Create(ctx context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	s.add(v)
	s.created = append(s.created, v)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	v, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *fakeStore) GetByProviderID(ctx context.Context, providerID string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	v, ok := s.byProvider[providerID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *fakeStore) ListByCourse(ctx context.Context, courseID string) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.byID {
		if v.CourseID == courseID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeStore) HasActiveForLesson(ctx context.Context, courseID, lessonID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[courseID+"/"+lessonID], nil
}

func (s *fakeStore) ApplyReconcile(ctx context.Context, v *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	s.add(v)
	cp := *v
	s.applied = append(s.applied, &cp)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return errors.New("not found")
	}
	delete(s.byProvider, v.ProviderVideoID)
	delete(s.byID, id)
	return nil
}

// fakeProvider records ticket requests and serves canned responses.
type fakeProvider struct {
	ticket    *stream.UploadTicket
	ticketErr error
	deleteErr error

	ticketCalls []stream.TicketOptions
	deleted     []string
}

func (p *fakeProvider) IssueUploadTicket(ctx context.Context, opts stream.TicketOptions) (*stream.UploadTicket, error) {
	p.ticketCalls = append(p.ticketCalls, opts)
	if p.ticketErr != nil {
		return nil, p.ticketErr
	}
	t := *p.ticket
	t.ExpiresAt = opts.Expiry
	return &t, nil
}

func (p *fakeProvider) DeleteAsset(ctx context.Context, uid string) error {
	p.deleted = append(p.deleted, uid)
	return p.deleteErr
}

// fakeLessons answers LessonExists from a fixed set.
type fakeLessons struct {
	known map[string]bool // courseID/lessonID
	err   error
}

func (l *fakeLessons) LessonExists(ctx context.Context, courseID, lessonID string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.known[courseID+"/"+lessonID], nil
}

// fakeQueue records enqueued side-effect jobs.
type fakeQueue struct {
	purges   []queue.CachePurgePayload
	notifies []queue.NotifyPayload
	archives []queue.ArchivePayload
	err      error
}

func (q *fakeQueue) EnqueueArchive(ctx context.Context, p queue.ArchivePayload) error {
	q.archives = append(q.archives, p)
	return q.err
}

func (q *fakeQueue) EnqueueNotify(ctx context.Context, p queue.NotifyPayload) error {
	q.notifies = append(q.notifies, p)
	return q.err
}

func (q *fakeQueue) EnqueueCachePurge(ctx context.Context, p queue.CachePurgePayload) error {
	q.purges = append(q.purges, p)
	return q.err
}
