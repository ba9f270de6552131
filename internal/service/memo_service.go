package service

import (
	"context"
	"errors"
	"time"

	"memo-server/internal/domain"
	"memo-server/internal/repository"
	"memo-server/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoEventPublisher is notified after every successful mutation.
type MemoEventPublisher interface {
	BroadcastMemoEvent(msgType websocket.MessageType, memo *domain.Memo) error
}

type MemoService struct {
	repo     repository.MemoRepository
	backups  repository.BackupRepository
	events   MemoEventPublisher
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewMemoService(
	repo repository.MemoRepository,
	backups repository.BackupRepository,
	events MemoEventPublisher,
	logger *zap.Logger,
) *MemoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoService{
		repo:     repo,
		backups:  backups,
		events:   events,
		validate: domain.NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

// Memo returns a handle for id. The id is not checked.
func (s *MemoService) Memo(id string) *Memo {
	m := NewMemo(id, s.repo, s.backups)
	m.now = s.now
	return m
}

// Validate applies the first-line rule; it returns *domain.ValidationError on rejection.
func (s *MemoService) Validate(content string) error {
	return domain.ValidateContent(s.validate, content)
}

// List returns all memos, most recently modified first.
func (s *MemoService) List(ctx context.Context) (*MemoList, error) {
	list, err := LoadMemoList(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	list.SortByRecency()
	return list, nil
}

func (s *MemoService) Get(ctx context.Context, id string) (*domain.Memo, error) {
	if err := domain.ValidateID(s.validate, id); err != nil {
		return nil, domain.ErrMemoNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func (s *MemoService) Create(ctx context.Context, content string) (*domain.Memo, error) {
	if err := s.Validate(content); err != nil {
		return nil, err
	}

	memo := s.Memo(uuid.New().String())
	if err := memo.Save(ctx, content); err != nil {
		return nil, err
	}

	return s.reload(ctx, memo, websocket.TypeMemoCreated)
}

// Update patches an existing memo. A memo that vanished is reported as
// domain.ErrMemoNotFound even when content is also invalid.
func (s *MemoService) Update(ctx context.Context, id, content string) (*domain.Memo, error) {
	if err := domain.ValidateID(s.validate, id); err != nil {
		return nil, domain.ErrMemoNotFound
	}

	memo := s.Memo(id)
	exists, err := memo.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrMemoNotFound
	}

	if err := s.Validate(content); err != nil {
		return nil, err
	}

	if err := memo.Patch(ctx, content); err != nil {
		return nil, err
	}

	return s.reload(ctx, memo, websocket.TypeMemoUpdated)
}

// Delete removes the memo if present. Unknown or malformed ids are ignored.
func (s *MemoService) Delete(ctx context.Context, id string) error {
	if err := domain.ValidateID(s.validate, id); err != nil {
		return nil
	}

	memo := s.Memo(id)
	existed, err := memo.Exists(ctx)
	if err != nil {
		return err
	}
	if err := memo.Delete(ctx); err != nil {
		return err
	}

	if existed {
		s.publish(websocket.TypeMemoDeleted, &domain.Memo{ID: id, UpdatedAt: s.now()})
	}
	return nil
}

// GetBackup returns the content held in the memo's backup slot.
func (s *MemoService) GetBackup(ctx context.Context, id string) (*domain.Memo, error) {
	if err := domain.ValidateID(s.validate, id); err != nil {
		return nil, domain.ErrMemoNotFound
	}
	return s.backups.FindBackup(ctx, id)
}

// Restore patches the memo with its backup content, so the content being
// replaced becomes the new backup. A deleted memo is recreated. A backup
// with an empty first line is rejected like any other submission.
func (s *MemoService) Restore(ctx context.Context, id string) (*domain.Memo, error) {
	backup, err := s.GetBackup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(backup.Content); err != nil {
		return nil, err
	}

	memo := s.Memo(id)
	if err := memo.Patch(ctx, backup.Content); err != nil {
		return nil, err
	}

	return s.reload(ctx, memo, websocket.TypeMemoUpdated)
}

func (s *MemoService) reload(ctx context.Context, memo *Memo, msgType websocket.MessageType) (*domain.Memo, error) {
	saved, err := s.repo.FindByID(ctx, memo.ID())
	if err != nil {
		return nil, err
	}
	s.publish(msgType, saved)
	return saved, nil
}

func (s *MemoService) publish(msgType websocket.MessageType, memo *domain.Memo) {
	if s.events == nil {
		return
	}
	if err := s.events.BroadcastMemoEvent(msgType, memo); err != nil {
		s.logger.Warn("failed to broadcast memo event",
			zap.String("type", string(msgType)),
			zap.String("memo_id", memo.ID),
			zap.Error(err),
		)
	}
}

// IsNotFound reports whether err means the memo does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrMemoNotFound)
}

// AsValidationError extracts a rejected submission from err.
func AsValidationError(err error) (*domain.ValidationError, bool) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
