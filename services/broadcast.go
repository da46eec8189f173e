package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"admissions-api/config"
	"admissions-api/models"
	"admissions-api/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BroadcastFilter selects recipients. Zero value means every non-rejected application.
type BroadcastFilter struct {
	Status               string `json:"status,omitempty"`
	CourseFeeOutstanding bool   `json:"course_fee_outstanding,omitempty"`
}

type BroadcastInput struct {
	Subject     string `validate:"required,max=255"`
	Message     string `validate:"required,max=20000"`
	Filter      BroadcastFilter
	TriggeredBy *uint
}

type broadcastRecipient struct {
	Name  string
	Email string
}

// BroadcastService sends admin bulk mail on a fixed worker pool, detached from the request.
type BroadcastService struct {
	db       *gorm.DB
	notifier Notifier
	workers  int
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewBroadcastService(db *gorm.DB, notifier Notifier, workers int) *BroadcastService {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if workers <= 0 {
		workers = 4
	}
	return &BroadcastService{db: db, notifier: notifier, workers: workers, timeout: outboxSendTimeout}
}

// Start records the run, spawns delivery and returns without waiting for it.
func (s *BroadcastService) Start(ctx context.Context, in BroadcastInput) (*models.MailBroadcast, error) {
	in.Subject = utils.SanitizeInput(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Filter.Status != "" {
		status, ok := utils.CanonicalStatus(in.Filter.Status)
		if !ok {
			return nil, InvalidStatus(in.Filter.Status)
		}
		in.Filter.Status = status
	}

	recipients, err := s.recipients(ctx, in.Filter)
	if err != nil {
		return nil, Storage("Failed to load broadcast recipients", err)
	}

	filterJSON, err := json.Marshal(in.Filter)
	if err != nil {
		return nil, Storage("Failed to start broadcast", err)
	}
	run := &models.MailBroadcast{
		CorrelationID: uuid.NewString(),
		Subject:       in.Subject,
		Filter:        datatypes.JSON(filterJSON),
		TriggeredBy:   in.TriggeredBy,
		Status:        models.MailBroadcastStatusRunning,
		Recipients:    len(recipients),
		StartedAt:     nowFunc(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, Storage("Failed to start broadcast", err)
	}

	s.wg.Add(1)
	go func(runID uint) {
		defer s.wg.Done()
		s.deliver(persistentContext(ctx), runID, recipients, in.Subject, in.Message)
	}(run.ID)

	log.Printf("mail broadcast %s started: recipients=%d", run.CorrelationID, run.Recipients)
	return run, nil
}

// Wait blocks until every started broadcast has finished.
func (s *BroadcastService) Wait() {
	s.wg.Wait()
}

func (s *BroadcastService) recipients(ctx context.Context, f BroadcastFilter) ([]broadcastRecipient, error) {
	q := s.db.WithContext(ctx).Model(&models.Application{}).
		Select("full_name AS name, email").
		Where("email <> ''")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	} else {
		q = q.Where("status <> ?", models.StatusRejected)
	}
	if f.CourseFeeOutstanding {
		verified := s.db.WithContext(ctx).Model(&models.Payment{}).
			Select("application_id").
			Where("payment_type = ? AND status = ?", models.PaymentTypeCourseFee, models.PaymentStatusVerified).
			Group("application_id").
			Having("SUM(amount) >= ?", models.CourseFeeTotal)
		q = q.Where("application_id NOT IN (?)", verified)
	}

	var rows []broadcastRecipient
	if err := q.Order("application_id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := strings.ToLower(strings.TrimSpace(r.Email))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, nil
}

func (s *BroadcastService) deliver(ctx context.Context, runID uint, recipients []broadcastRecipient, subject, message string) {
	var sent, failed atomic.Int64
	jobs := make(chan broadcastRecipient)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for r := range jobs {
				sendCtx, cancel := context.WithTimeout(gctx, s.timeout)
				err := s.notifier.Send(sendCtx, r.Email, subject, buildFormalEmailHTML(subject, r.Name, message))
				cancel()
				if err != nil {
					failed.Add(1)
					log.Printf("mail broadcast %d: send to %s failed: %v", runID, r.Email, err)
					continue
				}
				sent.Add(1)
			}
			return nil
		})
	}
	for _, r := range recipients {
		jobs <- r
	}
	close(jobs)
	_ = g.Wait()

	status := models.MailBroadcastStatusSuccess
	if failed.Load() > 0 {
		status = models.MailBroadcastStatusPartial
	}
	finished := nowFunc()
	if err := s.db.WithContext(ctx).Model(&models.MailBroadcast{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":      status,
			"sent":        int(sent.Load()),
			"failed":      int(failed.Load()),
			"finished_at": finished,
		}).Error; err != nil {
		log.Printf("mail broadcast %d: failed to record result: %v", runID, err)
		return
	}
	log.Printf("mail broadcast %d finished: status=%s sent=%d failed=%d", runID, status, sent.Load(), failed.Load())
}

func (s *BroadcastService) Get(ctx context.Context, id uint) (*models.MailBroadcast, error) {
	var run models.MailBroadcast
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Broadcast not found")
		}
		return nil, Storage("Failed to load broadcast", err)
	}
	return &run, nil
}
