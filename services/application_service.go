package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"admissions-api/config"
	"admissions-api/models"
	"admissions-api/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DraftInput is the typed application form.
type DraftInput struct {
	FullName    string     `json:"full_name" validate:"required,max=150"`
	Email       string     `json:"email" validate:"required,email,max=190"`
	Mobile      string     `json:"mobile" validate:"required,mobile"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" validate:"omitempty,oneof=male female other"`

	AddressLine string `json:"address_line" validate:"max=255"`
	City        string `json:"city" validate:"max=100"`
	State       string `json:"state" validate:"max=100"`
	Pincode     string `json:"pincode" validate:"omitempty,pincode"`

	HighestQualification string                 `json:"highest_qualification" validate:"required,max=100"`
	Institution          string                 `json:"institution" validate:"max=200"`
	GraduationYear       int                    `json:"graduation_year" validate:"omitempty,gte=1950,lte=2100"`
	Percentage           float64                `json:"percentage" validate:"gte=0,lte=100"`
	Qualifications       []models.Qualification `json:"qualifications" validate:"max=10"`

	EmploymentStatus string `json:"employment_status" validate:"omitempty,oneof=employed self_employed unemployed student"`
	Employer         string `json:"employer" validate:"max=200"`
	Designation      string `json:"designation" validate:"max=120"`
	ExperienceYears  int    `json:"experience_years" validate:"gte=0,lte=60"`
}

func (in *DraftInput) normalize() {
	in.FullName = utils.SanitizeInput(in.FullName)
	in.Email = strings.ToLower(utils.SanitizeInput(in.Email))
	in.Mobile = utils.NormalizeMobile(in.Mobile)
	in.Gender = strings.ToLower(utils.SanitizeInput(in.Gender))
	in.AddressLine = utils.SanitizeInput(in.AddressLine)
	in.City = utils.SanitizeInput(in.City)
	in.State = utils.SanitizeInput(in.State)
	in.Pincode = utils.SanitizeInput(in.Pincode)
	in.HighestQualification = utils.SanitizeInput(in.HighestQualification)
	in.Institution = utils.SanitizeInput(in.Institution)
	in.EmploymentStatus = strings.ToLower(utils.SanitizeInput(in.EmploymentStatus))
	in.Employer = utils.SanitizeInput(in.Employer)
	in.Designation = utils.SanitizeInput(in.Designation)
}

// ApplicationFilter narrows List.
type ApplicationFilter struct {
	Status    string
	FlowState string
	Search    string
	Page      int
	PageSize  int
}

// SubmitResult reports the outcome of Submit.
type SubmitResult struct {
	Application *models.Application `json:"application"`
	Accepted    bool                `json:"accepted"`
	Changed     bool                `json:"changed"`
}

// StatusView is the applicant-facing status page payload.
type StatusView struct {
	FullName  string          `json:"full_name"`
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	FlowState string          `json:"flow_state"`
	Timeline  TimelineView    `json:"timeline"`
	Payments  *PaymentSummary `json:"payments,omitempty"`
}

// ApplicationService owns the application record and its admin-driven transitions.
type ApplicationService struct {
	db      *gorm.DB
	codec   *utils.IDCodec
	notices *Notices
	ledger  *PaymentLedgerService
}

func NewApplicationService(db *gorm.DB, codec *utils.IDCodec, notices *Notices, ledger *PaymentLedgerService) *ApplicationService {
	if db == nil {
		db = config.DB
	}
	if ledger == nil {
		ledger = NewPaymentLedgerService(db, nil, notices)
	}
	return &ApplicationService{db: db, codec: codec, notices: notices, ledger: ledger}
}

// CreateDraft validates the form and inserts a new application in its initial state.
func (s *ApplicationService) CreateDraft(ctx context.Context, in DraftInput) (*models.Application, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var quals datatypes.JSON
	if len(in.Qualifications) > 0 {
		raw, err := json.Marshal(in.Qualifications)
		if err != nil {
			return nil, Validation("invalid input", FieldError{Field: "qualifications", Error: "is invalid"})
		}
		quals = datatypes.JSON(raw)
	}

	now := nowFunc()
	app := models.Application{
		FullName:             in.FullName,
		Email:                in.Email,
		Mobile:               in.Mobile,
		DateOfBirth:          in.DateOfBirth,
		Gender:               in.Gender,
		AddressLine:          in.AddressLine,
		City:                 in.City,
		State:                in.State,
		Pincode:              in.Pincode,
		HighestQualification: in.HighestQualification,
		Institution:          in.Institution,
		GraduationYear:       in.GraduationYear,
		Percentage:           in.Percentage,
		Qualifications:       quals,
		EmploymentStatus:     in.EmploymentStatus,
		Employer:             in.Employer,
		Designation:          in.Designation,
		ExperienceYears:      in.ExperienceYears,
		Status:               models.StatusPending,
		FlowState:            models.FlowPaymentPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&app).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ApplicationStatusHistory{
			ApplicationID: app.ApplicationID,
			NewStatus:     app.Status,
			NewFlowState:  app.FlowState,
			Trigger:       TriggerDraft,
			CreatedAt:     now,
		}).Error; err != nil {
			return err
		}
		return enqueueNotifications(tx, s.notices.DraftCreated(&app)...)
	})
	if err != nil {
		return nil, storageErr("Failed to create application", err)
	}
	return &app, nil
}

// Submit accepts the application when a verified registration payment exists. Calling it
// again changes nothing and enqueues no new notification.
func (s *ApplicationService) Submit(ctx context.Context, applicationID uint) (*SubmitResult, error) {
	res := &SubmitResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := loadApplicationForUpdate(tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status == models.StatusRejected {
			return Precondition("Application has been rejected")
		}

		verified, err := hasVerifiedRegistration(tx, app.ApplicationID)
		if err != nil {
			return err
		}
		res.Application = app
		res.Accepted = verified

		if !verified {
			return enqueueNotifications(tx, s.notices.SubmitPending(app)...)
		}

		now := nowFunc()
		extra := map[string]interface{}{}
		if app.AcceptedAt == nil {
			extra["accepted_at"] = now
		}
		if app.SubmittedAt == nil {
			extra["submitted_at"] = now
		}
		if app.Status != models.StatusAccepted || app.FlowState != models.FlowAccepted || len(extra) > 0 {
			hist, err := transition(tx, app, models.StatusAccepted, models.FlowAccepted, TriggerSubmit, nil, "", extra)
			if err != nil {
				return err
			}
			res.Changed = hist != nil
		}
		return enqueueNotifications(tx, s.notices.SubmitAccepted(app)...)
	})
	if err != nil {
		return nil, storageErr("Failed to submit application", err)
	}
	return res, nil
}

// UpdateStatus is the admin transition. Both status and flow_state are set to the canonical
// status; accepting requires a verified registration payment.
func (s *ApplicationService) UpdateStatus(ctx context.Context, applicationID uint, rawStatus string, actor *uint, notes string) (*models.Application, error) {
	status, ok := utils.AdminAssignableStatus(rawStatus)
	if !ok {
		return nil, InvalidStatus(rawStatus)
	}
	notes = utils.SanitizeInput(notes)

	var app *models.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		app, err = loadApplicationForUpdate(tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status == status && app.FlowState == status {
			return nil
		}

		extra := map[string]interface{}{}
		if status == models.StatusAccepted {
			verified, err := hasVerifiedRegistration(tx, app.ApplicationID)
			if err != nil {
				return err
			}
			if !verified {
				return Precondition("Application cannot be accepted before the registration fee is verified")
			}
			if app.AcceptedAt == nil {
				extra["accepted_at"] = nowFunc()
			}
		}
		if status == models.StatusSubmitted && app.SubmittedAt == nil {
			extra["submitted_at"] = nowFunc()
		}

		oldStatus := app.Status
		hist, err := transition(tx, app, status, status, TriggerAdminStatus, actor, notes, extra)
		if err != nil || hist == nil {
			return err
		}
		return enqueueNotifications(tx, s.notices.StatusChanged(app, oldStatus, hist.HistoryID)...)
	})
	if err != nil {
		return nil, storageErr("Failed to update application status", err)
	}
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, applicationID uint) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).First(&app, "application_id = ?", applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Application not found")
		}
		return nil, Storage("Failed to load application", err)
	}
	return &app, nil
}

// PrettyID formats id for display, falling back to the bare number without a codec.
func (s *ApplicationService) PrettyID(id uint) string {
	if s.codec == nil {
		return strconv.FormatUint(uint64(id), 10)
	}
	return s.codec.PrettyID(id)
}

// Token returns the applicant-facing link token for id.
func (s *ApplicationService) Token(id uint) string {
	if s.codec == nil {
		return s.PrettyID(id)
	}
	return s.codec.Token(id)
}

// ResolveReference turns a token, pretty id or numeric id into an application id.
func (s *ApplicationService) ResolveReference(ref string) (uint, error) {
	var (
		id  uint
		err error
	)
	if s.codec != nil {
		id, err = s.codec.ResolveApplicationID(ref)
	} else {
		id, err = utils.ParseNumericID(strings.TrimSpace(ref))
	}
	if err != nil {
		return 0, NotFound("Application not found")
	}
	return id, nil
}

// FindByReference loads the application only when identifier matches its email or mobile.
// A wrong identifier is indistinguishable from a missing application.
func (s *ApplicationService) FindByReference(ctx context.Context, ref, identifier string) (*models.Application, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, Validation("invalid input", FieldError{Field: "identifier", Error: "is required"})
	}
	id, err := s.ResolveReference(ref)
	if err != nil {
		return nil, err
	}

	var app models.Application
	err = s.db.WithContext(ctx).
		Where("application_id = ?", id).
		Where("LOWER(email) = ? OR mobile = ?", strings.ToLower(identifier), utils.NormalizeMobile(identifier)).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("No application matches the given id and email or mobile")
		}
		return nil, Storage("Failed to load application", err)
	}
	return &app, nil
}

// Timeline recomputes the lifecycle view from stored facts.
func (s *ApplicationService) Timeline(ctx context.Context, app *models.Application) (TimelineView, error) {
	in, err := loadTimelineInput(s.db.WithContext(ctx), app)
	if err != nil {
		return TimelineView{}, Storage("Failed to load application timeline", err)
	}
	return ComputeTimeline(in), nil
}

// StatusView is the applicant status query: identifier proof, then a freshly derived timeline.
func (s *ApplicationService) StatusView(ctx context.Context, ref, identifier string) (*StatusView, error) {
	app, err := s.FindByReference(ctx, ref, identifier)
	if err != nil {
		return nil, err
	}
	tl, err := s.Timeline(ctx, app)
	if err != nil {
		return nil, err
	}
	summary, err := s.ledger.Summary(ctx, app.ApplicationID)
	if err != nil {
		return nil, err
	}

	return &StatusView{
		FullName:  app.FullName,
		ID:        s.PrettyID(app.ApplicationID),
		Status:    app.Status,
		FlowState: app.FlowState,
		Timeline:  tl,
		Payments:  summary,
	}, nil
}

// List returns a page of applications, newest first.
func (s *ApplicationService) List(ctx context.Context, f ApplicationFilter) ([]models.Application, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Application{})
	if f.Status != "" {
		status, ok := utils.CanonicalStatus(f.Status)
		if !ok {
			return nil, 0, InvalidStatus(f.Status)
		}
		q = q.Where("status = ?", status)
	}
	if f.FlowState != "" {
		q = q.Where("flow_state = ?", strings.ToLower(strings.TrimSpace(f.FlowState)))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR mobile LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, Storage("Failed to load applications", err)
	}
	page, size := normalizePage(f.Page, f.PageSize)
	var rows []models.Application
	if err := q.Order("created_at DESC, application_id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error; err != nil {
		return nil, 0, Storage("Failed to load applications", err)
	}
	return rows, total, nil
}

// History lists status changes oldest first.
func (s *ApplicationService) History(ctx context.Context, applicationID uint) ([]models.ApplicationStatusHistory, error) {
	if _, err := s.Get(ctx, applicationID); err != nil {
		return nil, err
	}
	var rows []models.ApplicationStatusHistory
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC, history_id ASC").
		Find(&rows).Error; err != nil {
		return nil, Storage("Failed to load status history", err)
	}
	return rows, nil
}
