package services

import (
	"errors"
	"time"

	"admissions-api/models"
	"admissions-api/utils"

	"gorm.io/gorm"
)

// Timeline step states.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
)

type TimelineStep struct {
	Title  string     `json:"title"`
	Status string     `json:"status"`
	Date   *time.Time `json:"date,omitempty"`
}

// TimelineView is the five-step lifecycle shown to applicants.
type TimelineView struct {
	Step1 TimelineStep `json:"step1"`
	Step2 TimelineStep `json:"step2"`
	Step3 TimelineStep `json:"step3"`
	Step4 TimelineStep `json:"step4"`
	Step5 TimelineStep `json:"step5"`
}

// TimelineInput holds every fact the timeline derives from.
type TimelineInput struct {
	Application        models.Application
	LatestRegistration *models.Payment
	CourseFeePayments  []models.Payment
	DocumentCount      int64
	LatestDocumentAt   *time.Time
}

// ComputeTimeline derives the lifecycle view. It reads only its input.
func ComputeTimeline(in TimelineInput) TimelineView {
	app := in.Application
	created := app.CreatedAt

	view := TimelineView{
		Step1: TimelineStep{Title: "Initiated", Status: StepCompleted, Date: &created},
		Step2: TimelineStep{Title: "Registration Fee", Status: StepPending},
		Step3: TimelineStep{Title: "Review", Status: StepPending},
		Step4: TimelineStep{Title: "Course Fee", Status: StepPending},
		Step5: TimelineStep{Title: "Documents", Status: StepPending},
	}

	if reg := in.LatestRegistration; reg != nil {
		switch {
		case reg.Status == models.PaymentStatusVerified:
			view.Step2.Status = StepCompleted
			view.Step2.Date = copyTime(reg.VerifiedAt)
		case reg.IsOpen():
			view.Step2.Status = StepInProgress
			view.Step2.Date = copyTime(&reg.UploadedAt)
		}
	}

	switch {
	case app.IsAccepted():
		view.Step3.Status = StepCompleted
		view.Step3.Date = copyTime(app.AcceptedAt)
	case utils.StatusIn(app.Status, models.StatusSubmitted, models.StatusReviewing) ||
		utils.StatusIn(app.FlowState, models.FlowSubmitted, models.FlowPaymentVerified, models.FlowReviewing):
		view.Step3.Status = StepInProgress
		view.Step3.Date = copyTime(app.SubmittedAt)
	}

	var verified int64
	var open bool
	var lastVerified *time.Time
	for i := range in.CourseFeePayments {
		p := in.CourseFeePayments[i]
		if p.Status == models.PaymentStatusVerified {
			verified += p.Amount
			if p.VerifiedAt != nil && (lastVerified == nil || p.VerifiedAt.After(*lastVerified)) {
				lastVerified = p.VerifiedAt
			}
		} else if p.IsOpen() {
			open = true
		}
	}
	switch {
	case verified >= models.CourseFeeTotal && !open:
		view.Step4.Status = StepCompleted
		view.Step4.Date = copyTime(lastVerified)
	case verified > 0:
		view.Step4.Status = StepInProgress
		view.Step4.Date = copyTime(lastVerified)
	}

	if in.DocumentCount > 0 {
		view.Step5.Date = copyTime(in.LatestDocumentAt)
		if view.Step4.Status == StepCompleted {
			view.Step5.Status = StepCompleted
		} else {
			view.Step5.Status = StepInProgress
		}
	}
	return view
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// loadTimelineInput gathers the facts for one application.
func loadTimelineInput(db *gorm.DB, app *models.Application) (TimelineInput, error) {
	in := TimelineInput{Application: *app}

	var reg models.Payment
	err := db.Where("application_id = ? AND payment_type = ?", app.ApplicationID, models.PaymentTypeRegistration).
		Order("uploaded_at DESC, payment_id DESC").
		First(&reg).Error
	switch {
	case err == nil:
		in.LatestRegistration = &reg
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return in, err
	}

	if err := db.Where("application_id = ? AND payment_type = ?", app.ApplicationID, models.PaymentTypeCourseFee).
		Order("uploaded_at ASC, payment_id ASC").
		Find(&in.CourseFeePayments).Error; err != nil {
		return in, err
	}

	if err := db.Model(&models.ApplicationFile{}).
		Where("application_id = ?", app.ApplicationID).
		Count(&in.DocumentCount).Error; err != nil {
		return in, err
	}
	if in.DocumentCount > 0 {
		var latest models.ApplicationFile
		if err := db.Where("application_id = ?", app.ApplicationID).
			Order("uploaded_at DESC, file_id DESC").
			First(&latest).Error; err != nil {
			return in, err
		}
		in.LatestDocumentAt = &latest.UploadedAt
	}
	return in, nil
}
