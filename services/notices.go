package services

import (
	"fmt"
	"html/template"
	"strings"

	"admissions-api/models"
	"admissions-api/utils"
)

// Outbox event names.
const (
	EventDraftCreated      = "draft_created"
	EventPaymentReceived   = "payment_received"
	EventPaymentVerified   = "payment_verified"
	EventPaymentRejected   = "payment_rejected"
	EventSubmitAccepted    = "submit_accepted"
	EventSubmitPending     = "submit_pending"
	EventStatusChanged     = "status_changed"
	EventDocumentsUploaded = "documents_uploaded"
	EventEMIReminder       = "emi_reminder"
)

// NotificationIntent is one message to enqueue. DedupeKey, when set, makes the enqueue
// idempotent per recipient.
type NotificationIntent struct {
	Event         string
	ApplicationID *uint
	Recipient     string
	Subject       string
	Body          string
	DedupeKey     string
}

// Notices builds the applicant and admin messages for each workflow event.
type Notices struct {
	Codec      *utils.IDCodec
	AdminEmail string
	BaseURL    string
}

func NewNotices(codec *utils.IDCodec, adminEmail, baseURL string) *Notices {
	return &Notices{
		Codec:      codec,
		AdminEmail: strings.TrimSpace(adminEmail),
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (n *Notices) prettyID(id uint) string {
	if n == nil || n.Codec == nil {
		return fmt.Sprintf("%06d", id)
	}
	return n.Codec.PrettyID(id)
}

// StatusLink is the applicant-facing status page for the application.
func (n *Notices) StatusLink(id uint) string {
	if n == nil || n.Codec == nil || n.BaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/status?id=%s", n.BaseURL, n.Codec.Token(id))
}

func (n *Notices) applicant(app *models.Application, event, subject, message, dedupe string) NotificationIntent {
	if link := n.StatusLink(app.ApplicationID); link != "" {
		message += "\n\nTrack your application: " + link
	}
	id := app.ApplicationID
	return NotificationIntent{
		Event:         event,
		ApplicationID: &id,
		Recipient:     app.Email,
		Subject:       subject,
		Body:          buildFormalEmailHTML(subject, app.FullName, message),
		DedupeKey:     dedupe,
	}
}

func (n *Notices) admin(app *models.Application, event, subject, message, dedupe string) []NotificationIntent {
	if n == nil || n.AdminEmail == "" {
		return nil
	}
	id := app.ApplicationID
	return []NotificationIntent{{
		Event:         event,
		ApplicationID: &id,
		Recipient:     n.AdminEmail,
		Subject:       subject,
		Body:          buildFormalEmailHTML(subject, "Admissions Office", message),
		DedupeKey:     dedupe,
	}}
}

func (n *Notices) DraftCreated(app *models.Application) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	msg := fmt.Sprintf("Your application %s has been created.\nTo complete registration, pay the registration fee of %s and upload the payment reference (UTR).",
		pretty, utils.FormatRupees(models.RegistrationFee))
	return []NotificationIntent{
		n.applicant(app, EventDraftCreated, "Application "+pretty+" created", msg, fmt.Sprintf("draft:%d", app.ApplicationID)),
	}
}

func (n *Notices) PaymentReceived(app *models.Application, p *models.Payment) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	label := paymentLabel(p)
	dedupe := fmt.Sprintf("payment-received:%d", p.PaymentID)
	out := []NotificationIntent{
		n.applicant(app, EventPaymentReceived, "Payment received for "+pretty,
			fmt.Sprintf("We have received your %s of %s (UTR %s). It will be verified by the admissions office.",
				label, utils.FormatRupees(p.Amount), p.UTR), dedupe),
	}
	return append(out, n.admin(app, EventPaymentReceived, "New "+label+" for "+pretty,
		fmt.Sprintf("%s (%s) uploaded a %s of %s with UTR %s.", app.FullName, app.Email, label, utils.FormatRupees(p.Amount), p.UTR),
		dedupe)...)
}

func (n *Notices) PaymentVerified(app *models.Application, p *models.Payment, courseFeeVerified int64) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	verifiedOn := ""
	if d := utils.FormatDatePtr(p.VerifiedAt); d != "" {
		verifiedOn = " on " + d
	}
	var msg string
	if p.PaymentType == models.PaymentTypeRegistration {
		msg = fmt.Sprintf("Your registration fee payment (UTR %s) was verified%s.\nYou can now pay the course fee of %s in full or in two installments of %s.",
			p.UTR, verifiedOn, utils.FormatRupees(models.CourseFeeTotal), utils.FormatRupees(models.CourseFeeEMIAmount))
	} else {
		outstanding := models.CourseFeeTotal - courseFeeVerified
		if outstanding < 0 {
			outstanding = 0
		}
		msg = fmt.Sprintf("Your course fee payment of %s (UTR %s) was verified%s.\nVerified so far: %s. Outstanding: %s.",
			utils.FormatRupees(p.Amount), p.UTR, verifiedOn, utils.FormatRupees(courseFeeVerified), utils.FormatRupees(outstanding))
	}
	return []NotificationIntent{
		n.applicant(app, EventPaymentVerified, "Payment verified for "+pretty, msg, fmt.Sprintf("payment-verified:%d", p.PaymentID)),
	}
}

func (n *Notices) PaymentRejected(app *models.Application, p *models.Payment, reason string) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	msg := fmt.Sprintf("Your %s (UTR %s) could not be verified and application %s has been rejected.", paymentLabel(p), p.UTR, pretty)
	if strings.TrimSpace(reason) != "" {
		msg += "\nReason: " + strings.TrimSpace(reason)
	}
	return []NotificationIntent{
		n.applicant(app, EventPaymentRejected, "Payment rejected for "+pretty, msg, fmt.Sprintf("payment-rejected:%d", p.PaymentID)),
	}
}

func (n *Notices) SubmitAccepted(app *models.Application) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	msg := fmt.Sprintf("Congratulations. Application %s has been accepted.\nPlease pay the course fee of %s and upload your documents.",
		pretty, utils.FormatRupees(models.CourseFeeTotal))
	dedupe := fmt.Sprintf("submit-accepted:%d", app.ApplicationID)
	out := []NotificationIntent{n.applicant(app, EventSubmitAccepted, "Application "+pretty+" accepted", msg, dedupe)}
	return append(out, n.admin(app, EventSubmitAccepted, "Application "+pretty+" accepted",
		fmt.Sprintf("%s (%s) completed submission with a verified registration fee.", app.FullName, app.Email), dedupe)...)
}

func (n *Notices) SubmitPending(app *models.Application) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	msg := fmt.Sprintf("Application %s has been submitted and is waiting for registration fee verification.", pretty)
	return []NotificationIntent{
		n.applicant(app, EventSubmitPending, "Application "+pretty+" submitted", msg, fmt.Sprintf("submit-pending:%d", app.ApplicationID)),
	}
}

func (n *Notices) StatusChanged(app *models.Application, oldStatus string, historyID uint) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	msg := fmt.Sprintf("The status of application %s changed from %s to %s.", pretty, displayStatus(oldStatus), displayStatus(app.Status))
	return []NotificationIntent{
		n.applicant(app, EventStatusChanged, "Application "+pretty+" is now "+displayStatus(app.Status), msg,
			fmt.Sprintf("status:%d", historyID)),
	}
}

func (n *Notices) DocumentsUploaded(app *models.Application, count int, batch string) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	dedupe := "documents:" + batch
	out := []NotificationIntent{
		n.applicant(app, EventDocumentsUploaded, "Documents received for "+pretty,
			fmt.Sprintf("We have received %d document(s) for application %s.", count, pretty), dedupe),
	}
	return append(out, n.admin(app, EventDocumentsUploaded, "Documents uploaded for "+pretty,
		fmt.Sprintf("%s uploaded %d document(s).", app.FullName, count), dedupe)...)
}

func (n *Notices) EMIReminder(app *models.Application, verified int64, day string) []NotificationIntent {
	pretty := n.prettyID(app.ApplicationID)
	outstanding := models.CourseFeeTotal - verified
	msg := fmt.Sprintf("This is a reminder that %s (%s) of the course fee for application %s is outstanding.\nVerified so far: %s.",
		utils.FormatRupees(outstanding), utils.RupeesInWords(outstanding), pretty, utils.FormatRupees(verified))
	return []NotificationIntent{
		n.applicant(app, EventEMIReminder, "Course fee installment due for "+pretty, msg,
			fmt.Sprintf("emi-reminder:%d:%s", app.ApplicationID, day)),
	}
}

func paymentLabel(p *models.Payment) string {
	if p.PaymentType == models.PaymentTypeRegistration {
		return "registration fee payment"
	}
	if p.EMIOption == models.EMIOptionEMI {
		return fmt.Sprintf("course fee installment %d", p.InstallmentNo)
	}
	return "course fee payment"
}

func displayStatus(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

// buildFormalEmailHTML wraps an escaped plain-text message in the standard mail layout.
func buildFormalEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "Applicant"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString("Dear " + name + ",")
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
    <p style="margin:0;font-size:14px;color:#6b7280;">Admissions Office</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}
