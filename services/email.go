package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"os"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/answerhive/answerhive_api/model"
)

type EmailService struct {
	context.DefaultService

	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
	baseURL      string

	templates map[string]*template.Template
}

const EMAIL_SVC = "email_svc"

func (svc EmailService) Id() string {
	return EMAIL_SVC
}

func (svc *EmailService) Configure(ctx *context.Context) error {
	svc.smtpHost = os.Getenv("SMTP_HOST")
	svc.smtpPort = os.Getenv("SMTP_PORT")
	svc.smtpUsername = os.Getenv("SMTP_USERNAME")
	svc.smtpPassword = os.Getenv("SMTP_PASSWORD")
	svc.fromEmail = os.Getenv("FROM_EMAIL")
	svc.fromName = os.Getenv("FROM_NAME")
	svc.baseURL = os.Getenv("BASE_URL")

	// Set defaults if not provided
	if svc.smtpPort == "" {
		svc.smtpPort = "587"
	}
	if svc.fromName == "" {
		svc.fromName = "AnswerHive"
	}
	if svc.baseURL == "" {
		svc.baseURL = "http://localhost:8000"
	}

	svc.templates = make(map[string]*template.Template)

	return svc.DefaultService.Configure(ctx)
}

func (svc *EmailService) Start() error {
	err := svc.loadTemplates()
	if err != nil {
		log.WithError(err).Error("Failed to load email templates")
		// Don't fail startup, just log the error
	}

	return nil
}

// Email templates
const flaggedForReviewEmailHTML = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Conversation Flagged for Review - {{.AppName}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #D97706; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .button { display: inline-block; padding: 12px 24px; background-color: #D97706; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .details { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; }
        .footer { padding: 20px; text-align: center; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Conversation Flagged for Review</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <p>Your assistant was unable to provide a grounded answer in a recent conversation. It has been flagged so you can review it and fill the knowledge gap.</p>
            <div class="details">
                <strong>Conversation:</strong> {{.ConversationTitle}}<br>
                <strong>Flagged at:</strong> {{.FlaggedAt}}
            </div>
            <a href="{{.ReviewURL}}" class="button">Review Conversation</a>
            <p>You can disable these notifications in your account settings.</p>
        </div>
        <div class="footer">
            <p>&copy; 2026 {{.AppName}}. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`

const queryLimitReachedEmailHTML = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Query Limit Reached - {{.AppName}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #DC2626; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .button { display: inline-block; padding: 12px 24px; background-color: #DC2626; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .warning { background-color: #FEF2F2; border-left: 4px solid #DC2626; padding: 10px; margin: 20px 0; }
        .footer { padding: 20px; text-align: center; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Query Limit Reached</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <div class="warning">
                Your assistant has used all of its queries for this billing period. Visitors to your site are currently receiving a fallback message instead of answers.
            </div>
            <p>Upgrade your plan to restore service immediately, or wait for your allowance to renew at the start of the next billing period.</p>
            <a href="{{.UpgradeURL}}" class="button">Upgrade Plan</a>
        </div>
        <div class="footer">
            <p>&copy; 2026 {{.AppName}}. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`

const paymentSucceededEmailHTML = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment Received - {{.AppName}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #059669; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .details { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; }
        .footer { padding: 20px; text-align: center; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Payment Received</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <p>Thanks, we received your payment. Your query allowance has been reset for the new billing period.</p>
            <div class="details">
                <strong>Plan:</strong> {{.PlanName}}<br>
                <strong>Queries:</strong> {{.QueryLimit}}
            </div>
        </div>
        <div class="footer">
            <p>&copy; 2026 {{.AppName}}. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`

const paymentFailedEmailHTML = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment Failed - {{.AppName}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #DC2626; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .button { display: inline-block; padding: 12px 24px; background-color: #DC2626; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .warning { background-color: #FEF2F2; border-left: 4px solid #DC2626; padding: 10px; margin: 20px 0; }
        .footer { padding: 20px; text-align: center; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Payment Failed</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <div class="warning">
                We could not process your latest payment. Your subscription is now inactive and your assistant has stopped answering queries.
            </div>
            <p>Please update your payment details to restore service.</p>
            <a href="{{.BillingURL}}" class="button">Update Payment Details</a>
        </div>
        <div class="footer">
            <p>&copy; 2026 {{.AppName}}. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`

// Template data structures
type FlaggedForReviewEmailData struct {
	AppName           string
	ConversationTitle string
	FlaggedAt         string
	ReviewURL         string
}

type QueryLimitReachedEmailData struct {
	AppName    string
	UpgradeURL string
}

type PaymentSucceededEmailData struct {
	AppName    string
	PlanName   string
	QueryLimit int
}

type PaymentFailedEmailData struct {
	AppName    string
	BillingURL string
}

// Load email templates
func (svc *EmailService) loadTemplates() error {
	var err error

	svc.templates["flagged_for_review"], err = template.New("flagged_for_review").Parse(flaggedForReviewEmailHTML)
	if err != nil {
		return fmt.Errorf("failed to parse flagged for review email template: %v", err)
	}

	svc.templates["query_limit_reached"], err = template.New("query_limit_reached").Parse(queryLimitReachedEmailHTML)
	if err != nil {
		return fmt.Errorf("failed to parse query limit email template: %v", err)
	}

	svc.templates["payment_succeeded"], err = template.New("payment_succeeded").Parse(paymentSucceededEmailHTML)
	if err != nil {
		return fmt.Errorf("failed to parse payment succeeded email template: %v", err)
	}

	svc.templates["payment_failed"], err = template.New("payment_failed").Parse(paymentFailedEmailHTML)
	if err != nil {
		return fmt.Errorf("failed to parse payment failed email template: %v", err)
	}

	return nil
}

// SendFlaggedForReview notifies the account owner that a conversation needs
// attention. The caller has already checked the user's notification
// preference.
func (svc *EmailService) SendFlaggedForReview(user *model.User, conversation *model.Conversation) error {
	if svc.smtpHost == "" {
		log.Warn("SMTP not configured, skipping flagged for review email")
		return nil
	}

	title := conversation.Title
	if title == "" {
		title = "Untitled conversation"
	}

	data := FlaggedForReviewEmailData{
		AppName:           svc.fromName,
		ConversationTitle: title,
		FlaggedAt:         conversation.UpdatedAt.Format("Jan 2, 2006 15:04 MST"),
		ReviewURL:         fmt.Sprintf("%s/admin/conversations/%s", svc.baseURL, conversation.ID),
	}

	subject := "A conversation needs your review - " + svc.fromName
	return svc.sendTemplateEmail(user.Email, subject, "flagged_for_review", data)
}

func (svc *EmailService) SendQueryLimitReached(user *model.User) error {
	if svc.smtpHost == "" {
		log.Warn("SMTP not configured, skipping query limit email")
		return nil
	}

	data := QueryLimitReachedEmailData{
		AppName:    svc.fromName,
		UpgradeURL: svc.baseURL + "/admin/billing",
	}

	subject := "Your query limit has been reached - " + svc.fromName
	return svc.sendTemplateEmail(user.Email, subject, "query_limit_reached", data)
}

func (svc *EmailService) SendPaymentSucceeded(user *model.User, planName string, queryLimit int) error {
	if svc.smtpHost == "" {
		log.Warn("SMTP not configured, skipping payment succeeded email")
		return nil
	}

	data := PaymentSucceededEmailData{
		AppName:    svc.fromName,
		PlanName:   planName,
		QueryLimit: queryLimit,
	}

	subject := "Payment received - " + svc.fromName
	return svc.sendTemplateEmail(user.Email, subject, "payment_succeeded", data)
}

func (svc *EmailService) SendPaymentFailed(user *model.User) error {
	if svc.smtpHost == "" {
		log.Warn("SMTP not configured, skipping payment failed email")
		return nil
	}

	data := PaymentFailedEmailData{
		AppName:    svc.fromName,
		BillingURL: svc.baseURL + "/admin/billing",
	}

	subject := "Payment failed - " + svc.fromName
	return svc.sendTemplateEmail(user.Email, subject, "payment_failed", data)
}

// Send template email
func (svc *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	tmpl, exists := svc.templates[templateName]
	if !exists {
		return fmt.Errorf("template %s not found", templateName)
	}

	var body bytes.Buffer
	err := tmpl.Execute(&body, data)
	if err != nil {
		return fmt.Errorf("failed to execute template: %v", err)
	}

	return svc.sendEmail(to, subject, body.String())
}

// Send email using SMTP
func (svc *EmailService) sendEmail(to, subject, body string) error {
	if svc.smtpHost == "" {
		return fmt.Errorf("SMTP not configured")
	}

	auth := smtp.PlainAuth("", svc.smtpUsername, svc.smtpPassword, svc.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		svc.fromName, svc.fromEmail, to, subject, body))

	err := smtp.SendMail(
		svc.smtpHost+":"+svc.smtpPort,
		auth,
		svc.fromEmail,
		[]string{to},
		msg,
	)

	if err != nil {
		log.WithError(err).WithFields(log.Fields{"to": to, "subject": subject}).Error("Failed to send email")
		return fmt.Errorf("failed to send email: %v", err)
	}

	log.WithFields(log.Fields{"to": to, "subject": subject}).Info("Email sent successfully")
	return nil
}
