package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ujmp/editorial-api/internal/models"
)

type notificationUserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type notificationArticleReader interface {
	GetByID(ctx context.Context, id string) (*models.Article, error)
}

// EmailSender delivers one message. The default implementation logs the
// message; a real SMTP or provider-backed sender plugs in behind the same
// interface.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.Info("email dispatched",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// NewLogSender returns an EmailSender that only logs deliveries.
func NewLogSender(logger *zap.Logger) EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logSender{logger: logger}
}

// NotificationService turns domain events into author-facing emails. It runs
// on the dispatcher's worker queue; returning an error triggers a retry.
type NotificationService struct {
	articles notificationArticleReader
	users    notificationUserReader
	sender   EmailSender
	logger   *zap.Logger
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(articles notificationArticleReader, users notificationUserReader, sender EmailSender, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &NotificationService{articles: articles, users: users, sender: sender, logger: logger}
}

// HandleEvent is the dispatcher entry point.
func (s *NotificationService) HandleEvent(ctx context.Context, event models.DomainEvent) error {
	if event.ArticleID == "" {
		return nil
	}
	article, err := s.articles.GetByID(ctx, event.ArticleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The article vanished; retrying will not help.
			s.logger.Warn("notification for missing article dropped", zap.String("article_id", event.ArticleID))
			return nil
		}
		return fmt.Errorf("load article for notification: %w", err)
	}
	author, err := s.users.GetByID(ctx, article.CorrespondingAuthorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("notification for missing author dropped", zap.String("article_id", event.ArticleID))
			return nil
		}
		return fmt.Errorf("load author for notification: %w", err)
	}

	subject, body := s.compose(event, article, author)
	if subject == "" {
		return nil
	}
	return s.sender.Send(ctx, author.Email, subject, body)
}

func (s *NotificationService) compose(event models.DomainEvent, article *models.Article, author *models.User) (string, string) {
	switch event.Kind {
	case models.EventArticleSubmitted:
		return fmt.Sprintf("Submission %s received", article.SubmissionID),
			fmt.Sprintf("Dear %s,\n\nyour manuscript %q has entered editorial screening.", author.FullName, article.Title)
	case models.EventArticleRejected:
		return fmt.Sprintf("Decision on %s", article.SubmissionID),
			fmt.Sprintf("Dear %s,\n\nwe regret to inform you that %q was not accepted for publication.", author.FullName, article.Title)
	case models.EventRevisionRequested:
		kind := event.Params["revision_type"]
		return fmt.Sprintf("Revision requested for %s", article.SubmissionID),
			fmt.Sprintf("Dear %s,\n\na %s revision of %q has been requested. Please upload a revised manuscript.", author.FullName, kind, article.Title)
	case models.EventArticleAccepted:
		body := fmt.Sprintf("Dear %s,\n\ncongratulations, %q has been accepted.", author.FullName, article.Title)
		if event.InvoiceID != "" {
			body += "\n\nAn article processing charge applies; payment instructions are available in your dashboard."
		}
		return fmt.Sprintf("Article %s accepted", article.SubmissionID), body
	case models.EventPaymentConfirmed:
		return fmt.Sprintf("Payment received for %s", article.SubmissionID),
			fmt.Sprintf("Dear %s,\n\nyour payment for %q has been confirmed.", author.FullName, article.Title)
	case models.EventArticlePublished:
		body := fmt.Sprintf("Dear %s,\n\n%q is now published.", author.FullName, article.Title)
		if article.PublicationURL != nil {
			body += "\n\n" + *article.PublicationURL
		}
		return fmt.Sprintf("Article %s published", article.SubmissionID), body
	case models.EventCertificateReady:
		return fmt.Sprintf("Certificate available for %s", article.SubmissionID),
			fmt.Sprintf("Dear %s,\n\nthe publication certificate for %q is ready for download.", author.FullName, article.Title)
	}
	return "", ""
}
