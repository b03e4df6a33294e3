package admin

import (
	"context"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// AnalyticsService answers usage questions over the trailing N days.
type AnalyticsService struct {
	users    ports.UserStore
	sessions ports.SessionStore
	docs     ports.DocumentStore
	index    ports.VectorIndex
}

// NewAnalyticsService creates the analytics service.
func NewAnalyticsService(users ports.UserStore, sessions ports.SessionStore, docs ports.DocumentStore, index ports.VectorIndex) *AnalyticsService {
	return &AnalyticsService{users: users, sessions: sessions, docs: docs, index: index}
}

// UserAnalytics summarizes the account population.
type UserAnalytics struct {
	TotalUsers  int `json:"total_users"`
	ActiveUsers int `json:"active_users"`
	AdminUsers  int `json:"admin_users"`
	NewUsers    int `json:"new_users_in_period"`
	PeriodDays  int `json:"period_days"`
}

// Users counts accounts overall and new arrivals in the period. Days is
// clamped to [1, 365].
func (s *AnalyticsService) Users(ctx context.Context, days int) (UserAnalytics, error) {
	days = clampDays(days)
	report := UserAnalytics{PeriodDays: days}

	// The population is small enough to walk page by page.
	cutoff := time.Now().AddDate(0, 0, -days)
	page := 1
	for {
		users, total, err := s.users.ListUsers(ctx, ports.UserFilter{Page: page, PageSize: 100})
		if err != nil {
			return report, err
		}
		report.TotalUsers = total
		for _, u := range users {
			if u.Active {
				report.ActiveUsers++
			}
			if u.Admin {
				report.AdminUsers++
			}
			if u.CreatedAt.After(cutoff) {
				report.NewUsers++
			}
		}
		if page*100 >= total || len(users) == 0 {
			break
		}
		page++
	}
	return report, nil
}

// SessionAnalytics summarizes conversation volume.
type SessionAnalytics struct {
	SessionsInPeriod int `json:"sessions_in_period"`
	MessagesInPeriod int `json:"messages_in_period"`
	PeriodDays       int `json:"period_days"`
}

// Sessions counts sessions and messages created in the period.
func (s *AnalyticsService) Sessions(ctx context.Context, days int) (SessionAnalytics, error) {
	days = clampDays(days)
	cutoff := time.Now().AddDate(0, 0, -days)

	sessions, err := s.sessions.CountSessions(ctx, cutoff)
	if err != nil {
		return SessionAnalytics{}, err
	}
	messages, err := s.sessions.CountMessages(ctx, cutoff)
	if err != nil {
		return SessionAnalytics{}, err
	}
	return SessionAnalytics{
		SessionsInPeriod: sessions,
		MessagesInPeriod: messages,
		PeriodDays:       days,
	}, nil
}

// DocumentAnalytics summarizes the corpus.
type DocumentAnalytics struct {
	TotalDocuments int                 `json:"total_documents"`
	IndexStats     entities.IndexStats `json:"index_stats"`
}

// Documents combines record counts with index statistics.
func (s *AnalyticsService) Documents(ctx context.Context) (DocumentAnalytics, error) {
	_, total, err := s.docs.ListDocuments(ctx, ports.DocumentFilter{Page: 1, PageSize: 10})
	if err != nil {
		return DocumentAnalytics{}, err
	}
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return DocumentAnalytics{}, err
	}
	return DocumentAnalytics{TotalDocuments: total, IndexStats: stats}, nil
}

func clampDays(days int) int {
	if days < 1 {
		return 30
	}
	if days > 365 {
		return 365
	}
	return days
}
