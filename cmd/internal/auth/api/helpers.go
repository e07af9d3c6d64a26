package authapi

import (
	"strings"
	"time"

	"cronapp/cmd/identity"
	"cronapp/cmd/internal/auth/session"
)

const dateLayout = "2006-01-02"

func toUserResponse(u identity.User) userResponse {
	var birth *string
	if u.BirthDate != nil {
		s := u.BirthDate.Format(dateLayout)
		birth = &s
	}
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		BirthDate:    birth,
		HasPassword:  u.HasPassword,
		GoogleLinked: u.GoogleID != nil,
		CreatedAt:    u.CreatedAt,
	}
}

func toSessionResponse(issued session.Issued) sessionResponse {
	return sessionResponse{
		SessionID:        issued.SessionID,
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExp,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExp,
	}
}

func toSessionSummaries(in []session.SessionSummary, currentID string) []sessionSummaryResponse {
	out := make([]sessionSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, sessionSummaryResponse{
			SessionID:        s.SessionID,
			CreatedAt:        s.CreatedAt,
			ExpiresAt:        s.ExpiresAt,
			RemainingSeconds: int64(s.Remaining / time.Second),
			Current:          s.SessionID == currentID,
		})
	}
	return out
}

func toOnboardingStatus(ob identity.Onboarding) onboardingStatusResponse {
	return onboardingStatusResponse{
		HasCompletedOnboarding: true,
		Onboarding: &onboardingResponse{
			Answers:     ob.Answers,
			CompletedAt: ob.CompletedAt,
			UpdatedAt:   ob.UpdatedAt,
		},
	}
}

// parseBirthDate accepts YYYY-MM-DD. A nil or blank value means "not set".
func parseBirthDate(raw *string) (*time.Time, bool) {
	if raw == nil {
		return nil, true
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil, true
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, false
	}
	return &d, true
}
