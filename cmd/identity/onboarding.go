package identity

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Onboarding is the health questionnaire a user completes after signing up.
type Onboarding struct {
	UserID  string
	Answers OnboardingAnswers

	// CompletedAt is the first submission; later saves only move UpdatedAt.
	CompletedAt time.Time
	UpdatedAt   time.Time
}

// OnboardingAnswers is stored as one JSON document per user.
type OnboardingAnswers struct {
	Diet     DietHabits       `json:"diet"`
	Activity PhysicalActivity `json:"activity"`
	Care     HealthCare       `json:"care"`
	Personal PersonalData     `json:"personal"`
}

type DietHabits struct {
	FruitDaysPerWeek     int `json:"fruit_days_per_week"`
	VegetableDaysPerWeek int `json:"vegetable_days_per_week"`
	FastFoodDaysPerWeek  int `json:"fast_food_days_per_week"`
}

type PhysicalActivity struct {
	ExerciseDaysPerWeek   int    `json:"exercise_days_per_week"`
	ExerciseMinutesPerDay int    `json:"exercise_minutes_per_day"`
	ExerciseType          string `json:"exercise_type"`
}

type HealthCare struct {
	GlucoseCheckDaysPerWeek int    `json:"glucose_check_days_per_week"`
	FootCheckDaysPerWeek    int    `json:"foot_check_days_per_week"`
	Medication              string `json:"medication"`
	RegularDoctorVisits     bool   `json:"regular_doctor_visits"`
	ConditionsControlled    bool   `json:"conditions_controlled"`
}

type PersonalData struct {
	WeightKg      float64 `json:"weight_kg"`
	HeightCm      float64 `json:"height_cm"`
	BMI           float64 `json:"bmi"`
	Sex           string  `json:"sex"`
	Occupation    string  `json:"occupation"`
	FamilyHistory bool    `json:"family_history"`
}

const (
	maxOnboardingText = 200
	maxWeightKg       = 500
	maxHeightCm       = 300
)

// normalizeOnboarding validates answers and fills the BMI from weight and
// height when the client did not send one. Zero weight or height means
// "not answered".
func normalizeOnboarding(op string, a OnboardingAnswers) (OnboardingAnswers, error) {
	weekly := []struct {
		name string
		v    int
	}{
		{"fruit_days_per_week", a.Diet.FruitDaysPerWeek},
		{"vegetable_days_per_week", a.Diet.VegetableDaysPerWeek},
		{"fast_food_days_per_week", a.Diet.FastFoodDaysPerWeek},
		{"exercise_days_per_week", a.Activity.ExerciseDaysPerWeek},
		{"glucose_check_days_per_week", a.Care.GlucoseCheckDaysPerWeek},
		{"foot_check_days_per_week", a.Care.FootCheckDaysPerWeek},
	}
	for _, f := range weekly {
		if f.v < 0 || f.v > 7 {
			return OnboardingAnswers{}, invalid(op, fmt.Sprintf("%s must be between 0 and 7", f.name))
		}
	}
	if m := a.Activity.ExerciseMinutesPerDay; m < 0 || m > 24*60 {
		return OnboardingAnswers{}, invalid(op, "exercise_minutes_per_day must be between 0 and 1440")
	}

	p := &a.Personal
	if p.WeightKg < 0 || p.WeightKg > maxWeightKg || math.IsNaN(p.WeightKg) {
		return OnboardingAnswers{}, invalid(op, "invalid weight_kg")
	}
	if p.HeightCm < 0 || p.HeightCm > maxHeightCm || math.IsNaN(p.HeightCm) {
		return OnboardingAnswers{}, invalid(op, "invalid height_cm")
	}
	if p.BMI < 0 || math.IsNaN(p.BMI) || math.IsInf(p.BMI, 0) {
		return OnboardingAnswers{}, invalid(op, "invalid bmi")
	}
	if p.BMI == 0 && p.WeightKg > 0 && p.HeightCm > 0 {
		m := p.HeightCm / 100
		p.BMI = math.Round(p.WeightKg/(m*m)*10) / 10
	}

	p.Sex = strings.ToLower(strings.TrimSpace(p.Sex))
	switch p.Sex {
	case "", "female", "male", "other":
	default:
		return OnboardingAnswers{}, invalid(op, "sex must be female, male or other")
	}

	texts := []struct {
		name string
		v    *string
	}{
		{"exercise_type", &a.Activity.ExerciseType},
		{"medication", &a.Care.Medication},
		{"occupation", &p.Occupation},
	}
	for _, f := range texts {
		*f.v = strings.TrimSpace(*f.v)
		if len([]rune(*f.v)) > maxOnboardingText {
			return OnboardingAnswers{}, invalid(op, fmt.Sprintf("%s is too long", f.name))
		}
	}

	return a, nil
}
