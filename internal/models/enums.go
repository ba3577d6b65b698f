package models

import "fmt"

// Purpose is the declared use of a loan
type Purpose string

const (
	PurposeEmergency Purpose = "emergency"
	PurposeBusiness  Purpose = "business"
	PurposePersonal  Purpose = "personal"
	PurposeEducation Purpose = "education"
)

// ParsePurpose converts raw input into a Purpose, rejecting unknown values
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case PurposeEmergency, PurposeBusiness, PurposePersonal, PurposeEducation:
		return p, nil
	}
	return "", fmt.Errorf("unknown purpose %q", s)
}

// RepaymentPlan is the repayment cadence chosen for a loan
type RepaymentPlan string

const (
	PlanWeekly   RepaymentPlan = "weekly"
	PlanBiWeekly RepaymentPlan = "bi_weekly"
	PlanMonthly  RepaymentPlan = "monthly"
)

// ParseRepaymentPlan converts raw input into a RepaymentPlan
func ParseRepaymentPlan(s string) (RepaymentPlan, error) {
	switch p := RepaymentPlan(s); p {
	case PlanWeekly, PlanBiWeekly, PlanMonthly:
		return p, nil
	}
	return "", fmt.Errorf("unknown repayment plan %q", s)
}

// EducationLevel is the highest completed education of a worker
type EducationLevel string

const (
	EducationNone       EducationLevel = "none"
	EducationHighSchool EducationLevel = "high_school"
	EducationBachelor   EducationLevel = "bachelor"
	EducationMaster     EducationLevel = "master"
	EducationPhD        EducationLevel = "phd"
)

// ParseEducationLevel converts raw input into an EducationLevel
func ParseEducationLevel(s string) (EducationLevel, error) {
	switch e := EducationLevel(s); e {
	case EducationNone, EducationHighSchool, EducationBachelor, EducationMaster, EducationPhD:
		return e, nil
	}
	return "", fmt.Errorf("unknown education level %q", s)
}

// EmploymentType describes how a worker splits time across gig work
type EmploymentType string

const (
	EmploymentFullTimeGig EmploymentType = "full_time_gig"
	EmploymentPartTimeGig EmploymentType = "part_time_gig"
	EmploymentMixed       EmploymentType = "mixed"
	EmploymentUnemployed  EmploymentType = "unemployed"
)

// ParseEmploymentType converts raw input into an EmploymentType
func ParseEmploymentType(s string) (EmploymentType, error) {
	switch e := EmploymentType(s); e {
	case EmploymentFullTimeGig, EmploymentPartTimeGig, EmploymentMixed, EmploymentUnemployed:
		return e, nil
	}
	return "", fmt.Errorf("unknown employment type %q", s)
}

// Granularity is the bucket size of an income series
type Granularity string

const (
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ParseGranularity converts raw input into a Granularity. Empty input means weekly.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case "":
		return GranularityWeekly, nil
	case GranularityWeekly, GranularityMonthly:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}
