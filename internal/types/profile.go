package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SkillItem is one skill with a proficiency level.
type SkillItem struct {
	Name      string `json:"name" validate:"required"`
	Level     string `json:"level" validate:"required,oneof=Beginner Intermediate Advanced Expert"`
	YearsUsed *int   `json:"yearsUsed,omitempty"`
}

// Education holds the applicant's degree information.
type Education struct {
	Degree         string `json:"degree,omitempty"`
	University     string `json:"university,omitempty"`
	GraduationYear int    `json:"graduationYear,omitempty"`
}

// SalaryRange is the desired compensation band.
type SalaryRange struct {
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
	Currency string `json:"currency"`
}

// ProfilePreferences holds the applicant's job-search preferences embedded in
// the profile (role types like IC/Lead/Manager, industries, company sizes,
// work styles, salary band).
type ProfilePreferences struct {
	RoleTypes    []string    `json:"roleTypes"`
	Industries   []string    `json:"industries"`
	CompanySizes []string    `json:"companySizes"`
	WorkStyles   []string    `json:"workStyles"`
	SalaryRange  SalaryRange `json:"salaryRange"`
}

// Documents holds links to the applicant's external documents.
type Documents struct {
	ResumeURL    string `json:"resumeUrl,omitempty"`
	PortfolioURL string `json:"portfolioUrl,omitempty"`
	LinkedinURL  string `json:"linkedinUrl,omitempty"`
	GithubURL    string `json:"githubUrl,omitempty"`
}

// UserProfile is the applicant's structured resume data. The server is
// authoritative once a save succeeds; the local cache is a read-through/
// write-through shadow used to survive restarts and to bridge the gap
// between sign-in and the authoritative fetch completing.
type UserProfile struct {
	// Personal information
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location" validate:"required"`

	// Professional information
	ProfessionalTitle string   `json:"professionalTitle" validate:"required"`
	YearsExperience   int      `json:"yearsExperience" validate:"min=0"`
	CurrentCompany    string   `json:"currentCompany,omitempty"`
	PreviousCompanies []string `json:"previousCompanies,omitempty"`

	Education Education `json:"education"`

	// Skills and expertise
	TechnicalSkills      []SkillItem `json:"technicalSkills" validate:"dive"`
	ProgrammingLanguages []SkillItem `json:"programmingLanguages" validate:"dive"`
	Frameworks           []SkillItem `json:"frameworks" validate:"dive"`
	Certifications       []string    `json:"certifications"`

	// Career narrative
	CareerSummary   string   `json:"careerSummary"`
	KeyAchievements []string `json:"keyAchievements"`
	CareerGoals     string   `json:"careerGoals"`

	Preferences ProfilePreferences `json:"preferences"`
	Documents   Documents          `json:"documents"`

	// Metadata. Timestamps are epoch milliseconds.
	CreatedAt  int64 `json:"createdAt"`
	UpdatedAt  int64 `json:"updatedAt"`
	IsComplete bool  `json:"isComplete"`
}

// Validate validates the UserProfile using the validator.
func (p *UserProfile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

const notSpecified = "Not specified"

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

func listOrDefault(items []string, sep string) string {
	if len(items) == 0 {
		return notSpecified
	}
	return strings.Join(items, sep)
}

func skillList(items []SkillItem) string {
	parts := make([]string, 0, len(items))
	for _, s := range items {
		parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, s.Level))
	}
	return strings.Join(parts, ", ")
}

// ProfileText renders the profile as sectioned plain text for the run
// service's matching pipeline. This is the payload sent with a start request.
func (p *UserProfile) ProfileText() string {
	var sections []string

	years := notSpecified
	if p.YearsExperience > 0 {
		years = fmt.Sprintf("%d", p.YearsExperience)
	}
	sections = append(sections, fmt.Sprintf(`PERSONAL INFO:
Name: %s
Email: %s
Phone: %s
Location: %s
Professional Title: %s
Years of Experience: %s`,
		orDefault(p.FullName), orDefault(p.Email), orDefault(p.Phone),
		orDefault(p.Location), orDefault(p.ProfessionalTitle), years))

	sections = append(sections, fmt.Sprintf(`PROFESSIONAL BACKGROUND:
Current Company: %s
Previous Companies: %s
Career Summary: %s
Key Achievements: %s`,
		orDefault(p.CurrentCompany), listOrDefault(p.PreviousCompanies, ", "),
		orDefault(p.CareerSummary), listOrDefault(p.KeyAchievements, "; ")))

	gradYear := notSpecified
	if p.Education.GraduationYear > 0 {
		gradYear = fmt.Sprintf("%d", p.Education.GraduationYear)
	}
	sections = append(sections, fmt.Sprintf(`EDUCATION:
Degree: %s
University: %s
Graduation Year: %s`,
		orDefault(p.Education.Degree), orDefault(p.Education.University), gradYear))

	var skills []string
	if len(p.TechnicalSkills) > 0 {
		skills = append(skills, "Technical Skills: "+skillList(p.TechnicalSkills))
	}
	if len(p.ProgrammingLanguages) > 0 {
		skills = append(skills, "Programming Languages: "+skillList(p.ProgrammingLanguages))
	}
	if len(p.Frameworks) > 0 {
		skills = append(skills, "Frameworks: "+skillList(p.Frameworks))
	}
	if len(p.Certifications) > 0 {
		skills = append(skills, "Certifications: "+strings.Join(p.Certifications, ", "))
	}
	if len(skills) > 0 {
		sections = append(sections, "SKILLS & EXPERTISE:\n"+strings.Join(skills, "\n"))
	}

	sections = append(sections, "CAREER GOALS: "+orDefault(p.CareerGoals))

	salary := notSpecified
	if p.Preferences.SalaryRange.Currency != "" {
		minStr := "0"
		if p.Preferences.SalaryRange.Min != nil {
			minStr = fmt.Sprintf("%d", *p.Preferences.SalaryRange.Min)
		}
		maxStr := "Open"
		if p.Preferences.SalaryRange.Max != nil {
			maxStr = fmt.Sprintf("%d", *p.Preferences.SalaryRange.Max)
		}
		salary = fmt.Sprintf("%s - %s %s", minStr, maxStr, p.Preferences.SalaryRange.Currency)
	}
	sections = append(sections, fmt.Sprintf(`JOB PREFERENCES:
Role Types: %s
Industries: %s
Company Sizes: %s
Work Styles: %s
Salary Range: %s`,
		listOrDefault(p.Preferences.RoleTypes, ", "),
		listOrDefault(p.Preferences.Industries, ", "),
		listOrDefault(p.Preferences.CompanySizes, ", "),
		listOrDefault(p.Preferences.WorkStyles, ", "),
		salary))

	return strings.Join(sections, "\n\n")
}
