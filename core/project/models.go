package project

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/alumnet/alumnet/core"
)

var (
	ProjectTypes = []string{
		"Software Development",
		"Research-Oriented",
		"Engineering and Technical Projects",
		"AI, Machine Learning, and Data Science",
		"Business and Management Projects",
	}

	Departments = []string{
		"Computer Science & Engineering",
		"Mechanical Engineering",
		"Information Technology",
		"Civil Engineering",
		"Biotechnology",
		"Business Administration (MBA/BBA)",
	}

	Phases = []string{"initial", "intermediate", "advance"}
)

type Project struct {
	ID              string          `json:"id"`
	CreatedBy       string          `json:"created_by"`
	Topic           string          `json:"topic"`
	Description     string          `json:"description"`
	ProjectType     string          `json:"project_type"`
	Department      string          `json:"department"`
	Phase           string          `json:"phase"`
	Technologies    []string        `json:"technologies"`
	FundingRequired bool            `json:"funding_required"`
	OpenForMentor   bool            `json:"open_for_mentor"`
	OpenForStudent  bool            `json:"open_for_student"`
	Contributors    []string        `json:"contributors"`
	DonatedAmount   decimal.Decimal `json:"donated_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewProject contains information needed to create a new Project.
type NewProject struct {
	Topic           string   `json:"topic" validate:"required,max=255"`
	Description     string   `json:"description" validate:"required"`
	ProjectType     string   `json:"project_type" validate:"required,projecttype"`
	Department      string   `json:"department" validate:"required,department"`
	Phase           string   `json:"phase" validate:"required,oneof=initial intermediate advance"`
	Technologies    []string `json:"technologies" validate:"max=7,dive,required"`
	FundingRequired bool     `json:"funding_required"`
	OpenForMentor   bool     `json:"open_for_mentor"`
	OpenForStudent  bool     `json:"open_for_student"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Topic = core.CleanString(np.Topic)
	np.Description = core.CleanString(np.Description)
	np.Technologies = cleanTechnologies(np.Technologies)
	return validate.Struct(np)
}

// UpdateProject defines what information may be provided to modify an existing Project.
type UpdateProject struct {
	Topic           string   `json:"topic" validate:"omitempty,max=255"`
	Description     string   `json:"description"`
	ProjectType     string   `json:"project_type" validate:"omitempty,projecttype"`
	Department      string   `json:"department" validate:"omitempty,department"`
	Phase           string   `json:"phase" validate:"omitempty,oneof=initial intermediate advance"`
	Technologies    []string `json:"technologies" validate:"max=7,dive,required"`
	FundingRequired *bool    `json:"funding_required"`
	OpenForMentor   *bool    `json:"open_for_mentor"`
	OpenForStudent  *bool    `json:"open_for_student"`
}

func (up *UpdateProject) Validate(orig Project, validate *validator.Validate) error {
	up.Topic = orDefault(core.CleanString(up.Topic), orig.Topic)
	up.Description = orDefault(core.CleanString(up.Description), orig.Description)
	up.ProjectType = orDefault(up.ProjectType, orig.ProjectType)
	up.Department = orDefault(up.Department, orig.Department)
	up.Phase = orDefault(up.Phase, orig.Phase)
	if up.Technologies == nil {
		up.Technologies = orig.Technologies
	} else {
		up.Technologies = cleanTechnologies(up.Technologies)
	}
	return validate.Struct(up)
}

type QueryFilter struct {
	CreatedBy string `query:"created_by"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func cleanTechnologies(techs []string) []string {
	cleaned := make([]string, 0, len(techs))
	for _, tech := range techs {
		if tech = core.CleanString(tech); tech != "" && !core.ContainsString(cleaned, tech) {
			cleaned = append(cleaned, tech)
		}
	}
	return cleaned
}
