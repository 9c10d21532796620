// Package domain defines the resume aggregate and its child entities.
package domain

import "time"

// Resume is the root entity. ID is immutable once assigned; saving an
// existing ID performs a full replace of the parent row and every child
// collection.
type Resume struct {
	ID       string   `json:"id" db:"id"`
	FullName string   `json:"full_name" db:"full_name"`
	Email    string   `json:"email" db:"email"`
	Phone    string   `json:"phone,omitempty" db:"phone"`
	Location string   `json:"location,omitempty" db:"location"`
	Summary  string   `json:"summary,omitempty" db:"summary"`
	Skills   []string `json:"skills,omitempty" db:"skills"`

	Experience     []ExperienceEntry    `json:"experience,omitempty" db:"-"`
	Education      []EducationEntry     `json:"education,omitempty" db:"-"`
	Certifications []CertificationEntry `json:"certifications,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ExperienceEntry is one work-history row. Position is the explicit order
// key; entries round-trip in Position order, not insertion order.
type ExperienceEntry struct {
	ID          string `json:"id" db:"id"`
	ResumeID    string `json:"resume_id" db:"resume_id"`
	Position    int    `json:"position" db:"position"`
	Company     string `json:"company" db:"company"`
	Title       string `json:"title" db:"title"`
	Location    string `json:"location,omitempty" db:"location"`
	StartDate   string `json:"start_date" db:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date,omitempty" db:"end_date"`
	Description string `json:"description,omitempty" db:"description"`
}

// EducationEntry is one education row.
type EducationEntry struct {
	ID          string `json:"id" db:"id"`
	ResumeID    string `json:"resume_id" db:"resume_id"`
	Position    int    `json:"position" db:"position"`
	Institution string `json:"institution" db:"institution"`
	Degree      string `json:"degree" db:"degree"`
	Field       string `json:"field,omitempty" db:"field"`
	StartDate   string `json:"start_date" db:"start_date"`
	EndDate     string `json:"end_date,omitempty" db:"end_date"`
	Description string `json:"description,omitempty" db:"description"`
}

// CertificationEntry is one certification row.
type CertificationEntry struct {
	ID           string `json:"id" db:"id"`
	ResumeID     string `json:"resume_id" db:"resume_id"`
	Position     int    `json:"position" db:"position"`
	Name         string `json:"name" db:"name"`
	Issuer       string `json:"issuer,omitempty" db:"issuer"`
	IssueDate    string `json:"issue_date,omitempty" db:"issue_date"`
	ExpiryDate   string `json:"expiry_date,omitempty" db:"expiry_date"`
	CredentialID string `json:"credential_id,omitempty" db:"credential_id"`
}
