package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vuminh/resumebase/internal/core/domain"
	"github.com/vuminh/resumebase/internal/infra/backend"
)

// Repo implements ResumeRepository over the resilient call executor.
type Repo struct {
	exec *backend.Executor
	log  *slog.Logger
}

// NewRepo creates a repository executing through exec.
func NewRepo(exec *backend.Executor) *Repo {
	return &Repo{
		exec: exec,
		log:  slog.Default().With("component", "store"),
	}
}

// Save upserts the parent row, then replaces the three child collections.
// Replacement per child kind is strictly delete-then-insert; the three
// kinds run concurrently. Partial writes may persist when a later step
// fails; the error is surfaced, not hidden.
func (r *Repo) Save(ctx context.Context, res *domain.Resume) (string, error) {
	if res == nil {
		return "", fmt.Errorf("nil resume")
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	err := r.exec.Do(ctx, "resume.upsert", func(ctx context.Context, h backend.Handle) error {
		return h.Upsert(ctx, tableResumes, resumeRow(res), "id")
	})
	if err != nil {
		return "", err
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)

	replace := func(i int, kind, table string, rows []backend.Row) {
		defer wg.Done()
		errs[i] = r.replaceChildren(ctx, kind, table, res.ID, rows)
	}

	wg.Add(3)
	go replace(0, "experience", tableExperience, experienceRows(res))
	go replace(1, "education", tableEducation, educationRows(res))
	go replace(2, "certification", tableCertifications, certificationRows(res))
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	r.log.Debug("resume saved", "id", res.ID,
		"experience", len(res.Experience),
		"education", len(res.Education),
		"certifications", len(res.Certifications))

	return res.ID, nil
}

// replaceChildren deletes every existing row for the resume, then
// bulk-inserts the current collection. The insert is never issued before
// the delete has completed, so a shorter second save leaves no leftovers.
func (r *Repo) replaceChildren(ctx context.Context, kind, table, resumeID string, rows []backend.Row) error {
	err := r.exec.Do(ctx, kind+".delete", func(ctx context.Context, h backend.Handle) error {
		return h.Delete(ctx, table, backend.Filter{"resume_id": resumeID})
	})
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	return r.exec.Do(ctx, kind+".insert", func(ctx context.Context, h backend.Handle) error {
		return h.Insert(ctx, table, rows)
	})
}

// Get fetches the parent row and the three child collections. The four
// fetches are independent and run concurrently.
func (r *Repo) Get(ctx context.Context, id string) (*domain.Resume, error) {
	var (
		wg     sync.WaitGroup
		parent []backend.Row
		childs childRows
		errs   = make([]error, 2)
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		parent, errs[0] = backend.Call(ctx, r.exec, "resume.select",
			func(ctx context.Context, h backend.Handle) ([]backend.Row, error) {
				return h.Select(ctx, tableResumes, backend.Filter{"id": id}, "")
			})
	}()
	go func() {
		defer wg.Done()
		childs, errs[1] = r.fetchChildren(ctx, id)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if len(parent) == 0 {
		return nil, ErrNotFound
	}

	res, err := rowToResume(parent[0])
	if err != nil {
		return nil, err
	}
	childs.attach(res)

	return res, nil
}

// GetAll fetches all parent rows newest-first, then the child collections
// of each resume. Cost is O(N) round trips fanned out per resume; fine
// for the data volumes this serves.
func (r *Repo) GetAll(ctx context.Context) ([]*domain.Resume, error) {
	parents, err := backend.Call(ctx, r.exec, "resume.select_all",
		func(ctx context.Context, h backend.Handle) ([]backend.Row, error) {
			return h.Select(ctx, tableResumes, nil, "created_at desc")
		})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Resume, len(parents))
	errs := make([]error, len(parents))

	var wg sync.WaitGroup
	for i, row := range parents {
		res, err := rowToResume(row)
		if err != nil {
			return nil, err
		}
		out[i] = res

		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			childs, err := r.fetchChildren(ctx, id)
			if err != nil {
				errs[i] = err
				return
			}
			childs.attach(out[i])
		}(i, res.ID)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes the parent row. Child rows are removed by the backend's
// cascade, not by this layer.
func (r *Repo) Delete(ctx context.Context, id string) error {
	return r.exec.Do(ctx, "resume.delete", func(ctx context.Context, h backend.Handle) error {
		return h.Delete(ctx, tableResumes, backend.Filter{"id": id})
	})
}

type childRows struct {
	experience     []backend.Row
	education      []backend.Row
	certifications []backend.Row
}

// fetchChildren loads the three collections concurrently, each ordered by
// its order key.
func (r *Repo) fetchChildren(ctx context.Context, resumeID string) (childRows, error) {
	var (
		wg     sync.WaitGroup
		childs childRows
		errs   = make([]error, 3)
	)

	fetch := func(i int, kind, table string, dst *[]backend.Row) {
		defer wg.Done()
		*dst, errs[i] = backend.Call(ctx, r.exec, kind+".select",
			func(ctx context.Context, h backend.Handle) ([]backend.Row, error) {
				return h.Select(ctx, table, backend.Filter{"resume_id": resumeID}, "position asc")
			})
	}

	wg.Add(3)
	go fetch(0, "experience", tableExperience, &childs.experience)
	go fetch(1, "education", tableEducation, &childs.education)
	go fetch(2, "certification", tableCertifications, &childs.certifications)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return childRows{}, err
		}
	}
	return childs, nil
}

func (c childRows) attach(res *domain.Resume) {
	res.Experience = make([]domain.ExperienceEntry, 0, len(c.experience))
	for _, row := range c.experience {
		res.Experience = append(res.Experience, rowToExperience(row))
	}
	res.Education = make([]domain.EducationEntry, 0, len(c.education))
	for _, row := range c.education {
		res.Education = append(res.Education, rowToEducation(row))
	}
	res.Certifications = make([]domain.CertificationEntry, 0, len(c.certifications))
	for _, row := range c.certifications {
		res.Certifications = append(res.Certifications, rowToCertification(row))
	}

	// Backends return rows in order-key order already; sorting here keeps
	// the round-trip guarantee independent of the handle implementation.
	sort.SliceStable(res.Experience, func(i, j int) bool {
		return res.Experience[i].Position < res.Experience[j].Position
	})
	sort.SliceStable(res.Education, func(i, j int) bool {
		return res.Education[i].Position < res.Education[j].Position
	})
	sort.SliceStable(res.Certifications, func(i, j int) bool {
		return res.Certifications[i].Position < res.Certifications[j].Position
	})
}

// --- row mapping ---

func resumeRow(r *domain.Resume) backend.Row {
	return backend.Row{
		"id":         r.ID,
		"full_name":  r.FullName,
		"email":      r.Email,
		"phone":      r.Phone,
		"location":   r.Location,
		"summary":    r.Summary,
		"skills":     r.Skills,
		"created_at": r.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": r.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func experienceRows(r *domain.Resume) []backend.Row {
	rows := make([]backend.Row, 0, len(r.Experience))
	for i, e := range r.Experience {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		rows = append(rows, backend.Row{
			"id":          e.ID,
			"resume_id":   r.ID,
			"position":    i,
			"company":     e.Company,
			"title":       e.Title,
			"location":    e.Location,
			"start_date":  e.StartDate,
			"end_date":    e.EndDate,
			"description": e.Description,
		})
	}
	return rows
}

func educationRows(r *domain.Resume) []backend.Row {
	rows := make([]backend.Row, 0, len(r.Education))
	for i, e := range r.Education {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		rows = append(rows, backend.Row{
			"id":          e.ID,
			"resume_id":   r.ID,
			"position":    i,
			"institution": e.Institution,
			"degree":      e.Degree,
			"field":       e.Field,
			"start_date":  e.StartDate,
			"end_date":    e.EndDate,
			"description": e.Description,
		})
	}
	return rows
}

func certificationRows(r *domain.Resume) []backend.Row {
	rows := make([]backend.Row, 0, len(r.Certifications))
	for i, c := range r.Certifications {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		rows = append(rows, backend.Row{
			"id":            c.ID,
			"resume_id":     r.ID,
			"position":      i,
			"name":          c.Name,
			"issuer":        c.Issuer,
			"issue_date":    c.IssueDate,
			"expiry_date":   c.ExpiryDate,
			"credential_id": c.CredentialID,
		})
	}
	return rows
}

func rowToResume(row backend.Row) (*domain.Resume, error) {
	id := asString(row["id"])
	if id == "" {
		return nil, fmt.Errorf("resume row missing id")
	}
	return &domain.Resume{
		ID:        id,
		FullName:  asString(row["full_name"]),
		Email:     asString(row["email"]),
		Phone:     asString(row["phone"]),
		Location:  asString(row["location"]),
		Summary:   asString(row["summary"]),
		Skills:    asStringSlice(row["skills"]),
		CreatedAt: asTime(row["created_at"]),
		UpdatedAt: asTime(row["updated_at"]),
	}, nil
}

func rowToExperience(row backend.Row) domain.ExperienceEntry {
	return domain.ExperienceEntry{
		ID:          asString(row["id"]),
		ResumeID:    asString(row["resume_id"]),
		Position:    asInt(row["position"]),
		Company:     asString(row["company"]),
		Title:       asString(row["title"]),
		Location:    asString(row["location"]),
		StartDate:   asString(row["start_date"]),
		EndDate:     asString(row["end_date"]),
		Description: asString(row["description"]),
	}
}

func rowToEducation(row backend.Row) domain.EducationEntry {
	return domain.EducationEntry{
		ID:          asString(row["id"]),
		ResumeID:    asString(row["resume_id"]),
		Position:    asInt(row["position"]),
		Institution: asString(row["institution"]),
		Degree:      asString(row["degree"]),
		Field:       asString(row["field"]),
		StartDate:   asString(row["start_date"]),
		EndDate:     asString(row["end_date"]),
		Description: asString(row["description"]),
	}
}

func rowToCertification(row backend.Row) domain.CertificationEntry {
	return domain.CertificationEntry{
		ID:           asString(row["id"]),
		ResumeID:     asString(row["resume_id"]),
		Position:     asInt(row["position"]),
		Name:         asString(row["name"]),
		Issuer:       asString(row["issuer"]),
		IssueDate:    asString(row["issue_date"]),
		ExpiryDate:   asString(row["expiry_date"]),
		CredentialID: asString(row["credential_id"]),
	}
}

// --- value coercion ---
//
// Row values arrive as JSON-decoded values from the REST handle and as
// driver-native values from the SQL handle; these helpers accept both.

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999-07", "2006-01-02T15:04:05.999999"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, asString(item))
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
	case []byte:
		var out []string
		if err := json.Unmarshal(s, &out); err == nil {
			return out
		}
	}
	return nil
}
