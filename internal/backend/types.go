package backend

import (
	"time"

	"github.com/jobmatch/jobmatch/internal/utils"
)

// Struct tags carry normalized keys: lower case, no underscores.
// See decode for how backend field names are mapped onto them.

type Tokens struct {
	AccessToken  string `mapstructure:"accesstoken" json:"accessToken"`
	RefreshToken string `mapstructure:"refreshtoken" json:"refreshToken"`
	TokenType    string `mapstructure:"tokentype" json:"tokenType"`
}

type User struct {
	UserID     string `mapstructure:"userid" json:"userId"`
	Email      string `mapstructure:"email" json:"email"`
	FullName   string `mapstructure:"fullname" json:"fullName"`
	IsActive   bool   `mapstructure:"isactive" json:"isActive"`
	IsVerified bool   `mapstructure:"isverified" json:"isVerified"`
	Role       string `mapstructure:"role" json:"role"`
}

type Registration struct {
	Message string `mapstructure:"message" json:"message"`
	UserID  string `mapstructure:"userid" json:"userId"`
}

type JobFeatures struct {
	RequiredExperienceYears float64            `mapstructure:"requiredexperienceyears" json:"requiredExperienceYears"`
	Skills                  []string           `mapstructure:"skills" json:"skills"`
	WordFrequencies         map[string]float64 `mapstructure:"wordfrequencies" json:"wordFrequencies,omitempty"`
}

type Job struct {
	JobID         string      `mapstructure:"jobid" json:"jobId"`
	Title         string      `mapstructure:"title" json:"title"`
	Company       string      `mapstructure:"company" json:"company"`
	Location      string      `mapstructure:"location" json:"location"`
	WorkplaceType string      `mapstructure:"workplacetype" json:"workplaceType"`
	ListedTime    time.Time   `mapstructure:"listedtime" json:"listedTime"`
	ApplyURL      string      `mapstructure:"applyurl" json:"applyUrl"`
	Description   string      `mapstructure:"description" json:"description"`
	Features      JobFeatures `mapstructure:"features" json:"features"`

	// ListedDate is the field name used by the job storage service.
	ListedDate time.Time `mapstructure:"listeddate" json:"-"`
}

func (j *Job) normalize() {
	if j.ListedTime.IsZero() {
		j.ListedTime = j.ListedDate
	}
	j.Features.Skills = utils.Dedupe(j.Features.Skills)
	if j.Features.RequiredExperienceYears < 0 {
		j.Features.RequiredExperienceYears = 0
	}
}

type JobMatch struct {
	ResumeID                string   `mapstructure:"resumeid" json:"resumeId"`
	JobID                   string   `mapstructure:"jobid" json:"jobId"`
	MatchScore              float64  `mapstructure:"matchscore" json:"matchScore"`
	MatchedSkills           []string `mapstructure:"matchedskills" json:"matchedSkills"`
	MissingSkills           []string `mapstructure:"missingskills" json:"missingSkills"`
	RequiredExperienceYears float64  `mapstructure:"requiredexperienceyears" json:"requiredExperienceYears"`
	ResumeExperienceYears   float64  `mapstructure:"resumeexperienceyears" json:"resumeExperienceYears"`
	Job                     Job      `mapstructure:"job" json:"job"`

	// Flattened job fields, as sent by the match history endpoint.
	Title         string    `mapstructure:"title" json:"-"`
	Company       string    `mapstructure:"company" json:"-"`
	Location      string    `mapstructure:"location" json:"-"`
	WorkplaceType string    `mapstructure:"workplacetype" json:"-"`
	ListedTime    time.Time `mapstructure:"listedtime" json:"-"`
	ApplyURL      string    `mapstructure:"applyurl" json:"-"`
}

// normalize folds flattened job fields into Job and keeps the skill lists disjoint.
func (m *JobMatch) normalize() {
	if m.Job.JobID == "" {
		m.Job.JobID = m.JobID
	}
	if m.JobID == "" {
		m.JobID = m.Job.JobID
	}
	if m.Job.Title == "" {
		m.Job.Title = m.Title
	}
	if m.Job.Company == "" {
		m.Job.Company = m.Company
	}
	if m.Job.Location == "" {
		m.Job.Location = m.Location
	}
	if m.Job.WorkplaceType == "" {
		m.Job.WorkplaceType = m.WorkplaceType
	}
	if m.Job.ApplyURL == "" {
		m.Job.ApplyURL = m.ApplyURL
	}
	m.Job.normalize()
	if m.Job.ListedTime.IsZero() {
		m.Job.ListedTime = m.ListedTime
	}
	m.Title, m.Company, m.Location, m.WorkplaceType, m.ApplyURL = "", "", "", "", ""
	m.ListedTime = time.Time{}

	m.MatchedSkills = utils.Dedupe(m.MatchedSkills)
	matched := make(map[string]struct{}, len(m.MatchedSkills))
	for _, s := range m.MatchedSkills {
		matched[s] = struct{}{}
	}
	missing := make([]string, 0, len(m.MissingSkills))
	for _, s := range utils.Dedupe(m.MissingSkills) {
		if _, ok := matched[s]; !ok {
			missing = append(missing, s)
		}
	}
	m.MissingSkills = missing

	if m.MatchScore < 0 {
		m.MatchScore = 0
	}
	if m.MatchScore > 100 {
		m.MatchScore = 100
	}
	if m.RequiredExperienceYears < 0 {
		m.RequiredExperienceYears = 0
	}
	if m.ResumeExperienceYears < 0 {
		m.ResumeExperienceYears = 0
	}
}

type SearchResult struct {
	Message   string     `mapstructure:"message" json:"message"`
	TotalJobs int        `mapstructure:"totaljobs" json:"totalJobs"`
	Matches   []JobMatch `mapstructure:"matches" json:"matches"`
}

type History struct {
	Message string     `mapstructure:"message" json:"message"`
	Matches []JobMatch `mapstructure:"matches" json:"matches"`
}

type ResumeFeatures struct {
	WorkExperienceYears float64            `mapstructure:"workexperienceyears" json:"workExperienceYears"`
	Skills              []string           `mapstructure:"skills" json:"skills"`
	WordFrequencies     map[string]float64 `mapstructure:"wordfrequencies" json:"wordFrequencies,omitempty"`
}

type Resume struct {
	ResumeID      string         `mapstructure:"resumeid" json:"resumeId"`
	UserID        string         `mapstructure:"userid" json:"userId"`
	Features      ResumeFeatures `mapstructure:"features" json:"features"`
	RawText       string         `mapstructure:"rawtext" json:"rawText,omitempty"`
	ProcessedDate time.Time      `mapstructure:"processeddate" json:"processedDate"`

	// Top-level fields of the resume service response.
	Skills    []string  `mapstructure:"skills" json:"-"`
	CreatedAt time.Time `mapstructure:"createdat" json:"-"`
}

func (r *Resume) normalize() {
	if len(r.Features.Skills) == 0 {
		r.Features.Skills = r.Skills
	}
	r.Features.Skills = utils.Dedupe(r.Features.Skills)
	if r.ProcessedDate.IsZero() {
		r.ProcessedDate = r.CreatedAt
	}
	r.Skills = nil
	r.CreatedAt = time.Time{}
}

type UploadResult struct {
	ResumeID string         `mapstructure:"resumeid" json:"resumeId"`
	Status   string         `mapstructure:"status" json:"status,omitempty"`
	Message  string         `mapstructure:"message" json:"message,omitempty"`
	Features map[string]any `mapstructure:"features" json:"features,omitempty"`
}
