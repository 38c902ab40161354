package backend

import (
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/jobmatch/jobmatch/internal/apierr"
)

const (
	defaultLocation = "United States"
	defaultLimit    = 5
	maxLimit        = 100
)

var (
	// ExperienceLevels maps search codes to labels.
	ExperienceLevels = map[string]string{
		"1": "Internship",
		"2": "Entry Level",
		"3": "Associate",
		"4": "Mid-Senior",
		"5": "Director",
		"6": "Executive",
	}
	JobTypes = map[string]string{
		"F": "Full-time",
		"P": "Part-time",
		"C": "Contract",
		"T": "Temporary",
		"I": "Internship",
		"V": "Volunteer",
	}
	RemoteOptions = map[string]string{
		"1": "On-site",
		"2": "Remote",
		"3": "Hybrid",
	}
)

type SearchParams struct {
	Keywords     string `mapstructure:"keywords" json:"keywords" qparam:"keywords"`
	LocationName string `mapstructure:"location-name" json:"locationName" qparam:"location_name"`
	// qparam is the query parameter name. Slices are sent as repeated parameters.
	ExperienceLevel []string `mapstructure:"experience" json:"experienceLevel" qparam:"experience"`
	JobType         []string `mapstructure:"job-type" json:"jobType" qparam:"job_type"`
	Remote          []string `mapstructure:"remote" json:"remote" qparam:"remote"`
	Limit           int      `mapstructure:"limit" json:"limit" qparam:"limit"`
	UserID          string   `mapstructure:"-" json:"userId" qparam:"user_id"`
}

// DefaultSearchParams returns the defaults of the search form.
func DefaultSearchParams() *SearchParams {
	return &SearchParams{
		LocationName:    defaultLocation,
		ExperienceLevel: []string{"2", "3"},
		JobType:         []string{"F", "C"},
		Remote:          []string{"1", "2"},
		Limit:           defaultLimit,
	}
}

// Clone returns a copy of p that shares no slices with it.
func (p *SearchParams) Clone() *SearchParams {
	if p == nil {
		return nil
	}
	c := *p
	c.ExperienceLevel = slices.Clone(p.ExperienceLevel)
	c.JobType = slices.Clone(p.JobType)
	c.Remote = slices.Clone(p.Remote)
	return &c
}

// Merge fills empty fields of p from defaults.
func (p *SearchParams) Merge(defaults *SearchParams) {
	if defaults == nil {
		return
	}
	if strings.TrimSpace(p.Keywords) == "" {
		p.Keywords = defaults.Keywords
	}
	if strings.TrimSpace(p.LocationName) == "" {
		p.LocationName = defaults.LocationName
	}
	if len(p.ExperienceLevel) == 0 {
		p.ExperienceLevel = slices.Clone(defaults.ExperienceLevel)
	}
	if len(p.JobType) == 0 {
		p.JobType = slices.Clone(defaults.JobType)
	}
	if len(p.Remote) == 0 {
		p.Remote = slices.Clone(defaults.Remote)
	}
	if p.Limit == 0 {
		p.Limit = defaults.Limit
	}
	if p.UserID == "" {
		p.UserID = defaults.UserID
	}
}

// Validate rejects parameters the backend cannot serve.
func (p *SearchParams) Validate() error {
	if strings.TrimSpace(p.Keywords) == "" {
		return &apierr.ValidationError{Field: "keywords", Reason: "is required"}
	}
	if strings.TrimSpace(p.LocationName) == "" {
		return &apierr.ValidationError{Field: "location_name", Reason: "is required"}
	}
	if p.Limit <= 0 || p.Limit > maxLimit {
		return &apierr.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", maxLimit)}
	}
	if strings.TrimSpace(p.UserID) == "" {
		return &apierr.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if err := validateCodes("experience", p.ExperienceLevel, ExperienceLevels); err != nil {
		return err
	}
	if err := validateCodes("job_type", p.JobType, JobTypes); err != nil {
		return err
	}
	return validateCodes("remote", p.Remote, RemoteOptions)
}

func validateCodes(field string, codes []string, known map[string]string) error {
	for _, code := range codes {
		if _, ok := known[code]; !ok {
			return &apierr.ValidationError{Field: field, Reason: fmt.Sprintf("unknown code %q", code)}
		}
	}
	return nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	v := reflect.ValueOf(params).Elem()

	for _, field := range reflect.VisibleFields(v.Type()) {
		key := field.Tag.Get("qparam")
		if key == "" || key == "-" {
			continue
		}

		value := v.FieldByIndex(field.Index)
		switch field.Type.Kind() {
		case reflect.Slice:
			if values, ok := value.Interface().([]string); ok {
				for _, item := range values {
					q.Add(key, item)
				}
			}
		case reflect.Int:
			if n := value.Int(); n != 0 {
				q.Set(key, strconv.FormatInt(n, 10))
			}
		default:
			if s := strings.TrimSpace(fmt.Sprintf("%v", value.Interface())); s != "" {
				q.Set(key, s)
			}
		}
	}

	return q
}
