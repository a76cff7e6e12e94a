package models

// Configuration objects consumed by the core. These are constructed by
// the config layer and passed in fully formed; core packages never read
// the environment or files directly.

// QueryParams is the flat parameter set for the structured KKJ API.
// At least one of Query, ProjectName, OrganizationName, or LGCode must
// be non-empty for a request to be valid.
type QueryParams struct {
	Query                    string `mapstructure:"query"                      yaml:"query"`
	ProjectName              string `mapstructure:"project_name"               yaml:"project_name"`
	OrganizationName         string `mapstructure:"organization_name"          yaml:"organization_name"`
	LGCode                   string `mapstructure:"lg_code"                    yaml:"lg_code"`
	Count                    int    `mapstructure:"count"                      yaml:"count"`
	Category                 int    `mapstructure:"category"                   yaml:"category"`
	ProcedureType            int    `mapstructure:"procedure_type"             yaml:"procedure_type"`
	Certification            string `mapstructure:"certification"              yaml:"certification"`
	CFTIssueDate             string `mapstructure:"cft_issue_date"             yaml:"cft_issue_date"`
	TenderSubmissionDeadline string `mapstructure:"tender_submission_deadline" yaml:"tender_submission_deadline"`
	OpeningTendersEvent      string `mapstructure:"opening_tenders_event"      yaml:"opening_tenders_event"`
	PeriodEndTime            string `mapstructure:"period_end_time"            yaml:"period_end_time"`
}

// HasAnchor reports whether at least one anchor field is set.
func (p QueryParams) HasAnchor() bool {
	return p.Query != "" || p.ProjectName != "" || p.OrganizationName != "" || p.LGCode != ""
}

// DateRange bounds a query by publish date. Either side may be empty
// for an open-ended range.
type DateRange struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to"   yaml:"to"`
}

// QueryConfig is one ingestion query definition.
type QueryConfig struct {
	Name      string      `mapstructure:"name"       yaml:"name"`
	Source    string      `mapstructure:"source"     yaml:"source"`
	Params    QueryParams `mapstructure:"params"     yaml:"params"`
	DateRange *DateRange  `mapstructure:"date_range" yaml:"date_range"`
	Limit     int         `mapstructure:"limit"      yaml:"limit"`
	Enabled   bool        `mapstructure:"enabled"    yaml:"enabled"`
	Tags      []string    `mapstructure:"tags"       yaml:"tags"`
}

// SearchFilters is a stored item search filter.
type SearchFilters struct {
	Keyword string `json:"keyword"          mapstructure:"keyword" yaml:"keyword"`
	From    string `json:"from,omitempty"   mapstructure:"from"    yaml:"from"`
	To      string `json:"to,omitempty"     mapstructure:"to"      yaml:"to"`
	Org     string `json:"org,omitempty"    mapstructure:"org"     yaml:"org"`
	Source  string `json:"source,omitempty" mapstructure:"source"  yaml:"source"`
	Limit   int    `json:"limit,omitempty"  mapstructure:"limit"   yaml:"limit"`
	Offset  int    `json:"offset,omitempty" mapstructure:"offset"  yaml:"offset"`
}

// SavedSearchConfig is a saved-search definition from configuration.
type SavedSearchConfig struct {
	Name     string        `mapstructure:"name"      yaml:"name"`
	QueryRef string        `mapstructure:"query_ref" yaml:"query_ref"`
	Filters  SearchFilters `mapstructure:"filters"   yaml:"filters"`
	OrderBy  string        `mapstructure:"order_by"  yaml:"order_by"`
	Schedule string        `mapstructure:"schedule"  yaml:"schedule"`
	OnlyNew  bool          `mapstructure:"only_new"  yaml:"only_new"`
	Enabled  bool          `mapstructure:"enabled"   yaml:"enabled"`
}

// NotifyConfig configures notification delivery for saved-search runs.
type NotifyConfig struct {
	Channel    string   `mapstructure:"channel"    yaml:"channel"`
	Recipients []string `mapstructure:"recipients" yaml:"recipients"`
	Template   string   `mapstructure:"template"   yaml:"template"`
	MaxItems   int      `mapstructure:"max_items"  yaml:"max_items"`
	Enabled    bool     `mapstructure:"enabled"    yaml:"enabled"`
}
