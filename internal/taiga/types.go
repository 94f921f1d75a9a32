package taiga

import (
	"encoding/json"
)

// StatusInfo is the denormalized status object Taiga attaches to list
// payloads as status_extra_info.
type StatusInfo struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	IsClosed bool   `json:"is_closed"`
}

// UserInfo is the denormalized user object (assigned_to_extra_info,
// owner_extra_info).
type UserInfo struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name_display"`
	GravatarID  string `json:"gravatar_id"`
	IsActive    bool   `json:"is_active"`
	PhotoURL    string `json:"photo"`
	BigPhotoURL string `json:"big_photo"`
}

// EpicInfo is one element of the epics list on a user story.
type EpicInfo struct {
	ID      int    `json:"id"`
	Ref     int    `json:"ref"`
	Subject string `json:"subject"`
	Color   string `json:"color"`
}

// UserStoryInfo is the denormalized parent story object on a task
// (user_story_extra_info).
type UserStoryInfo struct {
	ID      int        `json:"id"`
	Ref     int        `json:"ref"`
	Subject string     `json:"subject"`
	Epics   []EpicInfo `json:"epics"`
}

// Record is one work item (issue, user story or task) as returned by the
// Taiga list endpoints. The three item kinds share most of their shape;
// kind-specific fields (points, user_story, priority/severity/type) are
// simply absent for the other kinds. Raw holds the undecoded JSON object
// so that unlisted fields remain reachable by dotted-path lookup.
type Record struct {
	ID          int    `json:"id"`
	Ref         int    `json:"ref"`
	Version     int    `json:"version"`
	Project     int    `json:"project"`
	Subject     string `json:"subject"`
	Description string `json:"description"`

	StatusID   int         `json:"status"`
	StatusInfo *StatusInfo `json:"status_extra_info"`

	AssignedTo     *int      `json:"assigned_to"`
	AssignedToInfo *UserInfo `json:"assigned_to_extra_info"`
	Owner          *int      `json:"owner"`
	OwnerInfo      *UserInfo `json:"owner_extra_info"`

	Milestone     *int   `json:"milestone"`
	MilestoneSlug string `json:"milestone_slug"`
	MilestoneName string `json:"milestone_name"`

	// User stories only.
	Epics       []EpicInfo `json:"epics"`
	TotalPoints *float64   `json:"total_points"`

	// Tasks only.
	UserStory     *int           `json:"user_story"`
	UserStoryInfo *UserStoryInfo `json:"user_story_extra_info"`

	// Issues only: raw foreign keys. Denormalized names, when the API
	// includes them, stay reachable through Raw (priority_extra_info etc).
	Priority *int `json:"priority"`
	Severity *int `json:"severity"`
	Type     *int `json:"type"`

	Tags TagList `json:"tags"`

	IsBlocked   bool   `json:"is_blocked"`
	IsClosed    bool   `json:"is_closed"`
	BlockedNote string `json:"blocked_note"`

	CreatedDate  string `json:"created_date"`
	ModifiedDate string `json:"modified_date"`
	FinishedDate string `json:"finished_date"`
	DueDate      string `json:"due_date"`

	TotalComments    *int  `json:"total_comments"`
	TotalAttachments *int  `json:"total_attachments"`
	Watchers         []int `json:"watchers"`

	// Raw is the original JSON object, decoded generically. Populated by
	// UnmarshalJSON, never serialized back.
	Raw map[string]any `json:"-"`
}

// recordAlias avoids UnmarshalJSON recursion.
type recordAlias Record

// UnmarshalJSON decodes the typed fields and additionally keeps the raw
// object for dotted-path field resolution.
func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record(alias)
	r.Raw = raw
	return nil
}

// TagList decodes Taiga's tag representation. The API returns tags as
// [name, color] pairs (color may be null); older payloads use plain strings.
type TagList []string

// UnmarshalJSON accepts both ["tag", ...] and [["tag", "#color"], ...].
func (t *TagList) UnmarshalJSON(data []byte) error {
	var pairs []json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		// tags may be null
		var null any
		if err := json.Unmarshal(data, &null); err == nil && null == nil {
			*t = nil
			return nil
		}
		return err
	}

	tags := make([]string, 0, len(pairs))
	for _, raw := range pairs {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			tags = append(tags, name)
			continue
		}
		var pair []any
		if err := json.Unmarshal(raw, &pair); err != nil {
			return err
		}
		if len(pair) > 0 {
			if name, ok := pair[0].(string); ok {
				tags = append(tags, name)
			}
		}
	}
	*t = tags
	return nil
}

// ErrorResponse is the standard Taiga API error document.
type ErrorResponse struct {
	Type   string `json:"_error_type"`
	Detail string `json:"_error_message"`
}
