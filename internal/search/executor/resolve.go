package executor

import (
	"strings"

	"github.com/petr-muller/taiga-query/internal/taiga"
)

// resolvers maps canonical field names to functions extracting a single
// comparable value from a record. The table is built once at package load;
// relational fields prefer the human-readable denormalized value (name,
// slug, username) and fall back through the raw foreign key, so queries
// work regardless of which representation the API populated.
var resolvers = map[string]func(*taiga.Record) any{
	"ref":         func(r *taiga.Record) any { return r.Ref },
	"subject":     func(r *taiga.Record) any { return r.Subject },
	"description": func(r *taiga.Record) any { return r.Description },

	"status": func(r *taiga.Record) any {
		if r.StatusInfo != nil && r.StatusInfo.Name != "" {
			return r.StatusInfo.Name
		}
		if r.StatusID != 0 {
			return r.StatusID
		}
		return nil
	},

	"assignee": func(r *taiga.Record) any { return resolveUser(r.AssignedToInfo, r.AssignedTo) },
	"owner":    func(r *taiga.Record) any { return resolveUser(r.OwnerInfo, r.Owner) },

	"milestone": func(r *taiga.Record) any {
		if r.MilestoneName != "" {
			return r.MilestoneName
		}
		if r.MilestoneSlug != "" {
			return r.MilestoneSlug
		}
		if r.Milestone != nil {
			return *r.Milestone
		}
		return nil
	},

	"epic": func(r *taiga.Record) any {
		if len(r.Epics) == 0 {
			return nil
		}
		subjects := make([]string, 0, len(r.Epics))
		for _, epic := range r.Epics {
			subjects = append(subjects, epic.Subject)
		}
		return subjects
	},

	"user_story": func(r *taiga.Record) any {
		if r.UserStoryInfo != nil && r.UserStoryInfo.Subject != "" {
			return r.UserStoryInfo.Subject
		}
		if r.UserStory != nil {
			return *r.UserStory
		}
		return nil
	},

	"points": func(r *taiga.Record) any {
		if r.TotalPoints == nil {
			return nil
		}
		return *r.TotalPoints
	},

	"priority": func(r *taiga.Record) any { return resolveNamedID(r, "priority_extra_info", r.Priority) },
	"severity": func(r *taiga.Record) any { return resolveNamedID(r, "severity_extra_info", r.Severity) },
	"type":     func(r *taiga.Record) any { return resolveNamedID(r, "type_extra_info", r.Type) },

	"tags": func(r *taiga.Record) any {
		if len(r.Tags) == 0 {
			return nil
		}
		return []string(r.Tags)
	},

	"blocked": func(r *taiga.Record) any { return r.IsBlocked },
	"closed":  func(r *taiga.Record) any { return r.IsClosed },

	"created":  func(r *taiga.Record) any { return emptyAsNil(r.CreatedDate) },
	"modified": func(r *taiga.Record) any { return emptyAsNil(r.ModifiedDate) },
	"finished": func(r *taiga.Record) any { return emptyAsNil(r.FinishedDate) },
	"due_date": func(r *taiga.Record) any { return emptyAsNil(r.DueDate) },

	"attachments": func(r *taiga.Record) any {
		if r.TotalAttachments != nil {
			return *r.TotalAttachments
		}
		if list, ok := r.Raw["attachments"].([]any); ok {
			return len(list)
		}
		return 0
	},

	"comments": func(r *taiga.Record) any {
		if r.TotalComments != nil {
			return *r.TotalComments
		}
		return 0
	},

	"watchers": func(r *taiga.Record) any { return len(r.Watchers) },
}

// Resolve normalizes one logical field of a record into a single
// comparable value. Fields outside the resolver table fall back to a
// dotted-path traversal of the raw API object; a missing path resolves
// to nil.
func Resolve(record *taiga.Record, field string) any {
	if resolver, ok := resolvers[field]; ok {
		return resolver(record)
	}
	return dottedPath(record.Raw, field)
}

func resolveUser(info *taiga.UserInfo, id *int) any {
	if info != nil {
		if info.Username != "" {
			return info.Username
		}
		if info.FullName != "" {
			return info.FullName
		}
	}
	if id != nil {
		return *id
	}
	return nil
}

func resolveID(id *int) any {
	if id == nil {
		return nil
	}
	return *id
}

// resolveNamedID prefers the denormalized name the API attaches to the raw
// object (priority_extra_info and friends) over the numeric foreign key.
func resolveNamedID(r *taiga.Record, infoKey string, id *int) any {
	if info, ok := r.Raw[infoKey].(map[string]any); ok {
		if name, ok := info["name"].(string); ok && name != "" {
			return name
		}
	}
	return resolveID(id)
}

func emptyAsNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// dottedPath walks a.b.c through nested JSON objects, returning nil when
// any segment is missing or not an object.
func dottedPath(raw map[string]any, path string) any {
	var current any = raw
	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = object[segment]
		if !ok {
			return nil
		}
	}
	return current
}
