package destination

import (
	"fmt"
	"strings"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/errors"
)

// Payload is a JSON:API write envelope.
type Payload struct {
	Data PayloadData `json:"data"`
}

// PayloadData is the typed body of a write.
type PayloadData struct {
	Type          string                  `json:"type"`
	Attributes    map[string]interface{}  `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship links a resource to one related record.
type Relationship struct {
	Data RelationshipData `json:"data"`
}

// RelationshipData identifies the related record.
type RelationshipData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Resolved maps canonical reference roles to destination IDs, as produced
// by the resolver for one record.
type Resolved map[string]string

// Build assembles the JSON:API payload for a canonical record. resolved
// must already contain the destination IDs for the record's references;
// missing required references are the engine's problem, not Build's.
// Attribute keys are kebab-case per the destination's JSON:API dialect.
func Build(rec *canonical.Record, resolved Resolved, fields *FieldMap) (*Payload, error) {
	switch rec.Kind {
	case canonical.KindCandidate:
		return buildCandidate(rec), nil
	case canonical.KindJob:
		return buildJob(rec), nil
	case canonical.KindApplication:
		return buildApplication(rec, resolved), nil
	case canonical.KindNote:
		return buildNote(rec, resolved), nil
	case canonical.KindInterview:
		return buildInterviewComment(rec, resolved), nil
	case canonical.KindOffer:
		return buildOfferComment(rec, resolved), nil
	case canonical.KindCustomFieldValue:
		return buildCustomFieldValue(rec, resolved, fields)
	case canonical.KindUser:
		return buildUser(rec), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "no payload builder for kind %s", rec.Kind)
	}
}

func buildCandidate(rec *canonical.Record) *Payload {
	attrs := map[string]interface{}{
		"first-name":  rec.Attr("first_name"),
		"last-name":   rec.Attr("last_name"),
		"external-id": rec.ExternalID,
		"tags":        rec.Attr("tags"),
	}
	if email := firstContact(rec.Attr("emails"), "email", "value"); email != "" {
		attrs["email"] = email
	}
	if phone := firstContact(rec.Attr("phones"), "phone", "value"); phone != "" {
		attrs["phone"] = phone
	}
	return &Payload{Data: PayloadData{
		Type:       ResCandidates,
		Attributes: clean(attrs),
	}}
}

func buildJob(rec *canonical.Record) *Payload {
	return &Payload{Data: PayloadData{
		Type: ResJobs,
		Attributes: clean(map[string]interface{}{
			"title":            rec.Attr("title"),
			"status":           rec.Attr("status"),
			"external-id":      rec.ExternalID,
			"location":         rec.Attr("location"),
			"work-model":       rec.Attr("work_model"),
			"description-html": rec.Attr("description_html"),
			"opened-at":        rec.Attr("opened_at"),
			"closed-at":        rec.Attr("closed_at"),
		}),
	}}
}

func buildApplication(rec *canonical.Record, resolved Resolved) *Payload {
	rels := map[string]Relationship{}
	if id := resolved[canonical.RefCandidate]; id != "" {
		rels["candidate"] = relation(ResCandidates, id)
	}
	if id := resolved[canonical.RefJob]; id != "" {
		rels["job"] = relation(ResJobs, id)
	}
	return &Payload{Data: PayloadData{
		Type: ResJobApplications,
		Attributes: clean(map[string]interface{}{
			"applied-at":  rec.Attr("applied_at"),
			"source":      rec.Attr("source"),
			"external-id": rec.ExternalID,
		}),
		Relationships: rels,
	}}
}

func buildNote(rec *canonical.Record, resolved Resolved) *Payload {
	attrs := map[string]interface{}{
		"body":       rec.Attr("body"),
		"created-at": rec.Attr("created_at"),
	}
	// Only the two visibilities the destination accepts pass through.
	if vis := rec.StringAttr("visibility"); vis == "private" || vis == "public" {
		attrs["visibility"] = vis
	}
	if author := rec.StringAttr("author"); author != "" {
		attrs["author-name"] = author
	}

	rels := map[string]Relationship{}
	if id := resolved[canonical.RefCandidate]; id != "" {
		rels["candidate"] = relation(ResCandidates, id)
	}
	if id := resolved[canonical.RefApplication]; id != "" {
		rels["job-application"] = relation(ResJobApplications, id)
	}
	return &Payload{Data: PayloadData{
		Type:          ResComments,
		Attributes:    clean(attrs),
		Relationships: rels,
	}}
}

// buildInterviewComment renders an interview as a human-readable comment
// on the job application, since the destination has no interview resource.
func buildInterviewComment(rec *canonical.Record, resolved Resolved) *Payload {
	lines := []string{
		"Interview: " + orNA(rec.Attr("interview_name")),
		"Status: " + orNA(rec.Attr("status")),
		"Start: " + orNA(rec.Attr("start")),
		"End: " + orNA(rec.Attr("end")),
		"Organizer: " + orNA(rec.Attr("organizer")),
	}
	if video := rec.StringAttr("video_url"); video != "" {
		lines = append(lines, "VC: "+video)
	}
	if names := interviewerNames(rec.Attr("interviewers")); len(names) > 0 {
		lines = append(lines, "Interviewers: "+strings.Join(names, ", "))
	}

	return commentOnApplication(strings.Join(lines, "\n"), rec.Attr("start"), resolved)
}

// buildOfferComment renders an offer as a summary comment on the job
// application.
func buildOfferComment(rec *canonical.Record, resolved Resolved) *Payload {
	lines := []string{
		"Offer status: " + orNA(rec.Attr("status")),
		"Sent at: " + orNA(rec.Attr("sent_at")),
		"Resolved at: " + orNA(rec.Attr("resolved_at")),
		"Starts at: " + orNA(rec.Attr("starts_at")),
	}
	if cf, ok := rec.Attr("custom_fields").(map[string]interface{}); ok {
		if salary := cf["salary"]; salary != nil && salary != "" {
			lines = append(lines, fmt.Sprintf("Salary: %v", salary))
		}
	}
	if url := rec.StringAttr("proposal_url"); url != "" {
		lines = append(lines, "Proposal: "+url)
	}

	return commentOnApplication(strings.Join(lines, "\n"), rec.Attr("sent_at"), resolved)
}

func commentOnApplication(body string, createdAt interface{}, resolved Resolved) *Payload {
	rels := map[string]Relationship{}
	if id := resolved[canonical.RefApplication]; id != "" {
		rels["job-application"] = relation(ResJobApplications, id)
	}
	return &Payload{Data: PayloadData{
		Type: ResComments,
		Attributes: clean(map[string]interface{}{
			"body":       body,
			"created-at": createdAt,
		}),
		Relationships: rels,
	}}
}

func buildCustomFieldValue(rec *canonical.Record, resolved Resolved, fields *FieldMap) (*Payload, error) {
	ownerKind := canonical.Kind(rec.StringAttr("owner_kind"))
	ownerRes := Resource(ownerKind)
	fieldName := rec.StringAttr("field")

	fieldID := fields.ID(ownerKind, fieldName)
	if fieldID == "" {
		return nil, errors.New(errors.ErrorTypeCFUnmapped, "custom field has no destination mapping").
			WithDetail("field", fieldName).
			WithDetail("owner_kind", string(ownerKind))
	}

	return &Payload{Data: PayloadData{
		Type: ResCustomFieldValues,
		Attributes: map[string]interface{}{
			"value": rec.Attr("value"),
		},
		Relationships: map[string]Relationship{
			"owner":        relation(ownerRes, resolved[canonical.RefOwner]),
			"custom-field": relation(ResCustomFields, fieldID),
		},
	}}, nil
}

func buildUser(rec *canonical.Record) *Payload {
	return &Payload{Data: PayloadData{
		Type: ResUsers,
		Attributes: clean(map[string]interface{}{
			"name":        rec.Attr("name"),
			"email":       rec.Attr("email"),
			"external-id": rec.ExternalID,
		}),
	}}
}

func relation(resourceType, id string) Relationship {
	return Relationship{Data: RelationshipData{Type: resourceType, ID: id}}
}

// clean drops nil attributes so the destination never sees explicit nulls.
func clean(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// firstContact pulls the first usable string out of a contact list whose
// entries may be strings or objects keyed by any of keys.
func firstContact(v interface{}, keys ...string) string {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return ""
	}
	switch first := list[0].(type) {
	case string:
		return first
	case map[string]interface{}:
		for _, k := range keys {
			if s, ok := first[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func interviewerNames(v interface{}) []string {
	list, ok := v.([]map[string]interface{})
	if !ok {
		// After a graph file round trip the list decodes as []interface{}.
		raw, ok := v.([]interface{})
		if !ok {
			return nil
		}
		for _, it := range raw {
			if m, ok := it.(map[string]interface{}); ok {
				list = append(list, m)
			}
		}
	}

	var names []string
	for _, it := range list {
		name, _ := it["name"].(string)
		if name == "" {
			continue
		}
		if status, _ := it["response_status"].(string); status != "" {
			name = fmt.Sprintf("%s (%s)", name, status)
		}
		names = append(names, name)
	}
	return names
}

func orNA(v interface{}) string {
	if v == nil {
		return "N/A"
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return fmt.Sprintf("%v", v)
}
