package normalize

import (
	"fmt"
	"strings"

	"github.com/recruitops/atsync/pkg/canonical"
)

func (n *Normalizer) users(g *canonical.ExportGraph, raws []map[string]interface{}) {
	for _, u := range raws {
		if n.dropMissingID(CollUsers, u) {
			continue
		}
		email := digString(u, "primary_email_address")
		if email == "" {
			if list, ok := u["emails"].([]interface{}); ok && len(list) > 0 {
				email, _ = list[0].(string)
			}
		}
		g.Add(&canonical.Record{
			ExternalID: n.extID(canonical.KindUser, u),
			Kind:       canonical.KindUser,
			Attributes: map[string]interface{}{
				"name":       u["name"],
				"email":      email,
				"site_admin": u["site_admin"],
				"disabled":   u["disabled"],
			},
		})
	}
}

func (n *Normalizer) candidates(g *canonical.ExportGraph, raws []map[string]interface{}) {
	for _, c := range raws {
		if n.dropMissingID(CollCandidates, c) {
			continue
		}
		extID := n.extID(canonical.KindCandidate, c)
		g.Add(&canonical.Record{
			ExternalID: extID,
			Kind:       canonical.KindCandidate,
			Attributes: map[string]interface{}{
				"first_name":  c["first_name"],
				"last_name":   c["last_name"],
				"emails":      c["email_addresses"],
				"phones":      c["phone_numbers"],
				"tags":        c["tags"],
				"attachments": attachments(c["attachments"]),
			},
		})

		n.customFieldValues(g, extID, canonical.KindCandidate, asMap(c["custom_fields"]))

		// Activity feed notes become standalone note records on the
		// candidate.
		for _, note := range asList(dig(c, "activity_feed", "notes")) {
			if note["id"] == nil {
				continue
			}
			visibility := note["visibility"]
			if visibility == nil {
				visibility = note["visiblity"] // source API typo, both occur
			}
			g.Add(&canonical.Record{
				ExternalID: n.extID(canonical.KindNote, note),
				Kind:       canonical.KindNote,
				Attributes: map[string]interface{}{
					"author":     digString(note, "user", "name"),
					"body":       note["body"],
					"created_at": note["created_at"],
					"visibility": visibility,
				},
				References: map[string]string{
					canonical.RefCandidate: extID,
				},
			})
		}
	}
}

func (n *Normalizer) jobs(g *canonical.ExportGraph, raws []map[string]interface{}) {
	for _, j := range raws {
		if n.dropMissingID(CollJobs, j) {
			continue
		}
		post := map[string]interface{}{}
		if posts := asList(j["job_posts"]); len(posts) > 0 {
			post = posts[0]
		}
		location := digString(j, "custom_fields", "location")
		if location == "" {
			location = digString(post, "location", "name")
		}

		extID := n.extID(canonical.KindJob, j)
		g.Add(&canonical.Record{
			ExternalID: extID,
			Kind:       canonical.KindJob,
			Attributes: map[string]interface{}{
				"title":            j["name"],
				"status":           j["status"],
				"location":         location,
				"work_model":       dig(j, "custom_fields", "work_model"),
				"description_html": post["content"],
				"opened_at":        j["opened_at"],
				"closed_at":        j["closed_at"],
				"hiring_team": map[string]interface{}{
					"hiring_managers": teamNames(dig(j, "hiring_team", "hiring_managers")),
					"recruiters":      teamNames(dig(j, "hiring_team", "recruiters")),
				},
			},
		})
	}
}

// applications prefers the dedicated applications collection and falls
// back to the copies embedded in candidate records when it is absent.
func (n *Normalizer) applications(g *canonical.ExportGraph, raws, candidates []map[string]interface{}) {
	apps := raws
	if len(apps) == 0 {
		for _, c := range candidates {
			for _, a := range asList(c["applications"]) {
				if a["candidate_id"] == nil {
					a["candidate_id"] = c["id"]
				}
				apps = append(apps, a)
			}
		}
	}

	for _, a := range apps {
		if n.dropMissingID(CollApps, a) {
			continue
		}
		refs := map[string]string{
			canonical.RefCandidate: n.refID(canonical.KindCandidate, a["candidate_id"]),
		}
		if jobs := asList(a["jobs"]); len(jobs) > 0 && jobs[0]["id"] != nil {
			refs[canonical.RefJob] = n.refID(canonical.KindJob, jobs[0]["id"])
		}

		extID := n.extID(canonical.KindApplication, a)
		g.Add(&canonical.Record{
			ExternalID: extID,
			Kind:       canonical.KindApplication,
			Attributes: map[string]interface{}{
				"applied_at":  a["applied_at"],
				"status":      a["status"],
				"source":      digString(a, "source", "public_name"),
				"attachments": attachments(a["attachments"]),
			},
			References: refs,
		})

		n.customFieldValues(g, extID, canonical.KindApplication, asMap(a["custom_fields"]))
	}
}

func (n *Normalizer) interviews(g *canonical.ExportGraph, raws []map[string]interface{}) {
	for _, iv := range raws {
		if n.dropMissingID(CollInterviews, iv) {
			continue
		}
		var interviewers []map[string]interface{}
		for _, it := range asList(iv["interviewers"]) {
			interviewers = append(interviewers, map[string]interface{}{
				"name":            it["name"],
				"email":           it["email"],
				"response_status": it["response_status"],
			})
		}
		g.Add(&canonical.Record{
			ExternalID: n.extID(canonical.KindInterview, iv),
			Kind:       canonical.KindInterview,
			Attributes: map[string]interface{}{
				"interview_name": digString(iv, "interview", "name"),
				"status":         iv["status"],
				"start":          dig(iv, "start", "date_time"),
				"end":            dig(iv, "end", "date_time"),
				"video_url":      iv["video_conferencing_url"],
				"organizer":      digString(iv, "organizer", "name"),
				"interviewers":   interviewers,
			},
			References: map[string]string{
				canonical.RefApplication: n.refID(canonical.KindApplication, iv["application_id"]),
			},
		})
	}
}

// scorecards flatten into private notes on the application: a header line
// plus one "- question: answer" line per question.
func (n *Normalizer) scorecards(g *canonical.ExportGraph, raws []map[string]interface{}) {
	for _, sc := range raws {
		if n.dropMissingID(CollScorecards, sc) {
			continue
		}
		lines := []string{
			fmt.Sprintf("Scorecard: %s (overall: %s)", orNA(sc["interview"]), orNA(sc["overall_recommendation"])),
		}
		for _, q := range asList(sc["questions"]) {
			lines = append(lines, fmt.Sprintf("- %s: %s", orNA(q["question"]), orNA(q["answer"])))
		}

		author := digString(sc, "submitted_by", "name")
		if author == "" {
			author = digString(sc, "interviewer", "name")
		}
		createdAt := sc["submitted_at"]
		if createdAt == nil {
			createdAt = sc["created_at"]
		}

		refs := map[string]string{
			canonical.RefCandidate:   n.refID(canonical.KindCandidate, sc["candidate_id"]),
			canonical.RefApplication: n.refID(canonical.KindApplication, sc["application_id"]),
		}

		// Scorecard and activity-feed note IDs live in separate source
		// sequences, so the native part is namespaced to keep note
		// external IDs collision-free.
		nativeID := "scorecard-" + canonical.FormatNativeID(sc["id"])
		g.Add(&canonical.Record{
			ExternalID: canonical.ExternalID(n.source, canonical.KindNote, nativeID),
			Kind:       canonical.KindNote,
			Attributes: map[string]interface{}{
				"author":     author,
				"body":       strings.Join(lines, "\n"),
				"created_at": createdAt,
				"visibility": "private",
			},
			References: refs,
		})
	}
}

func (n *Normalizer) offers(g *canonical.ExportGraph, raws []map[string]interface{}) {
	for _, off := range raws {
		if n.dropMissingID(CollOffers, off) {
			continue
		}
		proposalURL := digString(off, "keyed_custom_fields", "proposal_doc_link", "value")
		if proposalURL == "" {
			proposalURL = digString(off, "custom_fields", "proposal_doc_link")
		}

		refs := map[string]string{
			canonical.RefApplication: n.refID(canonical.KindApplication, off["application_id"]),
		}
		if off["job_id"] != nil {
			refs[canonical.RefJob] = n.refID(canonical.KindJob, off["job_id"])
		}
		if off["candidate_id"] != nil {
			refs[canonical.RefCandidate] = n.refID(canonical.KindCandidate, off["candidate_id"])
		}

		g.Add(&canonical.Record{
			ExternalID: n.extID(canonical.KindOffer, off),
			Kind:       canonical.KindOffer,
			Attributes: map[string]interface{}{
				"status":        off["status"],
				"sent_at":       off["sent_at"],
				"resolved_at":   off["resolved_at"],
				"starts_at":     off["starts_at"],
				"custom_fields": asMap(off["custom_fields"]),
				"proposal_url":  proposalURL,
			},
			References: refs,
		})
	}
}

// customFieldValues emits one value record per non-empty custom field,
// keyed by owner kind, owner native ID and field name so the external ID
// stays unique across owners. Field order is sorted for deterministic
// output.
func (n *Normalizer) customFieldValues(g *canonical.ExportGraph, ownerExtID string, ownerKind canonical.Kind, fields map[string]interface{}) {
	ownerNative := ownerExtID[strings.LastIndex(ownerExtID, "_")+1:]
	for _, name := range sortedKeys(fields) {
		value := fields[name]
		if emptyValue(value) {
			continue
		}
		nativeID := fmt.Sprintf("%s-%s-%s", ownerKind, ownerNative, name)
		g.Add(&canonical.Record{
			ExternalID: canonical.ExternalID(n.source, canonical.KindCustomFieldValue, nativeID),
			Kind:       canonical.KindCustomFieldValue,
			Attributes: map[string]interface{}{
				"field":      name,
				"value":      value,
				"owner_kind": string(ownerKind),
			},
			References: map[string]string{
				canonical.RefOwner: ownerExtID,
			},
		})
	}
}

func attachments(v interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, att := range asList(v) {
		out = append(out, map[string]interface{}{
			"filename":   att["filename"],
			"type":       att["type"],
			"source_url": att["url"],
			"created_at": att["created_at"],
		})
	}
	return out
}

func teamNames(v interface{}) []string {
	var names []string
	for _, member := range asList(v) {
		if name, ok := member["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}
