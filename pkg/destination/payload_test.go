package destination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/errors"
)

func TestBuildCandidatePayload(t *testing.T) {
	rec := &canonical.Record{
		ExternalID: "gh_candidate_42",
		Kind:       canonical.KindCandidate,
		Attributes: map[string]interface{}{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"emails":     []interface{}{"ada@example.test"},
			"phones":     []interface{}{map[string]interface{}{"value": "+4670"}},
			"tags":       []interface{}{"engineering"},
		},
	}

	p, err := Build(rec, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, ResCandidates, p.Data.Type)
	assert.Equal(t, "Ada", p.Data.Attributes["first-name"])
	assert.Equal(t, "gh_candidate_42", p.Data.Attributes["external-id"])
	assert.Equal(t, "ada@example.test", p.Data.Attributes["email"])
	assert.Equal(t, "+4670", p.Data.Attributes["phone"])
	assert.Empty(t, p.Data.Relationships)
}

func TestBuildPayloadDropsNilAttributes(t *testing.T) {
	rec := &canonical.Record{
		ExternalID: "gh_job_7",
		Kind:       canonical.KindJob,
		Attributes: map[string]interface{}{
			"title":  "Backend Engineer",
			"status": nil,
		},
	}
	p, err := Build(rec, nil, nil)
	require.NoError(t, err)

	_, hasStatus := p.Data.Attributes["status"]
	assert.False(t, hasStatus)
	assert.Equal(t, "Backend Engineer", p.Data.Attributes["title"])
}

func TestBuildApplicationRelationships(t *testing.T) {
	rec := &canonical.Record{
		ExternalID: "gh_application_1001",
		Kind:       canonical.KindApplication,
		Attributes: map[string]interface{}{"applied_at": "2024-02-02T00:00:00Z"},
		References: map[string]string{
			canonical.RefCandidate: "gh_candidate_42",
			canonical.RefJob:       "gh_job_7",
		},
	}
	p, err := Build(rec, Resolved{
		canonical.RefCandidate: "9001",
		canonical.RefJob:       "77",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, ResJobApplications, p.Data.Type)
	assert.Equal(t, RelationshipData{Type: ResCandidates, ID: "9001"}, p.Data.Relationships["candidate"].Data)
	assert.Equal(t, RelationshipData{Type: ResJobs, ID: "77"}, p.Data.Relationships["job"].Data)
}

func TestBuildInterviewComment(t *testing.T) {
	rec := &canonical.Record{
		ExternalID: "gh_interview_300",
		Kind:       canonical.KindInterview,
		Attributes: map[string]interface{}{
			"interview_name": "Onsite",
			"status":         "scheduled",
			"start":          "2024-04-01T10:00:00Z",
			"video_url":      "https://vc.example.test/room",
			"interviewers": []interface{}{
				map[string]interface{}{"name": "Kim", "response_status": "accepted"},
				map[string]interface{}{"name": "Lee"},
			},
		},
		References: map[string]string{canonical.RefApplication: "gh_application_1001"},
	}
	p, err := Build(rec, Resolved{canonical.RefApplication: "555"}, nil)
	require.NoError(t, err)

	assert.Equal(t, ResComments, p.Data.Type)
	body, _ := p.Data.Attributes["body"].(string)
	assert.Contains(t, body, "Interview: Onsite")
	assert.Contains(t, body, "Status: scheduled")
	assert.Contains(t, body, "VC: https://vc.example.test/room")
	assert.Contains(t, body, "Interviewers: Kim (accepted), Lee")
	assert.Equal(t, "2024-04-01T10:00:00Z", p.Data.Attributes["created-at"])
	assert.Equal(t, RelationshipData{Type: ResJobApplications, ID: "555"}, p.Data.Relationships["job-application"].Data)
}

func TestBuildOfferComment(t *testing.T) {
	rec := &canonical.Record{
		ExternalID: "gh_offer_400",
		Kind:       canonical.KindOffer,
		Attributes: map[string]interface{}{
			"status":        "accepted",
			"sent_at":       "2024-05-01T00:00:00Z",
			"custom_fields": map[string]interface{}{"salary": "65000"},
			"proposal_url":  "https://docs.example.test/offer",
		},
		References: map[string]string{canonical.RefApplication: "gh_application_1001"},
	}
	p, err := Build(rec, Resolved{canonical.RefApplication: "555"}, nil)
	require.NoError(t, err)

	body, _ := p.Data.Attributes["body"].(string)
	assert.Contains(t, body, "Offer status: accepted")
	assert.Contains(t, body, "Salary: 65000")
	assert.Contains(t, body, "Proposal: https://docs.example.test/offer")
}

func TestBuildNoteVisibilityFilter(t *testing.T) {
	rec := &canonical.Record{
		ExternalID: "gh_note_900",
		Kind:       canonical.KindNote,
		Attributes: map[string]interface{}{
			"body":       "hello",
			"visibility": "internal-only", // not a destination visibility
			"author":     "Recruiter",
		},
		References: map[string]string{canonical.RefCandidate: "gh_candidate_42"},
	}
	p, err := Build(rec, Resolved{canonical.RefCandidate: "9001"}, nil)
	require.NoError(t, err)

	_, hasVis := p.Data.Attributes["visibility"]
	assert.False(t, hasVis)
	assert.Equal(t, "Recruiter", p.Data.Attributes["author-name"])
}

func TestBuildCustomFieldValue(t *testing.T) {
	fields := &FieldMap{byOwner: map[string]map[string]string{
		"candidates": {"location": "cf-100"},
	}}
	rec := &canonical.Record{
		ExternalID: "gh_custom_field_value_candidate-42-location",
		Kind:       canonical.KindCustomFieldValue,
		Attributes: map[string]interface{}{
			"field":      "location",
			"value":      "Stockholm",
			"owner_kind": "candidate",
		},
		References: map[string]string{canonical.RefOwner: "gh_candidate_42"},
	}

	p, err := Build(rec, Resolved{canonical.RefOwner: "9001"}, fields)
	require.NoError(t, err)

	assert.Equal(t, ResCustomFieldValues, p.Data.Type)
	assert.Equal(t, "Stockholm", p.Data.Attributes["value"])
	assert.Equal(t, RelationshipData{Type: ResCandidates, ID: "9001"}, p.Data.Relationships["owner"].Data)
	assert.Equal(t, RelationshipData{Type: ResCustomFields, ID: "cf-100"}, p.Data.Relationships["custom-field"].Data)
}

func TestBuildCustomFieldValueUnmapped(t *testing.T) {
	fields := &FieldMap{byOwner: map[string]map[string]string{}}
	rec := &canonical.Record{
		ExternalID: "gh_custom_field_value_candidate-42-quirk",
		Kind:       canonical.KindCustomFieldValue,
		Attributes: map[string]interface{}{
			"field":      "quirk",
			"value":      "x",
			"owner_kind": "candidate",
		},
		References: map[string]string{canonical.RefOwner: "gh_candidate_42"},
	}

	_, err := Build(rec, Resolved{canonical.RefOwner: "9001"}, fields)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCFUnmapped))
}

func TestResourceMapping(t *testing.T) {
	assert.Equal(t, ResCandidates, Resource(canonical.KindCandidate))
	assert.Equal(t, ResJobApplications, Resource(canonical.KindApplication))
	assert.Equal(t, ResComments, Resource(canonical.KindInterview))
	assert.Equal(t, ResComments, Resource(canonical.KindNote))
	assert.Equal(t, ResComments, Resource(canonical.KindOffer))
	assert.Equal(t, ResUsers, Resource(canonical.KindUser))
}
