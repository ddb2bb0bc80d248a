// Package domain holds the lab record documents the traceability engine
// reads. Every entity lives in its own collection and references others
// only through ref.Ref fields.
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Alijeyrad/labtrace_backend/pkg/ref"
)

// Base carries the fields shared by every collection.
type Base struct {
	ID        primitive.ObjectID `json:"id"`
	IsActive  *bool              `json:"is_active,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Active treats a missing flag as active.
func (b Base) Active() bool {
	return b.IsActive == nil || *b.IsActive
}

func (b Base) Ref() ref.Ref {
	return ref.Native(b.ID)
}

// Touch assigns an id and timestamps to a new document.
func (b *Base) Touch(now time.Time) {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectIDFromTimestamp(now)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Job is the intake record (a.k.a. sample information).
type Job struct {
	Base
	JobID        string     `json:"job_id"`
	ClientID     ref.Ref    `json:"client_id"`
	ProjectName  string     `json:"project_name"`
	ReceivedBy   string     `json:"received_by"`
	ReceivedDate *time.Time `json:"received_date,omitempty"`
	EndUser      string     `json:"end_user"`
	Remarks      string     `json:"remarks,omitempty"`
}

// Keys returns both identities a foreign key may use for this job.
func (j Job) Keys() []ref.Ref {
	return []ref.Ref{ref.Native(j.ID), ref.String(j.JobID)}
}

type Client struct {
	Base
	ClientName    string `json:"client_name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
}

type TestMethod struct {
	Base
	TestName string `json:"test_name"`
	Standard string `json:"standard,omitempty"`
}

// SampleLot is one material item registered under a job. JobID is stored
// either as the job's native id or as its human job_id.
type SampleLot struct {
	Base
	JobID          ref.Ref   `json:"job_id"`
	ItemNo         string    `json:"item_no"`
	Description    string    `json:"description,omitempty"`
	TestMethodOIDs []ref.Ref `json:"test_method_oids"`
}

// Specimen has no parent reference; it is reachable only from
// preparation request items.
type Specimen struct {
	Base
	SpecimenID string `json:"specimen_id"`
}

type PreparationRequest struct {
	Base
	RequestNo    string            `json:"request_no"`
	Remarks      string            `json:"remarks,omitempty"`
	RequestItems []PreparationItem `json:"request_items"`
}

// PreparationItem ties one lot and test method to a set of specimens.
// RequestID references the sample lot being prepared.
type PreparationItem struct {
	RequestID     ref.Ref   `json:"request_id"`
	TestMethodOID ref.Ref   `json:"test_method_oid"`
	SpecimenOIDs  []ref.Ref `json:"specimen_oids"`
}

type Certificate struct {
	Base
	CertificateNo string     `json:"certificate_no"`
	RequestID     ref.Ref    `json:"request_id"`
	PreparationID ref.Ref    `json:"preparationId"`
	IssueDate     *time.Time `json:"issue_date,omitempty"`
	TestingDate   *time.Time `json:"testing_date,omitempty"`
}

// Preparation returns whichever of the two legacy reference fields is set.
func (c Certificate) Preparation() ref.Ref {
	if !c.RequestID.IsZero() {
		return c.RequestID
	}
	return c.PreparationID
}

type DiscardRecord struct {
	Base
	SampleID    ref.Ref    `json:"sampleId"`
	Reason      string     `json:"reason,omitempty"`
	DiscardDate *time.Time `json:"discard_date,omitempty"`
}
