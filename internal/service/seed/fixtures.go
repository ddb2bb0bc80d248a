package seed

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML layout accepted by `system seed`. References are
// written as strings: 24 hex characters become native ids, anything else
// is stored as a plain string reference.
type Fixtures struct {
	Clients             []ClientFixture      `yaml:"clients"`
	TestMethods         []TestMethodFixture  `yaml:"test_methods"`
	Jobs                []JobFixture         `yaml:"jobs"`
	SampleLots          []LotFixture         `yaml:"sample_lots"`
	Specimens           []SpecimenFixture    `yaml:"specimens"`
	PreparationRequests []PreparationFixture `yaml:"preparation_requests"`
	Certificates        []CertificateFixture `yaml:"certificates"`
	DiscardRecords      []DiscardFixture     `yaml:"discard_records"`
}

type Meta struct {
	ID        string     `yaml:"id"`
	IsActive  *bool      `yaml:"is_active"`
	CreatedAt *time.Time `yaml:"created_at"`
}

type ClientFixture struct {
	Meta          `yaml:",inline"`
	ClientName    string `yaml:"client_name"`
	ContactPerson string `yaml:"contact_person"`
	Email         string `yaml:"email"`
	Phone         string `yaml:"phone"`
	Address       string `yaml:"address"`
}

type TestMethodFixture struct {
	Meta     `yaml:",inline"`
	TestName string `yaml:"test_name"`
	Standard string `yaml:"standard"`
}

type JobFixture struct {
	Meta         `yaml:",inline"`
	JobID        string     `yaml:"job_id"`
	ClientID     string     `yaml:"client_id"`
	ProjectName  string     `yaml:"project_name"`
	ReceivedBy   string     `yaml:"received_by"`
	ReceivedDate *time.Time `yaml:"received_date"`
	EndUser      string     `yaml:"end_user"`
	Remarks      string     `yaml:"remarks"`
}

type LotFixture struct {
	Meta           `yaml:",inline"`
	JobID          string   `yaml:"job_id"`
	ItemNo         string   `yaml:"item_no"`
	Description    string   `yaml:"description"`
	TestMethodOIDs []string `yaml:"test_method_oids"`
}

type SpecimenFixture struct {
	Meta       `yaml:",inline"`
	SpecimenID string `yaml:"specimen_id"`
}

type PreparationFixture struct {
	Meta         `yaml:",inline"`
	RequestNo    string                   `yaml:"request_no"`
	Remarks      string                   `yaml:"remarks"`
	RequestItems []PreparationItemFixture `yaml:"request_items"`
}

type PreparationItemFixture struct {
	RequestID     string   `yaml:"request_id"`
	TestMethodOID string   `yaml:"test_method_oid"`
	SpecimenOIDs  []string `yaml:"specimen_oids"`
}

type CertificateFixture struct {
	Meta          `yaml:",inline"`
	CertificateNo string     `yaml:"certificate_no"`
	RequestID     string     `yaml:"request_id"`
	PreparationID string     `yaml:"preparationId"`
	IssueDate     *time.Time `yaml:"issue_date"`
	TestingDate   *time.Time `yaml:"testing_date"`
}

type DiscardFixture struct {
	Meta        `yaml:",inline"`
	SampleID    string     `yaml:"sampleId"`
	Reason      string     `yaml:"reason"`
	DiscardDate *time.Time `yaml:"discard_date"`
}

// Load decodes a fixture file. Unknown keys are rejected so typos in
// field names do not silently drop data.
func Load(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		if err == io.EOF {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &fx, nil
}
