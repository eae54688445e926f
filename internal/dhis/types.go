// Package dhis talks to the target DHIS2 instance: the runtime schema
// catalog (tracked-entity attributes and option sets), the tracked
// entity / enrollment / event APIs and the datastore used for batch
// audit documents.
package dhis

// Attribute is one attribute value on a tracked entity instance.
type Attribute struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// DataValue is one data element value on an event.
type DataValue struct {
	DataElement       string `json:"dataElement"`
	Value             string `json:"value"`
	ProvidedElsewhere bool   `json:"providedElsewhere"`
}

// Event is a discrete timestamped occurrence within an enrollment.
type Event struct {
	TrackedEntityInstance string      `json:"trackedEntityInstance,omitempty"`
	Program               string      `json:"program"`
	ProgramStage          string      `json:"programStage"`
	OrgUnit               string      `json:"orgUnit"`
	Status                string      `json:"status"`
	EventDate             string      `json:"eventDate"`
	CompletedDate         string      `json:"completedDate,omitempty"`
	DataValues            []DataValue `json:"dataValues"`
}

// Enrollment links a tracked entity instance to a program.
type Enrollment struct {
	TrackedEntityInstance string `json:"trackedEntityInstance"`
	Program               string `json:"program"`
	Status                string `json:"status"`
	OrgUnit               string `json:"orgUnit"`
	EnrollmentDate        string `json:"enrollmentDate"`
	IncidentDate          string `json:"incidentDate"`

	// Events are carried on the assembled record and posted separately
	// after the enrollment is accepted; they are not part of the
	// enrollment wire payload.
	Events []Event `json:"-"`
}

// SubmissionRecord is one assembled tracked entity instance together
// with its pending enrollment and events.
type SubmissionRecord struct {
	TrackedEntityType string      `json:"trackedEntityType"`
	OrgUnit           string      `json:"orgUnit"`
	Attributes        []Attribute `json:"attributes"`

	Enrollment Enrollment `json:"-"`
}

// TrackedEntityPayload is the batch submission body.
type TrackedEntityPayload struct {
	TrackedEntityInstances []SubmissionRecord `json:"trackedEntityInstances"`
}

// Conflict is one itemized per-record conflict in an import summary.
type Conflict struct {
	Object string `json:"object"`
	Value  string `json:"value"`
}

// ImportSummary is the per-record outcome of an import call.
type ImportSummary struct {
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Conflicts []Conflict `json:"conflicts"`
}

// ImportResponse is the DHIS2 import call envelope.
type ImportResponse struct {
	Response struct {
		ResponseType    string          `json:"responseType"`
		Status          string          `json:"status"`
		Imported        int             `json:"imported"`
		Updated         int             `json:"updated"`
		Deleted         int             `json:"deleted"`
		Ignored         int             `json:"ignored"`
		ImportSummaries []ImportSummary `json:"importSummaries"`
	} `json:"response"`
}

// StatusError is the per-record status that marks a record as not
// enrolled: its conflicts are recorded and no enrollment or event
// calls are made for it.
const StatusError = "ERROR"
