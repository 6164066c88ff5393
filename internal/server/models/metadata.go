package models

// MetadataEntry is the listing projection of a project used for the
// list-comparison phase of a sync round. It is derived from the stored
// document and never the source of truth.
type MetadataEntry struct {
	ID           string
	LastModified int64
	BillCount    int
	OwnerName    string
	IsClosed     bool
}

// ClientProjectState is what a device reports about one local project.
type ClientProjectState struct {
	ID           string
	LastModified int64
	BillCount    int
}

// PullReason explains why negotiation put a project on an action list.
type PullReason string

const (
	ReasonNewOnServer PullReason = "NewOnServer"
	ReasonServerNewer PullReason = "ServerNewer"
	ReasonLocalNewer  PullReason = "LocalNewer"
	ReasonNewBill     PullReason = "NewBill"
)

// PlanItem is one pull or push decision from negotiation.
type PlanItem struct {
	ID           string
	LastModified int64
	Reason       PullReason
}

// BillRef identifies one bill image the client is missing.
type BillRef struct {
	ProjectID string
	BillID    string
	AddedAt   int64
}

// Plan is the outcome of the metadata negotiation phase: what the client
// should pull, push and delete before documents move.
type Plan struct {
	Pull       []PlanItem
	Push       []PlanItem
	Delete     []string
	Bills      []BillRef
	Owners     []string
	ServerTime int64
}

// PushResult reports the outcome of one push. A conflict is a negotiated
// outcome, not a failure: FinalPayload then carries the server's copy the
// client must adopt.
type PushResult struct {
	ProjectID         string
	OK                bool
	HadConflict       bool
	FinalPayload      []byte
	FinalLastModified int64
	Err               string
}
