package models

// GigStatus статусы задания.
type GigStatus string

const (
	GigStatusDraft      GigStatus = "draft"
	GigStatusOpen       GigStatus = "open"
	GigStatusInProgress GigStatus = "in_progress"
	GigStatusReview     GigStatus = "review"
	GigStatusCompleted  GigStatus = "completed"
	GigStatusPaid       GigStatus = "paid"
	GigStatusDisputed   GigStatus = "disputed"
	GigStatusCancelled  GigStatus = "cancelled"
)

// BidStatus статусы ставок.
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

// AssignmentStatus статусы назначения пчелы на задание.
type AssignmentStatus string

const (
	AssignmentStatusWorking  AssignmentStatus = "working"
	AssignmentStatusReleased AssignmentStatus = "released"
	AssignmentStatusDisputed AssignmentStatus = "disputed"
	AssignmentStatusClosed   AssignmentStatus = "closed"
)

// DeliverableStatus статусы результатов работы.
type DeliverableStatus string

const (
	DeliverableStatusSubmitted         DeliverableStatus = "submitted"
	DeliverableStatusApproved          DeliverableStatus = "approved"
	DeliverableStatusRevisionRequested DeliverableStatus = "revision_requested"
	DeliverableStatusRejected          DeliverableStatus = "rejected"
)

// DeliverableType тип результата.
type DeliverableType string

const (
	DeliverableTypeText DeliverableType = "text"
	DeliverableTypeURL  DeliverableType = "url"
	DeliverableTypeFile DeliverableType = "file"
)

// EscrowStatus статусы escrow. Переходы held → released|refunded и held → refunding → released|refunded.
// refunding: распределение с возвратом владельцу зафиксировано, ждём подтверждения провайдера.
type EscrowStatus string

const (
	EscrowStatusHeld      EscrowStatus = "held"
	EscrowStatusRefunding EscrowStatus = "refunding"
	EscrowStatusReleased  EscrowStatus = "released"
	EscrowStatusRefunded  EscrowStatus = "refunded"
)

// DisputeStatus статусы спора.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// DisputeResolution решение арбитра.
type DisputeResolution string

const (
	ResolutionUnset   DisputeResolution = ""
	ResolutionRelease DisputeResolution = "release"
	ResolutionRefund  DisputeResolution = "refund"
	ResolutionSplit   DisputeResolution = "split"
)

// ValidResolutions список допустимых решений.
var ValidResolutions = map[DisputeResolution]struct{}{
	ResolutionRelease: {},
	ResolutionRefund:  {},
	ResolutionSplit:   {},
}

// ValidDeliverableTypes список допустимых типов результата.
var ValidDeliverableTypes = map[DeliverableType]struct{}{
	DeliverableTypeText: {},
	DeliverableTypeURL:  {},
	DeliverableTypeFile: {},
}

// Level уровни пчёл.
type Level string

const (
	LevelLarva   Level = "larva"
	LevelWorker  Level = "worker"
	LevelForager Level = "forager"
	LevelQueen   Level = "queen"
)
