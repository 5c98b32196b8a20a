package history

import (
	"context"
	"time"

	"github.com/BaSui01/nodeflow/logic"
)

// Run is the persisted record of one logic flow execution.
type Run struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	Graph     string       `gorm:"size:255;not null;index" json:"graph"`
	Status    logic.Status `gorm:"size:16;not null" json:"status"`
	StartTime time.Time    `gorm:"not null" json:"start_time"`
	EndTime   time.Time    `gorm:"not null" json:"end_time"`
	Executed  int          `json:"executed"`
	Error     string       `json:"error,omitempty"`
	Nodes     []NodeRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"nodes,omitempty"`
}

func (Run) TableName() string { return "runs" }

func (r *Run) Duration() time.Duration { return r.EndTime.Sub(r.StartTime) }

// summary drops the node records.
func (r *Run) summary() *Run {
	c := *r
	c.Nodes = nil
	return &c
}

func (r *Run) clone() *Run {
	c := *r
	c.Nodes = append([]NodeRecord(nil), r.Nodes...)
	return &c
}

// NodeRecord is one executed node of a run, in execution order.
type NodeRecord struct {
	ID        uint          `gorm:"primaryKey" json:"-"`
	RunID     string        `gorm:"size:36;not null;index" json:"-"`
	Seq       int           `gorm:"not null" json:"seq"`
	NodeID    string        `gorm:"size:36;not null" json:"node_id"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	Type      string        `gorm:"size:255;not null" json:"type"`
	StartTime time.Time     `gorm:"not null" json:"start_time"`
	Duration  time.Duration `gorm:"column:duration_ns" json:"duration"`
	Error     string        `json:"error,omitempty"`
}

func (NodeRecord) TableName() string { return "node_records" }

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Graph  string
	Status logic.Status
	// From and To bound StartTime, both inclusive.
	From  time.Time
	To    time.Time
	Limit int
}

// DefaultListLimit applies when Filter.Limit is not positive.
const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) match(r *Run) bool {
	if f.Graph != "" && r.Graph != f.Graph {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && r.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.StartTime.After(f.To) {
		return false
	}
	return true
}

// Store persists runs. Get fails with types.ErrNotFound for unknown ids.
// List returns summaries without node records, newest first.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, f Filter) ([]*Run, error)
}
