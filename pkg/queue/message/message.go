package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ValerySidorin/ytgrab/pkg/job"
)

// Message announces that a job reached a terminal status.
type Message struct {
	JobID        string     `json:"job_id"`
	URL          string     `json:"url"`
	Status       job.Status `json:"status"`
	FilePath     string     `json:"file_path,omitempty"`
	ErrorDetails string     `json:"error_details,omitempty"`
	FinishedAt   time.Time  `json:"finished_at"`
}

func FromJob(j job.Job) *Message {
	return &Message{
		JobID:        j.ID,
		URL:          j.URL,
		Status:       j.Status,
		FilePath:     j.FilePath,
		ErrorDetails: j.ErrorDetails,
		FinishedAt:   j.UpdatedAt,
	}
}

func NewMessage(raw []byte) (*Message, error) {
	m := &Message{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, errors.Wrap(err, "invalid message raw input")
	}

	if m.JobID == "" {
		return nil, errors.New("invalid message raw input (job id)")
	}
	if !m.Status.IsTerminal() {
		return nil, errors.Errorf("invalid message raw input (status %q)", m.Status)
	}

	return m, nil
}

func (m *Message) Bytes() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}
	return b, nil
}

func (m *Message) String() string {
	return fmt.Sprintf("%s_%s", m.JobID, m.Status)
}
