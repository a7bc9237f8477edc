package notify

import (
	"context"
	"strconv"
	"sync"
)

// Sent is one message captured by a Recorder.
type Sent struct {
	Ref     string
	UserID  string
	Message Message
}

// Recorder is an in-memory Notifier that keeps everything it is asked to
// send or delete. It backs tests, the demo server and the soak tool.
type Recorder struct {
	mu      sync.Mutex
	seq     int
	sent    []Sent
	deleted []string
	failOn  map[MessageKind]error
}

func NewRecorder() *Recorder {
	return &Recorder{failOn: make(map[MessageKind]error)}
}

// FailOn makes Notify return err for every message of kind.
func (r *Recorder) FailOn(kind MessageKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[kind] = err
}

func (r *Recorder) Notify(_ context.Context, userID string, msg Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[msg.Kind]; err != nil {
		return "", err
	}
	r.seq++
	ref := "m" + strconv.Itoa(r.seq)
	r.sent = append(r.sent, Sent{Ref: ref, UserID: userID, Message: msg})
	return ref, nil
}

func (r *Recorder) Delete(_ context.Context, _ string, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, ref)
	return nil
}

// Sent returns a copy of every message sent to userID, oldest first. An
// empty userID returns all messages.
func (r *Recorder) Sent(userID string) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, 0, len(r.sent))
	for _, s := range r.sent {
		if userID == "" || s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Kinds returns the kinds sent to userID in order.
func (r *Recorder) Kinds(userID string) []MessageKind {
	sent := r.Sent(userID)
	out := make([]MessageKind, len(sent))
	for i, s := range sent {
		out[i] = s.Message.Kind
	}
	return out
}

// Count returns how many messages of kind were sent to userID.
func (r *Recorder) Count(userID string, kind MessageKind) int {
	n := 0
	for _, k := range r.Kinds(userID) {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}
