package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mailbae/dashboard/internal/backend"
	"github.com/mailbae/dashboard/internal/logging"
)

// State is the lifecycle phase of one candidate's draft.
type State string

const (
	StateViewing State = "viewing"
	StateEditing State = "editing"
	StateSending State = "sending"
)

var (
	// ErrUnknownCandidate is returned for ids the board has not loaded.
	ErrUnknownCandidate = errors.New("unknown candidate")
	// ErrNoReplyNeeded is returned when a reply action targets a
	// candidate classified as needing no reply.
	ErrNoReplyNeeded = errors.New("candidate needs no reply")
	// ErrSendInFlight is returned when an action races an active send.
	ErrSendInFlight = errors.New("send already in flight")
)

// Sender sends one outbound reply and returns the provider message id.
type Sender interface {
	SendEmail(ctx context.Context, req backend.SendRequest) (string, error)
}

// Entry is the board's view of one candidate: the fetched classification
// plus any in-progress edit.
type Entry struct {
	Candidate  backend.ReplyCandidate `json:"candidate"`
	State      State                  `json:"state"`
	EditedText string                 `json:"edited_text,omitempty"`
	SendError  string                 `json:"send_error,omitempty"`
	MessageID  string                 `json:"message_id,omitempty"`
}

// Text returns the body a send would carry: the edited text while an
// edit exists, otherwise the fetched draft.
func (e Entry) Text() string {
	if e.State == StateEditing || e.State == StateSending {
		return e.EditedText
	}
	return e.Candidate.Draft
}

// Board holds the draft lifecycle for one user's candidate set.
type Board struct {
	userEmail string
	sender    Sender
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewBoard creates an empty board for the user. sender performs the
// actual delivery.
func NewBoard(userEmail string, sender Sender, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		userEmail: userEmail,
		sender:    sender,
		logger:    logging.WithComponent(logger, "draft"),
		entries:   make(map[string]*Entry),
	}
}

// Load replaces the board's candidate set with a fresh query result.
// Edits in progress for ids that survive the reload are kept.
func (b *Board) Load(candidates map[string]backend.ReplyCandidate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fresh := make(map[string]*Entry, len(candidates))
	for id, candidate := range candidates {
		if prior, ok := b.entries[id]; ok && prior.State != StateViewing {
			prior.Candidate = candidate
			fresh[id] = prior
			continue
		}
		fresh[id] = &Entry{Candidate: candidate, State: StateViewing}
	}
	b.entries = fresh
}

// Get returns a snapshot of one entry.
func (b *Board) Get(id string) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[id]
	if !ok {
		return Entry{}, ErrUnknownCandidate
	}
	return *entry, nil
}

// Entries returns a snapshot of the whole board.
func (b *Board) Entries() map[string]Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := make(map[string]Entry, len(b.entries))
	for id, entry := range b.entries {
		snapshot[id] = *entry
	}
	return snapshot
}

// Edit moves a candidate into the editing state, seeding the edit
// buffer with the fetched draft.
func (b *Board) Edit(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.replyable(id)
	if err != nil {
		return err
	}
	if entry.State == StateSending {
		return ErrSendInFlight
	}
	if entry.State == StateEditing {
		return nil
	}

	entry.State = StateEditing
	entry.EditedText = entry.Candidate.Draft
	return nil
}

// UpdateText overwrites the edit buffer. The candidate must be in the
// editing state.
func (b *Board) UpdateText(id, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.replyable(id)
	if err != nil {
		return err
	}
	if entry.State != StateEditing {
		return fmt.Errorf("candidate %s is not being edited", id)
	}

	entry.EditedText = text
	return nil
}

// Cancel discards the edit and returns the candidate to viewing. The
// fetched draft is untouched.
func (b *Board) Cancel(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.replyable(id)
	if err != nil {
		return err
	}
	if entry.State == StateSending {
		return ErrSendInFlight
	}

	entry.State = StateViewing
	entry.EditedText = ""
	entry.SendError = ""
	return nil
}

// Send delivers the candidate's current text to its sender address. On
// success the entry returns to viewing carrying the message id; on
// failure it returns to editing with the text it had, and the delivery
// error's detail is kept for display.
func (b *Board) Send(ctx context.Context, id string) (string, error) {
	b.mu.Lock()
	entry, err := b.replyable(id)
	if err != nil {
		b.mu.Unlock()
		return "", err
	}
	if entry.State == StateSending {
		b.mu.Unlock()
		return "", ErrSendInFlight
	}

	wasEditing := entry.State == StateEditing
	text := entry.Text()
	if !wasEditing {
		entry.EditedText = text
	}
	entry.State = StateSending
	entry.SendError = ""
	recipient := entry.Candidate.Sender
	b.mu.Unlock()

	messageID, sendErr := b.sender.SendEmail(ctx, backend.SendRequest{
		UserEmail: b.userEmail,
		To:        recipient,
		Subject:   "",
		Message:   text,
	})

	b.mu.Lock()
	defer b.mu.Unlock()

	// The board may have been reloaded while the send was in flight.
	entry, ok := b.entries[id]
	if !ok {
		if sendErr != nil {
			return "", sendErr
		}
		return messageID, nil
	}

	if sendErr != nil {
		entry.State = StateEditing
		entry.EditedText = text
		entry.SendError = sendErr.Error()
		b.logger.Warn("reply send failed",
			logging.UserHash(b.userEmail),
			logging.Err(sendErr))
		return "", sendErr
	}

	entry.State = StateViewing
	entry.EditedText = ""
	entry.MessageID = messageID
	b.logger.Info("reply sent",
		logging.UserHash(b.userEmail),
		slog.String("message_id", messageID))
	return messageID, nil
}

// replyable returns the entry if it exists and is classified as needing
// a reply. Callers hold b.mu.
func (b *Board) replyable(id string) (*Entry, error) {
	entry, ok := b.entries[id]
	if !ok {
		return nil, ErrUnknownCandidate
	}
	if !entry.Candidate.NeedsReply {
		return nil, ErrNoReplyNeeded
	}
	return entry, nil
}
