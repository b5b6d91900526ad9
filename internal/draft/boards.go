package draft

import (
	"log/slog"
	"sync"
)

// Boards hands out one Board per user, creating it on first use.
type Boards struct {
	sender Sender
	logger *slog.Logger

	mu     sync.Mutex
	boards map[string]*Board
}

// NewBoards creates the per-user board registry.
func NewBoards(sender Sender, logger *slog.Logger) *Boards {
	return &Boards{
		sender: sender,
		logger: logger,
		boards: make(map[string]*Board),
	}
}

// ForUser returns the user's board, creating it if needed.
func (r *Boards) ForUser(userEmail string) *Board {
	r.mu.Lock()
	defer r.mu.Unlock()

	board, ok := r.boards[userEmail]
	if !ok {
		board = NewBoard(userEmail, r.sender, r.logger)
		r.boards[userEmail] = board
	}
	return board
}
